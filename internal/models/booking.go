package models

import "time"

type BookingStatus string // Статус вызова скорой помощи

const (
	PendingBooking   BookingStatus = "Pending"
	AssignedBooking  BookingStatus = "Assigned"
	WaitingBooking   BookingStatus = "Waiting"
	InTransitBooking BookingStatus = "In Transit"
	ArrivedBooking   BookingStatus = "Arrived"
	CompletedBooking BookingStatus = "Completed"
	CancelledBooking BookingStatus = "Cancelled"
)

// AmbulanceType - тип транспорта, который назначается на вызов.
const AmbulanceType = "ambulance"

// IsTerminal сообщает, что вызов завершён.
func (s BookingStatus) IsTerminal() bool {
	return s == CompletedBooking || s == CancelledBooking
}

// Dispatchable сообщает, что вызову ещё можно назначить машину.
func (s BookingStatus) Dispatchable() bool {
	return s == PendingBooking || s == WaitingBooking
}

// Booking представляет модель вызова скорой помощи.
type Booking struct {
	ID            string        `json:"id"`
	PatientName   string        `json:"patientName"`
	Phone         string        `json:"phone"`
	PickupAddress string        `json:"pickupAddress"`
	Destination   string        `json:"destination"`
	EmergencyType string        `json:"emergencyType"`
	Notes         string        `json:"notes"`
	Status        BookingStatus `json:"status"`
	VehicleID     *string       `json:"vehicleId,omitempty"`
	RequestedBy   string        `json:"requestedBy"`
	CancelReason  string        `json:"cancelReason,omitempty"`
	AssignedAt    *time.Time    `json:"assignedAt,omitempty"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// BookingRequest представляет структуру запроса на вызов скорой помощи.
type BookingRequest struct {
	PatientName   string `json:"patientName" validate:"required,max=120"`
	Phone         string `json:"phone" validate:"required,number,len=10"`
	PickupAddress string `json:"pickupAddress" validate:"required,max=300"`
	Destination   string `json:"destination" validate:"max=300"`
	EmergencyType string `json:"emergencyType" validate:"max=100"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// BookingStatusRequest - запрос на смену статуса вызова.
type BookingStatusRequest struct {
	Status BookingStatus `json:"status" validate:"required"`
}

// CancelBookingRequest - запрос на отмену вызова.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// BookingFilter - параметры выборки вызовов.
type BookingFilter struct {
	Statuses    []string
	RequestedBy string
	Limit       int
	Offset      int
}
