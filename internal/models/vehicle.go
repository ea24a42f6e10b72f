package models

import "time"

type VehicleStatus string // Статус транспортного средства

const (
	AvailableVehicle    VehicleStatus = "Available"
	InUseVehicle        VehicleStatus = "In Use"
	MaintenanceVehicle  VehicleStatus = "Maintenance"
	OutOfServiceVehicle VehicleStatus = "Out of Service"
)

// Vehicle представляет модель транспортного средства.
type Vehicle struct {
	ID                 string        `json:"id"`
	RegistrationNumber string        `json:"registrationNumber"`
	Type               string        `json:"type"`
	Model              string        `json:"model"`
	DriverName         string        `json:"driverName"`
	DriverPhone        string        `json:"driverPhone"`
	Status             VehicleStatus `json:"status"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// VehicleRequest представляет структуру запроса для добавления транспорта.
type VehicleRequest struct {
	RegistrationNumber string        `json:"registrationNumber" validate:"required,max=20"`
	Type               string        `json:"type" validate:"required,max=50"`
	Model              string        `json:"model" validate:"max=100"`
	DriverName         string        `json:"driverName" validate:"max=120"`
	DriverPhone        string        `json:"driverPhone" validate:"omitempty,number,len=10"`
	Status             VehicleStatus `json:"status" validate:"omitempty,oneof=Available Maintenance 'Out of Service'"`
}

// VehicleUpdate - разрешённые для изменения поля транспорта.
type VehicleUpdate struct {
	RegistrationNumber *string        `json:"registrationNumber" validate:"omitempty,min=1,max=20"`
	Type               *string        `json:"type" validate:"omitempty,min=1,max=50"`
	Model              *string        `json:"model" validate:"omitempty,max=100"`
	DriverName         *string        `json:"driverName" validate:"omitempty,max=120"`
	DriverPhone        *string        `json:"driverPhone" validate:"omitempty,number,len=10"`
	Status             *VehicleStatus `json:"status" validate:"omitempty,oneof=Available Maintenance 'Out of Service'"`
}

// Empty сообщает, что ни одно поле не передано.
func (u VehicleUpdate) Empty() bool {
	return u.RegistrationNumber == nil && u.Type == nil && u.Model == nil &&
		u.DriverName == nil && u.DriverPhone == nil && u.Status == nil
}

// Apply переносит переданные поля в транспорт.
func (u VehicleUpdate) Apply(v *Vehicle) {
	if u.RegistrationNumber != nil {
		v.RegistrationNumber = *u.RegistrationNumber
	}
	if u.Type != nil {
		v.Type = *u.Type
	}
	if u.Model != nil {
		v.Model = *u.Model
	}
	if u.DriverName != nil {
		v.DriverName = *u.DriverName
	}
	if u.DriverPhone != nil {
		v.DriverPhone = *u.DriverPhone
	}
	if u.Status != nil {
		v.Status = *u.Status
	}
}

// VehicleFilter - параметры выборки транспорта.
type VehicleFilter struct {
	Statuses []string
	Type     string
	Limit    int
	Offset   int
}
