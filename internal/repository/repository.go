package repository

import (
	"context"
	"errors"
	"time"

	"github.com/senyabanana/hospital-service/internal/models"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrConflict     = errors.New("record state changed")
	ErrDuplicate    = errors.New("record already exists")
	ErrTenderClosed = errors.New("tender is not accepting bids")
	ErrBidMismatch  = errors.New("bid does not belong to tender")
)

// TenderRepository - интерфейс для работы с тендерами.
type TenderRepository interface {
	GetTenders(ctx context.Context, filter models.TenderFilter) ([]models.Tender, error)
	GetTenderById(ctx context.Context, tenderId string) (*models.Tender, error)
	CreateTender(ctx context.Context, tender *models.Tender) error
	UpdateTender(ctx context.Context, tenderId string, update models.TenderUpdate, entry models.ActivityEntry) (*models.Tender, error)
	UpdateTenderStatus(ctx context.Context, tenderId string, from, to models.TenderStatus, entry models.ActivityEntry) (*models.Tender, error)
	ExtendDeadline(ctx context.Context, tenderId string, from, to models.TenderStatus, deadline time.Time, entry models.ActivityEntry) (*models.Tender, error)
	AwardTender(ctx context.Context, tenderId, bidId, actor string, at time.Time) (*models.Tender, error)
	DeleteTenders(ctx context.Context, tenderIds []string) (int64, error)
}

// TenderNumberGenerator выдаёт порядковые номера тендеров в пределах года.
type TenderNumberGenerator interface {
	NextTenderNumber(ctx context.Context, year int) (int64, error)
}

// BidRepository - интерфейс для работы с предложениями.
type BidRepository interface {
	CreateBid(ctx context.Context, bid *models.Bid, tenderEntry, bidEntry models.ActivityEntry) error
	GetBidById(ctx context.Context, bidId string) (*models.Bid, error)
	GetTenderBids(ctx context.Context, tenderId string, limit, offset int) ([]models.Bid, error)
	GetVendorBids(ctx context.Context, vendorId string, limit, offset int) ([]models.Bid, error)
	GetCompetingBids(ctx context.Context, tenderId string) ([]models.Bid, error)
	UpdateBid(ctx context.Context, bidId string, update models.BidUpdate, entry models.ActivityEntry) (*models.Bid, error)
	UpdateBidStatus(ctx context.Context, bidId string, from, to models.BidStatus, entry models.ActivityEntry) (*models.Bid, error)
	ScoreBid(ctx context.Context, bidId string, from, to models.BidStatus, score models.Score, entry models.ActivityEntry) (*models.Bid, error)
	WithdrawBid(ctx context.Context, bidId string, from models.BidStatus, tenderEntry, bidEntry models.ActivityEntry) (*models.Bid, error)
	AddBidComment(ctx context.Context, comment *models.BidComment) error
	SaveRankings(ctx context.Context, tenderId string, rankings map[string]int) error
}

// VehicleRepository - интерфейс для работы с транспортом.
type VehicleRepository interface {
	GetVehicles(ctx context.Context, filter models.VehicleFilter) ([]models.Vehicle, error)
	GetVehicleById(ctx context.Context, vehicleId string) (*models.Vehicle, error)
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	UpdateVehicle(ctx context.Context, vehicleId string, update models.VehicleUpdate) (*models.Vehicle, error)
	DeleteVehicle(ctx context.Context, vehicleId string) error
}

// BookingRepository - интерфейс для работы с вызовами скорой помощи.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	DispatchBooking(ctx context.Context, bookingId string, at time.Time) (*models.Booking, error)
	GetBookingById(ctx context.Context, bookingId string) (*models.Booking, error)
	GetBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingId string, from, to models.BookingStatus, reason string, at time.Time) (*models.Booking, error)
}
