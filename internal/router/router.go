package router

import (
	"net/http"

	"github.com/senyabanana/hospital-service/internal/handlers"
	"github.com/senyabanana/hospital-service/internal/middleware"
	"github.com/senyabanana/hospital-service/internal/models"
)

// Handlers - обработчики, из которых собираются маршруты.
type Handlers struct {
	Tender  *handlers.TenderHandler
	Bid     *handlers.BidHandler
	Vehicle *handlers.VehicleHandler
	Booking *handlers.BookingHandler
	Metrics http.Handler
}

func InitRoutes(auth *middleware.Authenticator, h Handlers) *http.ServeMux {
	mux := http.NewServeMux()

	authed := func(handler http.HandlerFunc, roles ...models.Role) http.Handler {
		if len(roles) == 0 {
			return auth.Authenticate(handler)
		}
		return auth.Authenticate(middleware.RequireRoles(roles...)(handler))
	}
	procurement := models.ProcurementRole
	vendor := models.VendorRole
	dispatcher := models.DispatcherRole

	mux.HandleFunc("GET /api/ping", handlers.PingHandler)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	mux.HandleFunc("GET /api/tenders", h.Tender.GetTenders)
	mux.HandleFunc("GET /api/tenders/{tenderId}", h.Tender.GetTender)
	mux.Handle("POST /api/tenders", authed(h.Tender.CreateTender, procurement))
	mux.Handle("PATCH /api/tenders/{tenderId}", authed(h.Tender.UpdateTender, procurement))
	mux.Handle("PUT /api/tenders/{tenderId}/status", authed(h.Tender.UpdateTenderStatus, procurement))
	mux.Handle("POST /api/tenders/{tenderId}/close", authed(h.Tender.CloseTender, procurement))
	mux.Handle("POST /api/tenders/{tenderId}/extend", authed(h.Tender.ExtendDeadline, procurement))
	mux.Handle("POST /api/tenders/{tenderId}/award", authed(h.Tender.AwardTender, procurement))
	mux.Handle("DELETE /api/tenders/{tenderId}", authed(h.Tender.DeleteTender, procurement))
	mux.Handle("POST /api/tenders/bulk-delete", authed(h.Tender.BulkDeleteTenders, procurement))
	mux.Handle("GET /api/tenders/{tenderId}/bids", authed(h.Bid.GetTenderBids, procurement))
	mux.Handle("GET /api/tenders/{tenderId}/competitiveness", authed(h.Bid.GetCompetitiveness, procurement))

	mux.Handle("POST /api/bids", authed(h.Bid.CreateBid, vendor))
	mux.Handle("GET /api/bids/my", authed(h.Bid.GetUserBids, vendor))
	mux.Handle("GET /api/bids/{bidId}", authed(h.Bid.GetBid, procurement, vendor))
	mux.Handle("PATCH /api/bids/{bidId}", authed(h.Bid.UpdateBid, vendor))
	mux.Handle("POST /api/bids/{bidId}/withdraw", authed(h.Bid.WithdrawBid, vendor))
	mux.Handle("POST /api/bids/{bidId}/score", authed(h.Bid.ScoreBid, procurement))
	mux.Handle("PUT /api/bids/{bidId}/status", authed(h.Bid.UpdateBidStatus, procurement))
	mux.Handle("POST /api/bids/{bidId}/comments", authed(h.Bid.AddBidComment, procurement, vendor))

	mux.Handle("GET /api/vehicles", authed(h.Vehicle.GetVehicles, dispatcher))
	mux.Handle("GET /api/vehicles/{vehicleId}", authed(h.Vehicle.GetVehicle, dispatcher))
	mux.Handle("POST /api/vehicles", authed(h.Vehicle.CreateVehicle, dispatcher))
	mux.Handle("PATCH /api/vehicles/{vehicleId}", authed(h.Vehicle.UpdateVehicle, dispatcher))
	mux.Handle("DELETE /api/vehicles/{vehicleId}", authed(h.Vehicle.DeleteVehicle, dispatcher))

	mux.Handle("POST /api/bookings/ambulance", authed(h.Booking.CreateAmbulanceBooking))
	mux.Handle("GET /api/bookings", authed(h.Booking.GetBookings, dispatcher))
	mux.Handle("GET /api/bookings/my", authed(h.Booking.GetUserBookings))
	mux.Handle("GET /api/bookings/{bookingId}", authed(h.Booking.GetBooking))
	mux.Handle("PUT /api/bookings/{bookingId}/status", authed(h.Booking.UpdateBookingStatus, dispatcher))
	mux.Handle("POST /api/bookings/{bookingId}/cancel", authed(h.Booking.CancelBooking))
	mux.Handle("POST /api/bookings/{bookingId}/dispatch", authed(h.Booking.RetryDispatch, dispatcher))

	return mux
}
