package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bus-ticketing/internal/booking"
	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
	"bus-ticketing/internal/seatlock"
	"bus-ticketing/internal/sse"
	"bus-ticketing/internal/utils"
)

type Handler struct {
	Booking *booking.Service
	Locks   *seatlock.Manager
	Hub     *sse.SeatMapHub
	Logger  *logger.Logger
}

func NewHandler(bookingService *booking.Service, locks *seatlock.Manager, hub *sse.SeatMapHub, log *logger.Logger) *Handler {
	return &Handler{Booking: bookingService, Locks: locks, Hub: hub, Logger: log}
}

// Routes mounts every endpoint of the booking core.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/v1/bookings", h.CreateBooking)
	r.Get("/api/v1/bookings/{bookingId}", h.GetBooking)
	r.Post("/api/v1/bookings/{bookingId}/cancel", h.CancelBooking)
	r.Post("/api/v1/payments/verify", h.VerifyPayment)
	r.Get("/api/v1/users/{userId}/bookings", h.GetUserBookings)

	r.Post("/api/v1/trips/{tripId}/seats/lock", h.LockSeats)
	r.Post("/api/v1/trips/{tripId}/seats/unlock", h.UnlockSeats)
	r.Get("/api/v1/trips/{tripId}/seats/locks", h.GetLockedSeats)
	r.Get("/api/v1/trips/{tripId}/seats/stream", h.StreamSeatMap)
	r.Delete("/api/v1/connections/{connectionId}", h.ReleaseConnection)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	response, err := h.Booking.PlaceBooking(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateBooking: %v", err))
		h.writeError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateBooking: booking %s created with PNR %s", response.Booking.BookingID, response.Booking.PNR))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("booking created", response))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	bookingData, err := h.Booking.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetBooking: %v", err))
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking found", bookingData))
}

func (h *Handler) GetUserBookings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	bookings, err := h.Booking.GetBookingsByUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetUserBookings: %v", err))
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bookings found", bookings))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req models.CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}
	req.BookingID = chi.URLParam(r, "bookingId")

	cancelled, err := h.Booking.CancelBooking(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CancelBooking: %v", err))
		h.writeError(w, err)
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CancelBooking: booking %s cancelled, refund %.2f", cancelled.BookingID, cancelled.RefundAmount))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking cancelled", cancelled))
}

func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req models.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	confirmed, err := h.Booking.VerifyPayment(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("VerifyPayment: %v", err))
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment verified", confirmed))
}

type lockRequest struct {
	SeatNumbers  []string `json:"seat_numbers"`
	HolderID     string   `json:"holder_id"`
	ConnectionID string   `json:"connection_id"`
}

func (h *Handler) LockSeats(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	err := h.Locks.LockSeats(r.Context(), tripID, req.SeatNumbers, req.HolderID, req.ConnectionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seats locked", req.SeatNumbers))
}

func (h *Handler) UnlockSeats(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid request body", err.Error()))
		return
	}

	if err := h.Locks.UnlockSeats(r.Context(), tripID, req.SeatNumbers, req.HolderID); err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("seats unlocked", req.SeatNumbers))
}

func (h *Handler) GetLockedSeats(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	locks, err := h.Locks.GetLockedSeats(r.Context(), tripID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("current seat locks", locks))
}

func (h *Handler) ReleaseConnection(w http.ResponseWriter, r *http.Request) {
	connectionID := chi.URLParam(r, "connectionId")

	if err := h.Locks.ReleaseConnection(r.Context(), connectionID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StreamSeatMap streams lock/unlock/booked events for a trip over SSE
// until the viewer disconnects.
func (h *Handler) StreamSeatMap(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "tripId")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connectionID := uuid.NewString()
	events := h.Hub.Subscribe(r.Context(), tripID)
	h.Logger.Info("API", fmt.Sprintf("StreamSeatMap: viewer %s subscribed to trip %s", connectionID, tripID))

	// A dropped stream releases every lock this connection held, with
	// no grace period. The request context is already cancelled by the
	// time the viewer disconnects, so the release gets its own.
	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
		defer cancel()
		if err := h.Locks.ReleaseConnection(ctx, connectionID); err != nil {
			h.Logger.Warn("API", fmt.Sprintf("StreamSeatMap: release of connection %s failed: %v", connectionID, err))
		}
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"connection_id\":%q}\n\n", connectionID)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var (
		validationErr *models.ValidationError
		conflictErr   *models.ConflictError
		fundsErr      *models.InsufficientFundsError
		notFoundErr   *models.NotFoundError
		stateErr      *models.StateError
		paymentErr    *models.ExternalPaymentError
	)

	switch {
	case errors.As(err, &validationErr):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("validation failed", validationErr.Error()))
	case errors.As(err, &conflictErr):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("seat conflict", conflictErr.Error()))
	case errors.As(err, &fundsErr):
		utils.WriteJSON(w, http.StatusPaymentRequired, utils.ErrorResponse("insufficient funds", fundsErr.Error()))
	case errors.As(err, &notFoundErr):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("not found", notFoundErr.Error()))
	case errors.As(err, &stateErr):
		utils.WriteJSON(w, http.StatusUnprocessableEntity, utils.ErrorResponse("invalid state", stateErr.Error()))
	case errors.As(err, &paymentErr):
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("payment failed", paymentErr.Error()))
	default:
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("internal error", err.Error()))
	}
}
