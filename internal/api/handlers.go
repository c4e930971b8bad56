package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
)

func registerHandler(svc AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Please provide name, email, and password.")
			return
		}

		if _, err := svc.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
			handleAuthError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, MessageResponse{Message: "User created successfully."})
	}
}

func loginHandler(svc AuthService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Please provide both email and password.")
			return
		}

		res, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleAuthError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusOK, LoginResponse{Token: res.Token, Role: res.Role})
	}
}

func listSlotsHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slots, err := svc.ListAvailable(r.Context())
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponses(slots))
	}
}

func bookHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_or_invalid_token", "Missing or invalid authorization token.")
			return
		}

		var req BookRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "slotId is required.")
			return
		}
		raw := strings.TrimSpace(req.slotID())
		if raw == "" {
			writeError(w, http.StatusBadRequest, "invalid_input", "slotId is required.")
			return
		}
		// a malformed id cannot name any slot
		slotID, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "slot_not_found", "Slot not found.")
			return
		}

		b, err := svc.Book(r.Context(), id.UserID, slotID)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(b))
	}
}

func myBookingsHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing_or_invalid_token", "Missing or invalid authorization token.")
			return
		}

		bookings, err := svc.MyBookings(r.Context(), id.UserID)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponses(bookings))
	}
}

func allBookingsHandler(svc BookingService, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookings, err := svc.AllBookings(r.Context())
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, toBookingResponses(bookings))
	}
}

func bannerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Appointment booking API is running.\n"))
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "Route not found.")
}

func handleAuthError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, "duplicate_email", "User with this email already exists.")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password.")
	case errors.Is(err, auth.ErrMissingConfig):
		log.Error("auth misconfigured", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "missing_config", "JWT Secret not configured on the server.")
	default:
		internalError(w, r, log, err)
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotAlreadyBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", "This slot is no longer available.")
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusBadRequest, "slot_not_found", "Slot not found.")
	case errors.Is(err, auth.ErrUserNotFound):
		// token outlived its account
		writeError(w, http.StatusUnauthorized, "missing_or_invalid_token", "Missing or invalid authorization token.")
	default:
		internalError(w, r, log, err)
	}
}

func internalError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "storage_unavailable", "The service is temporarily unavailable.")
}
