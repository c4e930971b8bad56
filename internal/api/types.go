package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/booking"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string    `json:"token"`
	Role  auth.Role `json:"role"`
}

// BookRequest accepts the browser client's slotId as well as snake case slot_id.
type BookRequest struct {
	SlotID      string `json:"slotId"`
	SlotIDSnake string `json:"slot_id"`
}

func (r BookRequest) slotID() string {
	if r.SlotID != "" {
		return r.SlotID
	}
	return r.SlotIDSnake
}

type MessageResponse struct {
	Message string `json:"message"`
}

type SlotResponse struct {
	ID      uuid.UUID `json:"id"`
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`
}

type BookingUserResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type BookingResponse struct {
	ID        uuid.UUID            `json:"id"`
	UserID    uuid.UUID            `json:"user_id"`
	SlotID    uuid.UUID            `json:"slot_id"`
	CreatedAt time.Time            `json:"created_at"`
	Slot      *SlotResponse        `json:"slot,omitempty"`
	User      *BookingUserResponse `json:"user,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func toSlotResponse(s *booking.Slot) *SlotResponse {
	if s == nil {
		return nil
	}
	return &SlotResponse{ID: s.ID, StartAt: s.StartAt, EndAt: s.EndAt}
}

func toSlotResponses(slots []booking.Slot) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for i := range slots {
		out = append(out, *toSlotResponse(&slots[i]))
	}
	return out
}

func toBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:        b.ID,
		UserID:    b.UserID,
		SlotID:    b.SlotID,
		CreatedAt: b.CreatedAt,
		Slot:      toSlotResponse(b.Slot),
	}
	if b.User != nil {
		resp.User = &BookingUserResponse{Name: b.User.Name, Email: b.User.Email}
	}
	return resp
}

func toBookingResponses(bookings []booking.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	return out
}
