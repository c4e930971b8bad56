package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCreated       = "created"
	outcomeAlreadyBooked = "already_booked"
	outcomeSlotNotFound  = "slot_not_found"
	outcomeError         = "error"
)

var bookingAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "booking_attempts_total",
	Help: "Booking attempts by outcome",
}, []string{"outcome"})

var slotListings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "booking_slot_listings_total",
	Help: "Available slot listings by cache result",
}, []string{"cache"})
