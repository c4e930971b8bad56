package seed

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/booking"
)

const (
	DayStartHour = 9
	DayEndHour   = 17
	SlotLength   = 30 * time.Minute
	SlotsPerDay  = (DayEndHour - DayStartHour) * int(time.Hour/SlotLength)
	DefaultDays  = 7
)

// GenerateSlots lays out half-hour slots from 09:00 to 17:00 in loc for days consecutive
// calendar days, starting with the day that contains from.
func GenerateSlots(from time.Time, days int, loc *time.Location) []booking.Slot {
	if days <= 0 {
		return nil
	}
	local := from.In(loc)
	y, m, d := local.Date()

	out := make([]booking.Slot, 0, days*SlotsPerDay)
	for day := 0; day < days; day++ {
		open := time.Date(y, m, d+day, DayStartHour, 0, 0, 0, loc)
		for i := 0; i < SlotsPerDay; i++ {
			start := open.Add(time.Duration(i) * SlotLength)
			out = append(out, booking.Slot{
				ID:      uuid.New(),
				StartAt: start.UTC(),
				EndAt:   start.Add(SlotLength).UTC(),
			})
		}
	}
	return out
}
