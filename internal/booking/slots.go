package booking

import (
	"fmt"
	"time"
)

// The OPD runs 09:00-16:00 in 30 minute slots; last bookable slot is 15:30.
// The grid here is the single source of truth, clients fetch it instead of
// regenerating their own.
const (
	OpenHour  = 9
	CloseHour = 16

	// RoomCount is the number of interchangeable OPD rooms per slot.
	RoomCount = 5

	// AlternativeRadius is how many slots either side of a full slot the
	// finder inspects; MaxAlternatives caps how many it returns.
	AlternativeRadius = 3
	MaxAlternatives   = 3
)

var timeSlots = buildTimeSlots()

func buildTimeSlots() []string {
	var slots []string
	for hour := OpenHour; hour < CloseHour; hour++ {
		for _, minute := range []int{0, 30} {
			slots = append(slots, fmt.Sprintf("%02d:%02d", hour, minute))
		}
	}
	return slots
}

// TimeSlots returns the ordered slot grid for any operating day.
func TimeSlots() []string {
	out := make([]string, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// SlotIndex returns the position of t in the grid, or -1 if t is not a slot.
func SlotIndex(t string) int {
	for i, s := range timeSlots {
		if s == t {
			return i
		}
	}
	return -1
}

func ValidTimeSlot(t string) bool {
	return SlotIndex(t) >= 0
}

func ValidDate(d string) bool {
	_, err := time.Parse("2006-01-02", d)
	return err == nil
}

func ValidRoom(room int) bool {
	return room >= 1 && room <= RoomCount
}
