package shared

import "strings"

// Slot is one meal of the day.
type Slot string

const (
	Breakfast Slot = "Breakfast"
	Lunch     Slot = "Lunch"
	Dinner    Slot = "Dinner"
	Snack     Slot = "Snack"
)

// Slots lists the meal slots in serving order.
var Slots = []Slot{Breakfast, Lunch, Dinner, Snack}

// ParseSlot matches a slot name case-insensitively.
func ParseSlot(s string) (Slot, bool) {
	s = strings.TrimSpace(s)
	for _, slot := range Slots {
		if strings.EqualFold(string(slot), s) {
			return slot, true
		}
	}
	return "", false
}
