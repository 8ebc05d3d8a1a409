// Package slots defines the fixed daily set of bookable slots.
package slots

import (
	"fmt"
	"time"
)

// Slot is a time of day drawn from the catalog.
type Slot struct {
	Start    time.Duration // offset from midnight
	Duration time.Duration
}

// Label returns the slot as "HH:MM".
func (s Slot) Label() string {
	return formatTimeOfDay(s.Start)
}

// EndLabel returns the slot end as "HH:MM".
func (s Slot) EndLabel() string {
	return formatTimeOfDay(s.Start + s.Duration)
}

// Catalog is the ordered, immutable sequence of slots for a day.
type Catalog struct {
	slots []Slot
	index map[string]int
}

// NewCatalog builds slots from startHour (inclusive) to endHour (exclusive) in step increments.
func NewCatalog(startHour, endHour int, step time.Duration) *Catalog {
	if step <= 0 {
		step = time.Hour
	}

	c := &Catalog{index: make(map[string]int)}
	start := time.Duration(startHour) * time.Hour
	end := time.Duration(endHour) * time.Hour
	for cursor := start; cursor < end; cursor += step {
		s := Slot{Start: cursor, Duration: step}
		c.index[s.Label()] = len(c.slots)
		c.slots = append(c.slots, s)
	}
	return c
}

// Slots returns a copy of the catalog in order.
func (c *Catalog) Slots() []Slot {
	out := make([]Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// Labels returns the "HH:MM" labels in order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Label()
	}
	return out
}

// Lookup finds a slot by label.
func (c *Catalog) Lookup(label string) (Slot, bool) {
	i, ok := c.index[label]
	if !ok {
		return Slot{}, false
	}
	return c.slots[i], true
}

func (c *Catalog) Len() int {
	return len(c.slots)
}

func formatTimeOfDay(d time.Duration) string {
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
