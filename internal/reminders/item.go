// ABOUTME: UI-facing reminder item and conversions to and from store records
// ABOUTME: Item is what controllers show and validate; store.Reminder is what gets persisted

package reminders

import (
	"github.com/2389/locus-gateway/internal/store"
)

// Item is a reminder as shown on screen.
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// ItemFromReminder converts a stored record.
func ItemFromReminder(r *store.Reminder) Item {
	c := r.Clone()
	return Item{
		ID:          c.ID,
		Title:       c.Title,
		Description: c.Description,
		Location:    c.Location,
		Latitude:    c.Latitude,
		Longitude:   c.Longitude,
	}
}

// ToReminder converts the item into a record with its own coordinate copies.
func (i Item) ToReminder() *store.Reminder {
	r := &store.Reminder{
		ID:          i.ID,
		Title:       i.Title,
		Description: i.Description,
		Location:    i.Location,
		Latitude:    i.Latitude,
		Longitude:   i.Longitude,
	}
	return r.Clone()
}
