package model

import "time"

// Slot is a candidate booking window produced by the availability engine.
// It is derived on every request and never stored or cached, because the
// free counts change with every booking.
type Slot struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	Label              string    `json:"label"`
	FreeResourcesCount int       `json:"free_resources_count"`
	FreeResourceIDs    []uint64  `json:"free_resource_ids"`
}

// IsFull reports whether no resource can take the slot.
func (s Slot) IsFull() bool { return s.FreeResourcesCount == 0 }
