package model

import "fmt"

// SlotType is one of the three executive role slots on a company.
type SlotType string

const (
	SlotCEO SlotType = "CEO"
	SlotCFO SlotType = "CFO"
	SlotHR  SlotType = "HR"
)

// SlotTypes lists every slot type in evaluation order.
var SlotTypes = []SlotType{SlotCEO, SlotCFO, SlotHR}

// ParseSlotType converts a stored string to a SlotType.
func ParseSlotType(s string) (SlotType, error) {
	switch SlotType(s) {
	case SlotCEO, SlotCFO, SlotHR:
		return SlotType(s), nil
	}
	return "", fmt.Errorf("unknown slot type %q", s)
}

// Slot is a role attachment point owned by exactly one company.
type Slot struct {
	ID        string   `json:"id,omitempty"`
	CompanyID string   `json:"company_id"`
	Type      SlotType `json:"slot_type"`
	Filled    bool     `json:"is_filled"`
	PersonID  *string  `json:"person_id,omitempty"`
}

// SlotsByType indexes slots by type. Later duplicates win.
func SlotsByType(slots []Slot) map[SlotType]Slot {
	m := make(map[SlotType]Slot, len(slots))
	for _, s := range slots {
		m[s.Type] = s
	}
	return m
}
