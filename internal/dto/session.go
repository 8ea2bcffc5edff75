package dto

import "strings"

// SessionForm is the create/update payload of a session.
// Override synonyms (allowTimeSlotConflict, force, meta.force) collapse into Override().
type SessionForm struct {
	Day                   string                 `json:"day" validate:"required"`
	Slot                  string                 `json:"slot" validate:"required"`
	StartTime             string                 `json:"startTime"`
	EndTime               string                 `json:"endTime"`
	Type                  string                 `json:"type" validate:"required"`
	Subject               string                 `json:"subject" validate:"required"`
	Filiere               string                 `json:"filiere" validate:"required"`
	Section               string                 `json:"section" validate:"required"`
	Subgroup              string                 `json:"subgroup"`
	Teachers              []string               `json:"teachers"`
	Room                  string                 `json:"room"`
	HTP                   *float64               `json:"hTP" validate:"omitempty,min=0"`
	Locked                bool                   `json:"locked"`
	AllowNoRoom           bool                   `json:"allowNoRoom"`
	AllowTimeSlotOverride bool                   `json:"allowTimeSlotOverride"`
	AllowTimeSlotConflict bool                   `json:"allowTimeSlotConflict"`
	AllowOverride         bool                   `json:"allowOverride"`
	Force                 bool                   `json:"force"`
	Meta                  map[string]interface{} `json:"meta"`
}

// Override reports whether any accepted synonym requests the override flag.
func (f SessionForm) Override() bool {
	if f.AllowTimeSlotOverride || f.AllowTimeSlotConflict || f.AllowOverride || f.Force {
		return true
	}
	switch v := f.Meta["force"].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// MoveSessionRequest relocates a session; a nil Room keeps the current one.
type MoveSessionRequest struct {
	Day  string  `json:"day" validate:"required"`
	Slot string  `json:"slot" validate:"required"`
	Room *string `json:"room"`
}

// SessionQuery filters session listings.
type SessionQuery struct {
	Day     string `form:"day"`
	Filiere string `form:"filiere"`
	Teacher string `form:"teacher"`
	Room    string `form:"room"`
	Type    string `form:"type"`
}
