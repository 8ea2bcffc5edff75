package models

import (
	"reflect"
	"strings"
)

// SessionType classifies a timetable placement.
type SessionType string

const (
	SessionCours SessionType = "Cours"
	SessionTD    SessionType = "TD"
	SessionTP    SessionType = "TP"
)

// ParseSessionType normalises free-form labels ("cours", "cm", "td", "tp") into a SessionType.
func ParseSessionType(raw string) (SessionType, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COURS", "CM", "LECTURE":
		return SessionCours, true
	case "TD", "TUTORIAL":
		return SessionTD, true
	case "TP", "PRACTICAL", "LAB":
		return SessionTP, true
	}
	return "", false
}

// Day is a workday of the weekly grid.
type Day string

const (
	Monday    Day = "Lundi"
	Tuesday   Day = "Mardi"
	Wednesday Day = "Mercredi"
	Thursday  Day = "Jeudi"
	Friday    Day = "Vendredi"
	Saturday  Day = "Samedi"
)

// Session is a single placement on the weekly grid.
type Session struct {
	ID                    int         `json:"id"`
	Day                   Day         `json:"day"`
	Slot                  string      `json:"slot"`
	StartMinutes          int         `json:"startMinutes,omitempty"`
	EndMinutes            int         `json:"endMinutes,omitempty"`
	Type                  SessionType `json:"type"`
	Subject               string      `json:"subject"`
	Filiere               string      `json:"filiere"`
	Section               string      `json:"section"`
	Subgroup              string      `json:"subgroup,omitempty"`
	Teachers              []string    `json:"teachers"`
	Room                  string      `json:"room,omitempty"`
	HTP                   float64     `json:"hTP"`
	Locked                bool        `json:"locked,omitempty"`
	AllowTimeSlotOverride bool        `json:"allowTimeSlotOverride,omitempty"`
}

// StudentEntity is the audience identifier used by group conflict checks.
func (s Session) StudentEntity() string {
	base := strings.TrimSpace(s.Filiere) + strings.TrimSpace(s.Section)
	if s.Type == SessionCours {
		return base
	}
	return base + strings.TrimSpace(s.Subgroup)
}

// HasExplicitRange reports whether minute bounds were set on the session itself.
func (s Session) HasExplicitRange() bool {
	return s.EndMinutes > s.StartMinutes && s.StartMinutes > 0
}

// Clone returns a deep copy safe to hand out to readers.
func (s Session) Clone() Session {
	out := s
	if s.Teachers != nil {
		out.Teachers = append([]string(nil), s.Teachers...)
	}
	return out
}

// SharesTeacher reports whether both sessions list at least one common teacher.
func (s Session) SharesTeacher(other Session) (string, bool) {
	for _, a := range s.Teachers {
		na := NormalizeName(a)
		if na == "" {
			continue
		}
		for _, b := range other.Teachers {
			if na == NormalizeName(b) {
				return strings.TrimSpace(a), true
			}
		}
	}
	return "", false
}

// Equal is a field-by-field comparison used for lock preservation checks.
func (s Session) Equal(other Session) bool {
	a, b := s.Clone(), other.Clone()
	if len(a.Teachers) == 0 {
		a.Teachers = nil
	}
	if len(b.Teachers) == 0 {
		b.Teachers = nil
	}
	return reflect.DeepEqual(a, b)
}

// CleanTeachers trims names, drops blanks and caps the list.
func CleanTeachers(names []string, max int) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		out = append(out, name)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// NormalizeName lowercases and trims identifiers compared across sessions (rooms, teachers).
func NormalizeName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// CloneSessions deep-copies a session list.
func CloneSessions(list []Session) []Session {
	out := make([]Session, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

// OperationResult is the shape returned by controller operations.
type OperationResult struct {
	Success   bool      `json:"success"`
	Session   *Session  `json:"session,omitempty"`
	Sessions  []Session `json:"sessions,omitempty"`
	Conflicts []string  `json:"conflicts,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// MoveStatus is the outcome of an interactive move.
type MoveStatus string

const (
	MoveCommitted            MoveStatus = "moved"
	MoveNoop                 MoveStatus = "noop"
	MoveAwaitingConfirmation MoveStatus = "awaiting_confirmation"
	MoveCancelled            MoveStatus = "cancelled"
)

// MoveOutcome extends OperationResult with the confirmation state of a move.
type MoveOutcome struct {
	OperationResult
	Status        MoveStatus `json:"status"`
	SuggestedRoom string     `json:"suggestedRoom,omitempty"`
	Previous      *Session   `json:"previous,omitempty"`
}
