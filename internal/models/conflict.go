package models

import (
	"fmt"
	"strings"
)

// ConflictKind classifies a conflict. Declaration order is the report order.
type ConflictKind string

const (
	ConflictTeacher   ConflictKind = "teacher"
	ConflictRoom      ConflictKind = "room"
	ConflictRoomType  ConflictKind = "room_type"
	ConflictGroup     ConflictKind = "group"
	ConflictSection   ConflictKind = "section"
	ConflictDuplicate ConflictKind = "duplicate"
)

var conflictRank = map[ConflictKind]int{
	ConflictTeacher:   0,
	ConflictRoom:      1,
	ConflictRoomType:  2,
	ConflictGroup:     3,
	ConflictSection:   4,
	ConflictDuplicate: 5,
}

// Rank is the position of the kind in reports.
func (k ConflictKind) Rank() int {
	if r, ok := conflictRank[k]; ok {
		return r
	}
	return len(conflictRank)
}

// Suppressible reports whether allowTimeSlotOverride may silence the kind.
func (k ConflictKind) Suppressible() bool {
	switch k {
	case ConflictRoom, ConflictGroup, ConflictSection, ConflictDuplicate:
		return true
	}
	return false
}

// Conflict is one classified finding of the detector.
type Conflict struct {
	Kind       ConflictKind `json:"kind"`
	Detail     string       `json:"detail"`
	SessionID  int          `json:"sessionId,omitempty"`
	Suppressed bool         `json:"suppressed,omitempty"`
}

// String renders the conflict for user-facing lists.
func (c Conflict) String() string {
	return fmt.Sprintf("[%s] %s", c.Kind, c.Detail)
}

// ConflictStrings renders a list of conflicts.
func ConflictStrings(list []Conflict) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		out = append(out, c.String())
	}
	return out
}

// ConflictError aborts an operation because of blocking conflicts.
type ConflictError struct {
	Conflicts []Conflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return "conflicts detected: " + strings.Join(ConflictStrings(e.Conflicts), "; ")
}

// OnlySuppressible reports whether a retry with the override flag could succeed.
func (e *ConflictError) OnlySuppressible() bool {
	if e == nil {
		return false
	}
	for _, c := range e.Conflicts {
		if !c.Kind.Suppressible() {
			return false
		}
	}
	return true
}

// ValidationError lists missing or invalid fields.
type ValidationError struct {
	Missing []string `json:"missing"`
	Reason  string   `json:"reason,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if len(e.Missing) == 0 {
		return e.Reason
	}
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}
