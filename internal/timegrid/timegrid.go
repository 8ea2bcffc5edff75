// Package timegrid parses time labels and models the daily slot grid, including
// the TP coupling map that names the legal second half of a coupled practical.
package timegrid

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

const (
	// DefaultDuration applies when only a start label is known.
	DefaultDuration = 90
	// Midday splits morning and afternoon placements.
	Midday = 13 * 60
)

var labelPattern = regexp.MustCompile(`^(\d{1,2})\s*[h:]\s*(\d{2})?$`)

// Slot is a labelled window on the daily grid, in minutes since midnight.
type Slot struct {
	Label string `json:"label"`
	Start int    `json:"startMinutes"`
	End   int    `json:"endMinutes"`
}

// Duration in minutes.
func (s Slot) Duration() int {
	return s.End - s.Start
}

// Overlap reports whether [a.Start,a.End) and [b.Start,b.End) intersect.
func Overlap(a, b Slot) bool {
	return RangesOverlap(a.Start, a.End, b.Start, b.End)
}

// RangesOverlap is the half-open interval intersection test.
func RangesOverlap(aStart, aEnd, bStart, bEnd int) bool {
	if aEnd <= aStart || bEnd <= bStart {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

// ParseLabel accepts "8h30", "08H30", "8h", "14:30" and returns minutes since midnight.
func ParseLabel(raw string) (int, bool) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return 0, false
	}
	match := labelPattern.FindStringSubmatch(value)
	if match == nil {
		return 0, false
	}
	if strings.Contains(value, ":") && match[2] == "" {
		return 0, false
	}
	hours, err := strconv.Atoi(match[1])
	if err != nil || hours > 23 {
		return 0, false
	}
	minutes := 0
	if match[2] != "" {
		minutes, err = strconv.Atoi(match[2])
		if err != nil || minutes > 59 {
			return 0, false
		}
	}
	return hours*60 + minutes, true
}

// FormatLabel renders minutes in the display form "8h30".
func FormatLabel(minutes int) string {
	return fmt.Sprintf("%dh%02d", minutes/60, minutes%60)
}

// FormatISO renders minutes in the canonical wire form "08:30".
func FormatISO(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// CanonicalLabel normalises a label to its display form, keeping unparsable input trimmed.
func CanonicalLabel(raw string) string {
	if minutes, ok := ParseLabel(raw); ok {
		return FormatLabel(minutes)
	}
	return strings.TrimSpace(raw)
}

// IsMorning reports whether a placement starting at minutes belongs to the morning half.
func IsMorning(minutes int) bool {
	return minutes < Midday
}

// CanonicalExamSlots returns the four fixed exam windows.
func CanonicalExamSlots() []Slot {
	windows := [][2]int{
		{8*60 + 30, 10 * 60},
		{10*60 + 15, 11*60 + 45},
		{14*60 + 30, 16 * 60},
		{16*60 + 15, 17*60 + 45},
	}
	out := make([]Slot, 0, len(windows))
	for _, w := range windows {
		out = append(out, Slot{Label: FormatISO(w[0]) + "-" + FormatISO(w[1]), Start: w[0], End: w[1]})
	}
	return out
}

// Grid is the ordered set of daily slots plus the TP coupling map.
type Grid struct {
	slots    []Slot
	byLabel  map[string]Slot
	nextOfTP map[string]string
}

// NewGrid builds a grid; labels are canonicalised and slots sorted by start.
func NewGrid(slots []Slot, nextOfTP map[string]string) *Grid {
	g := &Grid{
		byLabel:  make(map[string]Slot, len(slots)),
		nextOfTP: make(map[string]string, len(nextOfTP)),
	}
	for _, slot := range slots {
		slot.Label = CanonicalLabel(slot.Label)
		if slot.End <= slot.Start {
			slot.End = slot.Start + DefaultDuration
		}
		if _, dup := g.byLabel[slot.Label]; dup {
			continue
		}
		g.byLabel[slot.Label] = slot
		g.slots = append(g.slots, slot)
	}
	sort.Slice(g.slots, func(i, j int) bool { return g.slots[i].Start < g.slots[j].Start })
	for from, to := range nextOfTP {
		from, to = CanonicalLabel(from), CanonicalLabel(to)
		if from == "" || to == "" {
			continue
		}
		g.nextOfTP[from] = to
	}
	return g
}

// DefaultGrid is the standard six-slot day with morning and afternoon TP couples.
func DefaultGrid() *Grid {
	starts := []int{8*60 + 30, 10 * 60, 11*60 + 30, 14*60 + 30, 16 * 60, 17*60 + 30}
	slots := make([]Slot, 0, len(starts))
	for _, start := range starts {
		slots = append(slots, Slot{Label: FormatLabel(start), Start: start, End: start + DefaultDuration})
	}
	return NewGrid(slots, map[string]string{
		"8h30":  "10h00",
		"14h30": "16h00",
	})
}

// FromConfig rebuilds a grid from its persisted form. Invalid entries are skipped and reported.
func FromConfig(cfg *models.SlotConfig) (*Grid, []string) {
	if cfg == nil || len(cfg.Slots) == 0 {
		return DefaultGrid(), nil
	}
	var warnings []string
	slots := make([]Slot, 0, len(cfg.Slots))
	for _, def := range cfg.Slots {
		start, ok := ParseLabel(def.Start)
		if !ok {
			start, ok = ParseLabel(def.Label)
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("slot %q ignored: unreadable start", def.Label))
			continue
		}
		end, ok := ParseLabel(def.End)
		if !ok || end <= start {
			end = start + DefaultDuration
		}
		label := def.Label
		if strings.TrimSpace(label) == "" {
			label = FormatLabel(start)
		}
		slots = append(slots, Slot{Label: label, Start: start, End: end})
	}
	if len(slots) == 0 {
		return DefaultGrid(), append(warnings, "no usable slot; default grid applied")
	}
	return NewGrid(slots, cfg.NextOfTP), warnings
}

// Config returns the persisted form of the grid.
func (g *Grid) Config() models.SlotConfig {
	defs := make([]models.SlotDef, 0, len(g.slots))
	for _, slot := range g.slots {
		defs = append(defs, models.SlotDef{Label: slot.Label, Start: FormatISO(slot.Start), End: FormatISO(slot.End)})
	}
	next := make(map[string]string, len(g.nextOfTP))
	for k, v := range g.nextOfTP {
		next[k] = v
	}
	return models.SlotConfig{Slots: defs, NextOfTP: next}
}

// Slots returns the ordered slots.
func (g *Grid) Slots() []Slot {
	return append([]Slot(nil), g.slots...)
}

// Lookup resolves a label to its slot.
func (g *Grid) Lookup(label string) (Slot, bool) {
	slot, ok := g.byLabel[CanonicalLabel(label)]
	return slot, ok
}

// SlotAfter is the coupling map: the legal second half of a TP starting at label.
func (g *Grid) SlotAfter(label string) (string, bool) {
	next, ok := g.nextOfTP[CanonicalLabel(label)]
	return next, ok
}

// SlotStartingAt returns the grid slot beginning exactly at minutes.
func (g *Grid) SlotStartingAt(minutes int) (Slot, bool) {
	for _, slot := range g.slots {
		if slot.Start == minutes {
			return slot, true
		}
	}
	return Slot{}, false
}

// Range resolves the minute window of a session: explicit bounds, then grid, then parsed label.
func (g *Grid) Range(s models.Session) (int, int, bool) {
	if s.HasExplicitRange() {
		return s.StartMinutes, s.EndMinutes, true
	}
	if slot, ok := g.Lookup(s.Slot); ok {
		return slot.Start, slot.End, true
	}
	if start, ok := ParseLabel(s.Slot); ok {
		return start, start + DefaultDuration, true
	}
	return 0, 0, false
}

// Place stamps a session with a start minute, keeping its duration and label in sync.
func (g *Grid) Place(s *models.Session, day models.Day, start, duration int) {
	if duration <= 0 {
		duration = DefaultDuration
	}
	s.Day = day
	s.Slot = FormatLabel(start)
	if slot, ok := g.Lookup(s.Slot); ok && slot.Duration() == duration {
		s.StartMinutes, s.EndMinutes = 0, 0
		return
	}
	s.StartMinutes = start
	s.EndMinutes = start + duration
}

// Days is the ordered workweek.
var Days = []models.Day{models.Monday, models.Tuesday, models.Wednesday, models.Thursday, models.Friday, models.Saturday}

var dayAliases = map[string]models.Day{
	"lundi": models.Monday, "lun": models.Monday, "monday": models.Monday, "mon": models.Monday,
	"mardi": models.Tuesday, "mar": models.Tuesday, "tuesday": models.Tuesday, "tue": models.Tuesday,
	"mercredi": models.Wednesday, "mer": models.Wednesday, "wednesday": models.Wednesday, "wed": models.Wednesday,
	"jeudi": models.Thursday, "jeu": models.Thursday, "thursday": models.Thursday, "thu": models.Thursday,
	"vendredi": models.Friday, "ven": models.Friday, "friday": models.Friday, "fri": models.Friday,
	"samedi": models.Saturday, "sam": models.Saturday, "saturday": models.Saturday, "sat": models.Saturday,
}

// ParseDay accepts French and English names and their three-letter abbreviations.
func ParseDay(raw string) (models.Day, bool) {
	day, ok := dayAliases[strings.ToLower(strings.TrimSpace(raw))]
	return day, ok
}

// DayIndex returns the position of a day in the week, or -1.
func DayIndex(day models.Day) int {
	for i, d := range Days {
		if d == day {
			return i
		}
	}
	return -1
}
