// Package coupling keeps the two halves of a coupled practical (TP) together.
//
// A couple is two TP sessions of one subject and audience on the same day where the
// second follows the first within MaxGap minutes. The first half carries the hours,
// the second carries none.
package coupling

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

const (
	// MaxGap is the largest break allowed between the halves.
	MaxGap = 30
	// RepairGap separates a re-attached second half from its first.
	RepairGap = 15
	// MinDuration is the shortest half considered part of a couple.
	MinDuration = 45
	// DurationSlack bounds the length difference between halves.
	DurationSlack = 15
)

// Pair identifies a coupled TP by the ids of its halves.
type Pair struct {
	FirstID  int `json:"firstId"`
	SecondID int `json:"secondId"`
}

// Window bounds the minutes of the day a move may occupy.
type Window struct {
	Start int
	End   int
}

// Contains reports whether [start,end) fits inside the window. A zero window accepts everything.
func (w Window) Contains(start, end int) bool {
	if w.End <= w.Start {
		return true
	}
	return start >= w.Start && end <= w.End
}

// Violation describes a broken coupling invariant.
type Violation struct {
	FirstID int    `json:"firstId"`
	Reason  string `json:"reason"`
}

// RepairResult reports what Repair changed.
type RepairResult struct {
	Sessions []models.Session
	Repaired []int
	Failed   []int
}

// Coordinator detects, moves and repairs coupled TPs.
type Coordinator struct {
	detector *conflict.Detector
	grid     *timegrid.Grid
}

// New builds a coordinator sharing the detector's grid.
func New(detector *conflict.Detector) *Coordinator {
	if detector == nil {
		detector = conflict.NewDetector(nil, nil)
	}
	return &Coordinator{detector: detector, grid: detector.Grid()}
}

// DetectPairs lists couples in the given sessions. Each session joins at most one pair.
func (c *Coordinator) DetectPairs(sessions []models.Session) []Pair {
	type placed struct {
		s          models.Session
		start, end int
	}
	var tps []placed
	for _, s := range sessions {
		if s.Type != models.SessionTP {
			continue
		}
		start, end, ok := c.grid.Range(s)
		if !ok {
			continue
		}
		tps = append(tps, placed{s: s, start: start, end: end})
	}
	sort.SliceStable(tps, func(i, j int) bool {
		if tps[i].s.Day != tps[j].s.Day {
			return timegrid.DayIndex(tps[i].s.Day) < timegrid.DayIndex(tps[j].s.Day)
		}
		return tps[i].start < tps[j].start
	})

	used := make(map[int]bool)
	var pairs []Pair
	for i, a := range tps {
		if used[a.s.ID] || a.s.HTP <= 0 {
			continue
		}
		best, bestGap := -1, MaxGap+1
		for j, b := range tps {
			if i == j || used[b.s.ID] || b.s.HTP > 0 || !sameAudience(a.s, b.s) {
				continue
			}
			gap := b.start - a.end
			if gap < 0 || gap > MaxGap || !compatibleDurations(a.end-a.start, b.end-b.start) {
				continue
			}
			if gap < bestGap {
				best, bestGap = j, gap
			}
		}
		if best < 0 {
			continue
		}
		used[a.s.ID], used[tps[best].s.ID] = true, true
		pairs = append(pairs, Pair{FirstID: a.s.ID, SecondID: tps[best].s.ID})
	}
	return pairs
}

// PartnerOf returns the other half of the couple s belongs to.
func (c *Coordinator) PartnerOf(s models.Session, sessions []models.Session) (models.Session, bool) {
	if s.Type != models.SessionTP {
		return models.Session{}, false
	}
	for _, p := range c.DetectPairs(sessions) {
		var want int
		switch s.ID {
		case p.FirstID:
			want = p.SecondID
		case p.SecondID:
			want = p.FirstID
		default:
			continue
		}
		return find(sessions, want)
	}
	return models.Session{}, false
}

// PlanMove computes both placements for a couple whose first half starts at start on day.
// The original gap is kept, clamped to MaxGap.
func (c *Coordinator) PlanMove(first, second models.Session, day models.Day, start int) (models.Session, models.Session) {
	firstStart, firstEnd, ok := c.grid.Range(first)
	if !ok {
		firstStart, firstEnd = 0, timegrid.DefaultDuration
	}
	secondStart, secondEnd, ok := c.grid.Range(second)
	if !ok {
		secondStart, secondEnd = firstEnd, firstEnd+timegrid.DefaultDuration
	}
	gap := clampGap(secondStart - firstEnd)
	firstDuration := firstEnd - firstStart
	secondDuration := secondEnd - secondStart

	a, b := first.Clone(), second.Clone()
	c.grid.Place(&a, day, start, firstDuration)
	c.grid.Place(&b, day, start+firstDuration+gap, secondDuration)
	return a, b
}

// Move probes a couple's relocation against sessions minus both halves.
// It returns the planned halves and whether the move is acceptable.
func (c *Coordinator) Move(first, second models.Session, day models.Day, start int, sessions []models.Session, window Window) (models.Session, models.Session, conflict.Report, bool) {
	a, b := c.PlanMove(first, second, day, start)

	aStart, _, _ := c.grid.Range(a)
	_, bEnd, _ := c.grid.Range(b)
	if !window.Contains(aStart, bEnd) {
		return a, b, conflict.Report{}, false
	}

	exclude := []int{first.ID, second.ID}
	report := c.detector.Detect(a, sessions, exclude...)
	if report.HasBlocking() {
		return a, b, report, false
	}
	report = c.detector.Detect(b, sessions, exclude...)
	if report.HasBlocking() {
		return a, b, report, false
	}
	return a, b, conflict.Report{}, true
}

// Repair re-attaches every originally coupled pair that is no longer coupled.
// The second half is placed on the coupling-map slot after its first half, or
// RepairGap minutes after it when the grid names no such slot.
func (c *Coordinator) Repair(original []Pair, sessions []models.Session) RepairResult {
	out := models.CloneSessions(sessions)
	result := RepairResult{Sessions: out}

	current := make(map[Pair]bool)
	for _, p := range c.DetectPairs(out) {
		current[p] = true
	}

	for _, p := range original {
		if current[p] {
			continue
		}
		fi, si := indexOf(out, p.FirstID), indexOf(out, p.SecondID)
		if fi < 0 || si < 0 {
			result.Failed = append(result.Failed, p.FirstID)
			continue
		}
		first := out[fi]
		_, firstEnd, ok := c.grid.Range(first)
		if !ok {
			result.Failed = append(result.Failed, p.FirstID)
			continue
		}
		second := &out[si]
		secondDuration := durationOf(c.grid, *second)

		if next, ok := c.grid.SlotAfter(first.Slot); ok {
			slot, _ := c.grid.Lookup(next)
			if slot.Start >= firstEnd && slot.Start-firstEnd <= MaxGap {
				c.grid.Place(second, first.Day, slot.Start, secondDuration)
			} else {
				c.grid.Place(second, first.Day, firstEnd+RepairGap, secondDuration)
			}
		} else {
			c.grid.Place(second, first.Day, firstEnd+RepairGap, secondDuration)
		}
		second.HTP = 0

		if c.detector.Detect(*second, out, p.FirstID, p.SecondID).HasBlocking() {
			result.Failed = append(result.Failed, p.FirstID)
			continue
		}
		result.Repaired = append(result.Repaired, p.SecondID)
	}
	return result
}

// CheckInvariant lists coupled first halves lacking exactly one matching second half.
// A first half is a TP carrying hours whose slot names a successor in the coupling map.
func (c *Coordinator) CheckInvariant(sessions []models.Session) []Violation {
	var violations []Violation
	for _, a := range sessions {
		if a.Type != models.SessionTP || a.HTP <= 0 {
			continue
		}
		next, ok := c.grid.SlotAfter(a.Slot)
		if !ok {
			continue
		}
		matches := 0
		for _, b := range sessions {
			if b.ID == a.ID || b.Day != a.Day || b.Type != models.SessionTP || b.HTP != 0 {
				continue
			}
			if timegrid.CanonicalLabel(b.Slot) == next && sameAudience(a, b) {
				matches++
			}
		}
		if matches != 1 {
			violations = append(violations, Violation{
				FirstID: a.ID,
				Reason:  fmt.Sprintf("expected one second half at %s %s, found %d", a.Day, next, matches),
			})
		}
	}
	return violations
}

func sameAudience(a, b models.Session) bool {
	return a.Day == b.Day &&
		models.NormalizeName(a.Subject) == models.NormalizeName(b.Subject) &&
		strings.TrimSpace(a.Subgroup) == strings.TrimSpace(b.Subgroup) &&
		strings.TrimSpace(a.Filiere)+strings.TrimSpace(a.Section) == strings.TrimSpace(b.Filiere)+strings.TrimSpace(b.Section)
}

func compatibleDurations(a, b int) bool {
	if a < MinDuration || b < MinDuration {
		return false
	}
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= DurationSlack
}

func clampGap(gap int) int {
	switch {
	case gap < 0:
		return 0
	case gap > MaxGap:
		return MaxGap
	}
	return gap
}

func durationOf(grid *timegrid.Grid, s models.Session) int {
	start, end, ok := grid.Range(s)
	if !ok {
		return timegrid.DefaultDuration
	}
	return end - start
}

func find(sessions []models.Session, id int) (models.Session, bool) {
	if i := indexOf(sessions, id); i >= 0 {
		return sessions[i], true
	}
	return models.Session{}, false
}

func indexOf(sessions []models.Session, id int) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
