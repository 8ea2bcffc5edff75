// Package exam allocates exam populations to rooms and detects room clashes between exams.
package exam

import (
	"sort"
	"strings"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// Window returns the minute range of an exam, or false when its times are unreadable.
func Window(e models.Exam) (int, int, bool) {
	start, ok := timegrid.ParseLabel(e.StartTime)
	if !ok {
		return 0, 0, false
	}
	end, ok := timegrid.ParseLabel(e.EndTime)
	if !ok || end <= start {
		return 0, 0, false
	}
	return start, end, true
}

// Overlapping reports whether two exams share a date and overlapping times.
func Overlapping(a, b models.Exam) bool {
	if strings.TrimSpace(a.Date) == "" || strings.TrimSpace(a.Date) != strings.TrimSpace(b.Date) {
		return false
	}
	aStart, aEnd, okA := Window(a)
	bStart, bEnd, okB := Window(b)
	if !okA || !okB {
		return false
	}
	return timegrid.RangesOverlap(aStart, aEnd, bStart, bEnd)
}

// ClaimedRooms lists rooms allocated to exams overlapping e, e itself excluded.
func ClaimedRooms(e models.Exam, existing []models.Exam) map[string]bool {
	claimed := make(map[string]bool)
	for _, other := range existing {
		if other.ID == e.ID || !Overlapping(e, other) {
			continue
		}
		for _, alloc := range other.Allocations {
			if room := models.NormalizeName(alloc.Room); room != "" {
				claimed[room] = true
			}
		}
	}
	return claimed
}

// Allocate fills rooms greedily by descending capacity, ties by name, skipping
// rooms held by an overlapping exam. A positive remainder is reported, not refused.
func Allocate(e models.Exam, rooms []models.CandidateRoom, existing []models.Exam) models.AllocationResult {
	result := models.AllocationResult{Allocations: []models.ExamAllocation{}}
	remaining := e.StudentsCount
	if remaining <= 0 {
		return result
	}

	claimed := ClaimedRooms(e, existing)
	ordered := make([]models.CandidateRoom, 0, len(rooms))
	seen := make(map[string]bool, len(rooms))
	for _, room := range rooms {
		key := models.NormalizeName(room.Name)
		if key == "" || room.Capacity <= 0 || seen[key] {
			continue
		}
		seen[key] = true
		if claimed[key] {
			result.SkippedRooms = append(result.SkippedRooms, room.Name)
			continue
		}
		ordered = append(ordered, room)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Capacity != ordered[j].Capacity {
			return ordered[i].Capacity > ordered[j].Capacity
		}
		return ordered[i].Name < ordered[j].Name
	})

	for _, room := range ordered {
		if remaining == 0 {
			break
		}
		students := room.Capacity
		if remaining < students {
			students = remaining
		}
		result.Allocations = append(result.Allocations, models.ExamAllocation{Room: room.Name, Students: students})
		result.TotalAssigned += students
		remaining -= students
	}
	result.Remaining = remaining
	return result
}

// Conflicts lists rooms e shares with overlapping exams. Session overrides never apply here.
func Conflicts(e models.Exam, exams []models.Exam) []models.ExamConflict {
	mine := make(map[string]string, len(e.Allocations))
	for _, alloc := range e.Allocations {
		if key := models.NormalizeName(alloc.Room); key != "" {
			mine[key] = alloc.Room
		}
	}
	var out []models.ExamConflict
	for _, other := range exams {
		if other.ID == e.ID || !Overlapping(e, other) {
			continue
		}
		for _, alloc := range other.Allocations {
			if room, ok := mine[models.NormalizeName(alloc.Room)]; ok {
				out = append(out, models.ExamConflict{ExamID: e.ID, OtherID: other.ID, Room: room, Date: e.Date})
			}
		}
	}
	return out
}

// CandidatesFromConfigs turns enabled room configs into candidates, falling back to catalog capacity.
func CandidatesFromConfigs(configs []models.ExamRoomConfig, catalog models.RoomCatalog) []models.CandidateRoom {
	out := make([]models.CandidateRoom, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		capacity := cfg.Capacity
		if capacity <= 0 {
			if _, room, ok := catalog.Lookup(cfg.Room); ok {
				capacity = room.Capacity
			}
		}
		out = append(out, models.CandidateRoom{Name: cfg.Room, Capacity: capacity})
	}
	return out
}
