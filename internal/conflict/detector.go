// Package conflict classifies the conflicts a candidate placement introduces.
package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// Report is the ordered, de-duplicated detector output.
type Report struct {
	Conflicts []models.Conflict
}

// Blocking returns the conflicts not silenced by an override.
func (r Report) Blocking() []models.Conflict {
	out := make([]models.Conflict, 0, len(r.Conflicts))
	for _, c := range r.Conflicts {
		if !c.Suppressed {
			out = append(out, c)
		}
	}
	return out
}

// HasBlocking reports whether the placement must be refused.
func (r Report) HasBlocking() bool {
	for _, c := range r.Conflicts {
		if !c.Suppressed {
			return true
		}
	}
	return false
}

// OnlyKinds reports whether every blocking conflict is of one of the given kinds.
func (r Report) OnlyKinds(kinds ...models.ConflictKind) bool {
	allowed := make(map[models.ConflictKind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}
	for _, c := range r.Blocking() {
		if !allowed[c.Kind] {
			return false
		}
	}
	return true
}

// Detector compares a candidate session against the existing timetable.
type Detector struct {
	grid  *timegrid.Grid
	rooms models.RoomCatalog
}

// NewDetector wires the grid and room catalog.
func NewDetector(grid *timegrid.Grid, rooms models.RoomCatalog) *Detector {
	if grid == nil {
		grid = timegrid.DefaultGrid()
	}
	if rooms == nil {
		rooms = models.RoomCatalog{}
	}
	return &Detector{grid: grid, rooms: rooms}
}

// Grid exposes the slot model used by the detector.
func (d *Detector) Grid() *timegrid.Grid {
	return d.grid
}

// Rooms exposes the room catalog used by the detector.
func (d *Detector) Rooms() models.RoomCatalog {
	return d.rooms
}

// Detect scans existing sessions on the candidate's day, ignoring the excluded ids.
// It never panics; malformed entries contribute nothing.
func (d *Detector) Detect(candidate models.Session, existing []models.Session, exclude ...int) (report Report) {
	defer func() {
		if recover() != nil {
			report = Report{}
		}
	}()

	skip := make(map[int]bool, len(exclude)+1)
	for _, id := range exclude {
		skip[id] = true
	}
	if candidate.ID > 0 {
		skip[candidate.ID] = true
	}

	var found []models.Conflict
	for _, other := range existing {
		if skip[other.ID] || other.Day != candidate.Day || candidate.Day == "" {
			continue
		}
		suppress := candidate.AllowTimeSlotOverride || other.AllowTimeSlotOverride

		if teacher, ok := candidate.SharesTeacher(other); ok && d.teacherClash(candidate, other) {
			found = append(found, models.Conflict{
				Kind:      models.ConflictTeacher,
				Detail:    fmt.Sprintf("teacher %s already teaches %s (%s) on %s at %s", teacher, other.Subject, other.Type, other.Day, other.Slot),
				SessionID: other.ID,
			})
		}

		if !d.Overlaps(candidate, other) {
			continue
		}

		if sameRoom(candidate.Room, other.Room) {
			found = append(found, models.Conflict{
				Kind:       models.ConflictRoom,
				Detail:     fmt.Sprintf("room %s already used by %s (%s) on %s at %s", strings.TrimSpace(other.Room), other.Subject, other.Type, other.Day, other.Slot),
				SessionID:  other.ID,
				Suppressed: suppress,
			})
		}

		if candidate.StudentEntity() != "" && candidate.StudentEntity() == other.StudentEntity() {
			found = append(found, models.Conflict{
				Kind:       models.ConflictGroup,
				Detail:     fmt.Sprintf("group %s already attends %s (%s) on %s at %s", other.StudentEntity(), other.Subject, other.Type, other.Day, other.Slot),
				SessionID:  other.ID,
				Suppressed: suppress,
			})
		}

		if sectionClash(candidate, other) {
			found = append(found, models.Conflict{
				Kind:       models.ConflictSection,
				Detail:     fmt.Sprintf("section %s%s has a %s while %s is scheduled on %s at %s", other.Filiere, other.Section, other.Type, candidate.Type, other.Day, other.Slot),
				SessionID:  other.ID,
				Suppressed: suppress,
			})
		}

		if duplicateOf(candidate, other) && !d.LegalPair(candidate, other) {
			found = append(found, models.Conflict{
				Kind:       models.ConflictDuplicate,
				Detail:     fmt.Sprintf("%s %s for %s is already scheduled on %s at %s", other.Type, other.Subject, other.StudentEntity(), other.Day, other.Slot),
				SessionID:  other.ID,
				Suppressed: suppress,
			})
		}
	}

	if c, ok := d.roomTypeConflict(candidate); ok {
		found = append(found, c)
	}

	return Report{Conflicts: normalise(found)}
}

// Overlaps resolves minute ranges first, then slot labels, then the TP coupling map.
func (d *Detector) Overlaps(a, b models.Session) bool {
	if a.Day != b.Day {
		return false
	}
	aStart, aEnd, okA := d.grid.Range(a)
	bStart, bEnd, okB := d.grid.Range(b)
	if okA && okB {
		return timegrid.RangesOverlap(aStart, aEnd, bStart, bEnd)
	}
	if timegrid.CanonicalLabel(a.Slot) != "" && timegrid.CanonicalLabel(a.Slot) == timegrid.CanonicalLabel(b.Slot) {
		return true
	}
	return d.coupledOccupies(a, b.Slot) || d.coupledOccupies(b, a.Slot)
}

// FreeRooms lists catalog rooms compatible with the candidate's type that no overlapping session uses.
func (d *Detector) FreeRooms(candidate models.Session, existing []models.Session, exclude ...int) []string {
	skip := make(map[int]bool, len(exclude)+1)
	for _, id := range exclude {
		skip[id] = true
	}
	if candidate.ID > 0 {
		skip[candidate.ID] = true
	}
	busy := make(map[string]bool)
	for _, other := range existing {
		if skip[other.ID] || !d.Overlaps(candidate, other) {
			continue
		}
		if room := models.NormalizeName(other.Room); room != "" {
			busy[room] = true
		}
	}
	var free []string
	for _, name := range d.rooms.Names() {
		if busy[models.NormalizeName(name)] {
			continue
		}
		if ok, _ := d.rooms.Compatible(candidate.Type, name); !ok {
			continue
		}
		free = append(free, name)
	}
	sort.Strings(free)
	return free
}

// CountBlocking counts blocking conflicts across a whole timetable, each pair once.
func (d *Detector) CountBlocking(sessions []models.Session) int {
	total := 0
	for i := range sessions {
		total += len(d.Detect(sessions[i], sessions[i+1:]).Blocking())
	}
	return total
}

func (d *Detector) teacherClash(c, s models.Session) bool {
	if timegrid.CanonicalLabel(c.Slot) != "" && timegrid.CanonicalLabel(c.Slot) == timegrid.CanonicalLabel(s.Slot) {
		return true
	}
	if !d.LegalPair(c, s) && (d.coupledOccupies(s, c.Slot) || d.coupledOccupies(c, s.Slot)) {
		return true
	}
	cStart, cEnd, okC := d.grid.Range(c)
	sStart, sEnd, okS := d.grid.Range(s)
	return okC && okS && timegrid.RangesOverlap(cStart, cEnd, sStart, sEnd)
}

// LegalPair reports whether a and b are the two halves of one coupled TP, in either order.
func (d *Detector) LegalPair(a, b models.Session) bool {
	if a.Type != models.SessionTP || !duplicateOf(a, b) || a.Day != b.Day {
		return false
	}
	first, second := a, b
	if first.HTP <= 0 {
		first, second = b, a
	}
	if first.HTP <= 0 || second.HTP > 0 {
		return false
	}
	next, ok := d.grid.SlotAfter(first.Slot)
	return ok && next == timegrid.CanonicalLabel(second.Slot)
}

// coupledOccupies reports whether s is a coupled-TP first half whose second slot is label.
func (d *Detector) coupledOccupies(s models.Session, label string) bool {
	if s.Type != models.SessionTP || s.HTP <= 0 {
		return false
	}
	next, ok := d.grid.SlotAfter(s.Slot)
	return ok && next == timegrid.CanonicalLabel(label)
}

func (d *Detector) roomTypeConflict(c models.Session) (models.Conflict, bool) {
	if c.Type == models.SessionTP || strings.TrimSpace(c.Room) == "" {
		return models.Conflict{}, false
	}
	compatible, known := d.rooms.Compatible(c.Type, c.Room)
	if !known || compatible {
		return models.Conflict{}, false
	}
	_, room, _ := d.rooms.Lookup(c.Room)
	return models.Conflict{
		Kind:   models.ConflictRoomType,
		Detail: fmt.Sprintf("room %s (%s) cannot host a %s", strings.TrimSpace(c.Room), room.Kind, c.Type),
	}, true
}

func sameRoom(a, b string) bool {
	na := models.NormalizeName(a)
	return na != "" && na == models.NormalizeName(b)
}

func sectionClash(a, b models.Session) bool {
	if models.NormalizeName(a.Filiere+a.Section) == "" ||
		models.NormalizeName(a.Filiere) != models.NormalizeName(b.Filiere) ||
		models.NormalizeName(a.Section) != models.NormalizeName(b.Section) {
		return false
	}
	aCours := a.Type == models.SessionCours
	bCours := b.Type == models.SessionCours
	return aCours != bCours
}

func duplicateOf(a, b models.Session) bool {
	return models.NormalizeName(a.Subject) != "" &&
		models.NormalizeName(a.Subject) == models.NormalizeName(b.Subject) &&
		a.Type == b.Type &&
		a.StudentEntity() == b.StudentEntity()
}

func normalise(found []models.Conflict) []models.Conflict {
	seen := make(map[string]bool, len(found))
	out := make([]models.Conflict, 0, len(found))
	for _, c := range found {
		key := string(c.Kind) + "|" + c.Detail
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Kind.Rank() < out[j].Kind.Rank() })
	return out
}
