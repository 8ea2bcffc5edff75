// Package registry owns the sessions of one term document and their undo history.
package registry

import (
	"fmt"
	"time"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

// DefaultUndoDepth bounds the undo history when no depth is configured.
const DefaultUndoDepth = 50

// Snapshot is one labelled undo entry.
type Snapshot struct {
	Label    string
	Sessions []models.Session
	NextID   int
	At       time.Time
}

// Registry is the single owner of the session records of a term.
// It is not safe for concurrent use; callers serialise access.
type Registry struct {
	sessions []*models.Session
	nextID   int
	undo     []Snapshot
	depth    int
	batching bool
}

// New builds a registry from persisted sessions. nextID is raised to max(id)+1 when lower.
func New(sessions []models.Session, nextID, depth int) *Registry {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	r := &Registry{depth: depth}
	r.load(sessions)
	if nextID > r.nextID {
		r.nextID = nextID
	}
	return r
}

func (r *Registry) load(sessions []models.Session) {
	r.sessions = make([]*models.Session, 0, len(sessions))
	for i := range sessions {
		s := sessions[i].Clone()
		r.sessions = append(r.sessions, &s)
	}
	r.nextID = models.NextIDFor(sessions)
}

// NextID returns the id the next Add will assign.
func (r *Registry) NextID() int {
	return r.nextID
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// Add stores a copy of s under a fresh id and returns the stored record.
func (r *Registry) Add(s models.Session) models.Session {
	r.record("add")
	stored := s.Clone()
	stored.ID = r.nextID
	r.nextID++
	r.sessions = append(r.sessions, &stored)
	return stored.Clone()
}

// Remove deletes the session with id. Unknown ids return false without recording.
func (r *Registry) Remove(id int) bool {
	idx := r.index(id)
	if idx < 0 {
		return false
	}
	r.record(fmt.Sprintf("remove #%d", id))
	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)
	return true
}

// Update mutates the stored record in place, preserving its identity.
func (r *Registry) Update(id int, mutate func(*models.Session)) (models.Session, bool) {
	idx := r.index(id)
	if idx < 0 {
		return models.Session{}, false
	}
	r.record(fmt.Sprintf("update #%d", id))
	target := r.sessions[idx]
	mutate(target)
	target.ID = id
	return target.Clone(), true
}

// FindByID returns a copy of the session.
func (r *Registry) FindByID(id int) (models.Session, bool) {
	idx := r.index(id)
	if idx < 0 {
		return models.Session{}, false
	}
	return r.sessions[idx].Clone(), true
}

// List returns an insertion-ordered, caller-owned snapshot.
func (r *Registry) List() []models.Session {
	out := make([]models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	return out
}

// Filter returns copies of the sessions matching keep.
func (r *Registry) Filter(keep func(models.Session) bool) []models.Session {
	var out []models.Session
	for _, s := range r.sessions {
		if keep(*s) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// ByDay lists sessions of a day.
func (r *Registry) ByDay(day models.Day) []models.Session {
	return r.Filter(func(s models.Session) bool { return s.Day == day })
}

// ByTeacher lists sessions that name the teacher.
func (r *Registry) ByTeacher(name string) []models.Session {
	needle := models.NormalizeName(name)
	return r.Filter(func(s models.Session) bool {
		for _, t := range s.Teachers {
			if models.NormalizeName(t) == needle {
				return true
			}
		}
		return false
	})
}

// ByGroup lists sessions attended by the student entity.
func (r *Registry) ByGroup(entity string) []models.Session {
	return r.Filter(func(s models.Session) bool { return s.StudentEntity() == entity })
}

// BySlot lists sessions of a (day, slot label) cell.
func (r *Registry) BySlot(day models.Day, slot string) []models.Session {
	return r.Filter(func(s models.Session) bool { return s.Day == day && s.Slot == slot })
}

// ReplaceAll swaps the whole content atomically and rebuilds nextId to max(id)+1.
func (r *Registry) ReplaceAll(sessions []models.Session) {
	r.record("replaceAll")
	r.load(sessions)
}

// PushUndo records an explicit labelled snapshot.
func (r *Registry) PushUndo(label string) {
	r.push(label)
}

// Batch records one snapshot, runs fn and rolls back when fn fails.
// Mutations performed inside fn do not record their own entries.
func (r *Registry) Batch(label string, fn func(*Registry) error) (err error) {
	if r.batching {
		return fn(r)
	}
	r.push(label)
	r.batching = true
	defer func() {
		r.batching = false
		if rec := recover(); rec != nil {
			r.rollback()
			err = fmt.Errorf("batch %s aborted: %v", label, rec)
			return
		}
		if err != nil {
			r.rollback()
		}
	}()
	return fn(r)
}

// Undo restores the latest snapshot and returns its label.
func (r *Registry) Undo() (string, bool) {
	if len(r.undo) == 0 {
		return "", false
	}
	last := r.undo[len(r.undo)-1]
	r.undo = r.undo[:len(r.undo)-1]
	current := r.nextID
	r.load(last.Sessions)
	// ids handed out before the undo are never reused
	if current > r.nextID {
		r.nextID = current
	}
	return last.Label, true
}

// UndoLabels lists the history, oldest first.
func (r *Registry) UndoLabels() []string {
	out := make([]string, 0, len(r.undo))
	for _, snap := range r.undo {
		out = append(out, snap.Label)
	}
	return out
}

func (r *Registry) rollback() {
	if len(r.undo) == 0 {
		return
	}
	last := r.undo[len(r.undo)-1]
	r.undo = r.undo[:len(r.undo)-1]
	r.load(last.Sessions)
	r.nextID = last.NextID
}

func (r *Registry) record(label string) {
	if r.batching {
		return
	}
	r.push(label)
}

func (r *Registry) push(label string) {
	r.undo = append(r.undo, Snapshot{
		Label:    label,
		Sessions: r.List(),
		NextID:   r.nextID,
		At:       time.Now().UTC(),
	})
	if len(r.undo) > r.depth {
		r.undo = r.undo[len(r.undo)-r.depth:]
	}
}

func (r *Registry) index(id int) int {
	for i, s := range r.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}
