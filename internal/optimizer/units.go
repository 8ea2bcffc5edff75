package optimizer

import (
	"github.com/noah-isme/edt-scheduler/internal/coupling"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// Unit is the placement atom moved by the heuristics. A coupled TP is one unit,
// so its halves are never relocated independently.
type Unit interface {
	IDs() []int
	Members() []models.Session
	Placement() (models.Day, int)
	Propose(day models.Day, start int) []models.Session
	Commit(placed []models.Session)
}

// SimpleUnit wraps a single mobile session.
type SimpleUnit struct {
	session *models.Session
	grid    *timegrid.Grid
}

// IDs returns the wrapped session id.
func (u *SimpleUnit) IDs() []int { return []int{u.session.ID} }

// Members returns a copy of the session.
func (u *SimpleUnit) Members() []models.Session { return []models.Session{u.session.Clone()} }

// Placement returns the current day and start minute.
func (u *SimpleUnit) Placement() (models.Day, int) {
	start, _, _ := u.grid.Range(*u.session)
	return u.session.Day, start
}

// Propose places a copy at the target keeping the session's duration.
func (u *SimpleUnit) Propose(day models.Day, start int) []models.Session {
	duration := timegrid.DefaultDuration
	if s, e, ok := u.grid.Range(*u.session); ok {
		duration = e - s
	}
	moved := u.session.Clone()
	u.grid.Place(&moved, day, start, duration)
	return []models.Session{moved}
}

// Commit writes an accepted proposal back.
func (u *SimpleUnit) Commit(placed []models.Session) {
	*u.session = placed[0]
}

// CoupledTPUnit wraps both halves of a coupled TP.
type CoupledTPUnit struct {
	first   *models.Session
	second  *models.Session
	coupler *coupling.Coordinator
	grid    *timegrid.Grid
}

// IDs returns the first then second half ids.
func (u *CoupledTPUnit) IDs() []int { return []int{u.first.ID, u.second.ID} }

// Members returns copies of both halves.
func (u *CoupledTPUnit) Members() []models.Session {
	return []models.Session{u.first.Clone(), u.second.Clone()}
}

// Placement is the first half's day and start.
func (u *CoupledTPUnit) Placement() (models.Day, int) {
	start, _, _ := u.grid.Range(*u.first)
	return u.first.Day, start
}

// Gap is the current break between the halves.
func (u *CoupledTPUnit) Gap() int {
	_, firstEnd, ok := u.grid.Range(*u.first)
	secondStart, _, ok2 := u.grid.Range(*u.second)
	if !ok || !ok2 || secondStart < firstEnd {
		return 0
	}
	return secondStart - firstEnd
}

// Propose plans both halves with the coordinator, preserving the gap.
func (u *CoupledTPUnit) Propose(day models.Day, start int) []models.Session {
	a, b := u.coupler.PlanMove(*u.first, *u.second, day, start)
	return []models.Session{a, b}
}

// Commit writes both halves at once.
func (u *CoupledTPUnit) Commit(placed []models.Session) {
	*u.first = placed[0]
	*u.second = placed[1]
}

// Move relocates both halves with an explicit gap, clamped to the coupling limit.
func (u *CoupledTPUnit) Move(day models.Day, start, gap int) {
	if gap < 0 {
		gap = 0
	}
	if gap > coupling.MaxGap {
		gap = coupling.MaxGap
	}
	firstDuration, secondDuration := timegrid.DefaultDuration, timegrid.DefaultDuration
	if s, e, ok := u.grid.Range(*u.first); ok {
		firstDuration = e - s
	}
	if s, e, ok := u.grid.Range(*u.second); ok {
		secondDuration = e - s
	}
	u.grid.Place(u.first, day, start, firstDuration)
	u.grid.Place(u.second, day, start+firstDuration+gap, secondDuration)
}

// buildUnits wraps the mobile sessions of work. Couples with a locked half stay fixed.
func buildUnits(work []models.Session, pairs []coupling.Pair, coupler *coupling.Coordinator, grid *timegrid.Grid) []Unit {
	index := make(map[int]int, len(work))
	for i := range work {
		index[work[i].ID] = i
	}

	coupled := make(map[int]coupling.Pair, len(pairs)*2)
	for _, p := range pairs {
		coupled[p.FirstID] = p
		coupled[p.SecondID] = p
	}

	var units []Unit
	for i := range work {
		s := &work[i]
		if p, ok := coupled[s.ID]; ok {
			if s.ID != p.FirstID {
				continue
			}
			second := &work[index[p.SecondID]]
			if s.Locked || second.Locked {
				continue
			}
			units = append(units, &CoupledTPUnit{first: s, second: second, coupler: coupler, grid: grid})
			continue
		}
		if s.Locked {
			continue
		}
		units = append(units, &SimpleUnit{session: s, grid: grid})
	}
	return units
}
