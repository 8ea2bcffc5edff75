package optimizer

import (
	"sort"

	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// groupSubjects pulls each subject's units onto the day most of them already use.
func (r *run) groupSubjects(units []Unit) {
	bySubject := make(map[string][]Unit)
	var subjects []string
	for _, u := range units {
		key := models.NormalizeName(u.Members()[0].Subject)
		if _, ok := bySubject[key]; !ok {
			subjects = append(subjects, key)
		}
		bySubject[key] = append(bySubject[key], u)
	}
	sort.Strings(subjects)

	for _, subject := range subjects {
		modal, ok := r.modalDay(subject, units[0].Members()[0].Filiere)
		if !ok {
			continue
		}
		for _, u := range bySubject[subject] {
			day, start := u.Placement()
			if day == modal {
				continue
			}
			if r.tryMove(u, modal, start, HeuristicSubjectGrouping) {
				continue
			}
			for _, candidate := range r.starts(u) {
				if r.tryMove(u, modal, candidate, HeuristicSubjectGrouping) {
					break
				}
			}
		}
	}
}

// modalDay counts every placement of the subject, fixed ones included; ties go to the earlier day.
func (r *run) modalDay(subject, filiere string) (models.Day, bool) {
	counts := make(map[models.Day]int)
	counted := make(map[int]bool)
	for _, s := range r.work {
		if s.Filiere != filiere || models.NormalizeName(s.Subject) != subject || counted[s.ID] {
			continue
		}
		if u, ok := r.unitOf[s.ID]; ok {
			for _, id := range u.IDs() {
				counted[id] = true
			}
		}
		counts[s.Day]++
	}
	best, bestCount := models.Day(""), 0
	for _, day := range r.opts.Days {
		if counts[day] > bestCount {
			best, bestCount = day, counts[day]
		}
	}
	return best, bestCount > 0
}

// balanceLoad moves units from the busiest day of a filière to its quietest one.
func (r *run) balanceLoad(filiere string, units []Unit) {
	for attempts := 0; attempts < len(units); attempts++ {
		loads := dailyLoads(r.work, r.grid)[filiere]
		total := 0
		for _, day := range r.opts.Days {
			total += loads[day]
		}
		if total == 0 {
			return
		}
		mean := float64(total) / float64(len(r.opts.Days))
		busiest, quietest := r.opts.Days[0], r.opts.Days[0]
		for _, day := range r.opts.Days {
			if loads[day] > loads[busiest] {
				busiest = day
			}
			if loads[day] < loads[quietest] {
				quietest = day
			}
		}
		tolerance := mean * r.opts.LoadTolerance
		if float64(loads[busiest])-mean <= tolerance && mean-float64(loads[quietest]) <= tolerance {
			return
		}
		if !r.moveOneTo(units, busiest, quietest) {
			return
		}
	}
}

func (r *run) moveOneTo(units []Unit, from, to models.Day) bool {
	for _, u := range units {
		day, start := u.Placement()
		if day != from {
			continue
		}
		if r.tryMove(u, to, start, HeuristicLoadBalancing) {
			return true
		}
		for _, candidate := range r.starts(u) {
			if r.tryMove(u, to, candidate, HeuristicLoadBalancing) {
				return true
			}
		}
	}
	return false
}

// preferSlots moves units into their type's preferred half-day on the same day.
// Units taught by a teacher who ranked the subject first are served first.
func (r *run) preferSlots(units []Unit) {
	ordered := append([]Unit(nil), units...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return r.wished(ordered[i]) && !r.wished(ordered[j])
	})
	for _, u := range ordered {
		lead := u.Members()[0]
		period := r.opts.PeriodFor(lead.Type)
		day, start := u.Placement()
		if period.Accepts(start) {
			continue
		}
		for _, candidate := range r.starts(u) {
			if !period.Accepts(candidate) {
				continue
			}
			if r.tryMove(u, day, candidate, HeuristicPreferredSlots) {
				break
			}
		}
	}
}

func (r *run) wished(u Unit) bool {
	lead := u.Members()[0]
	subject := models.NormalizeName(lead.Subject)
	for _, teacher := range lead.Teachers {
		if wish, ok := r.opts.Wishes[teacher]; ok && models.NormalizeName(wish.FirstChoice()) == subject {
			return true
		}
	}
	return false
}

// removeGaps compacts each (day, audience) timeline of a filière, keeping MinBreak.
func (r *run) removeGaps(filiere string) {
	mine := make([]models.Session, 0)
	for _, s := range r.work {
		if s.Filiere == filiere {
			mine = append(mine, s)
		}
	}
	lines := timelines(mine, r.grid)
	keys := make([]string, 0, len(lines))
	for key := range lines {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		tl := lines[key]
		for i := 1; i < len(tl.ids); i++ {
			prevEnd := tl.ends[i-1]
			if idle(prevEnd, tl.starts[i]) <= r.opts.Break() {
				continue
			}
			u, ok := r.unitOf[tl.ids[i]]
			if !ok || u.IDs()[0] != tl.ids[i] {
				continue
			}
			day, _ := u.Placement()
			for _, candidate := range r.gapCandidates(u, prevEnd, tl.starts[i]) {
				if r.tryMove(u, day, candidate, HeuristicGapRemoval) {
					break
				}
			}
		}
	}
}

func (r *run) gapCandidates(u Unit, prevEnd, current int) []int {
	var out []int
	for _, start := range r.starts(u) {
		if start >= prevEnd && start < current {
			out = append(out, start)
		}
	}
	if off := prevEnd + r.opts.Break(); off < current {
		if _, onGrid := r.grid.SlotStartingAt(off); !onGrid {
			if _, coupled := u.(*CoupledTPUnit); !coupled || !r.hasCoupling {
				out = append(out, off)
			}
		}
	}
	sort.Ints(out)
	return out
}

// balanceHalfDays evens out morning and afternoon counts per day, leaving units
// already sitting in their preferred half alone.
func (r *run) balanceHalfDays(filiere string, units []Unit) {
	for _, day := range r.opts.Days {
		for attempts := 0; attempts < len(units); attempts++ {
			morning, afternoon := 0, 0
			for _, s := range r.work {
				if s.Filiere != filiere || s.Day != day {
					continue
				}
				if start, _, ok := r.grid.Range(s); ok {
					if timegrid.IsMorning(start) {
						morning++
					} else {
						afternoon++
					}
				}
			}
			diff := morning - afternoon
			if diff <= 1 && diff >= -1 {
				break
			}
			toMorning := diff < 0
			if !r.shiftHalf(units, day, toMorning) {
				break
			}
		}
	}
}

func (r *run) shiftHalf(units []Unit, day models.Day, toMorning bool) bool {
	target := PeriodAfternoon
	if toMorning {
		target = PeriodMorning
	}
	for _, u := range units {
		d, start := u.Placement()
		if d != day || target.Accepts(start) {
			continue
		}
		if pref := r.opts.PeriodFor(u.Members()[0].Type); pref != PeriodAny && pref.Accepts(start) {
			continue
		}
		for _, candidate := range r.starts(u) {
			if !target.Accepts(candidate) {
				continue
			}
			if r.tryMove(u, day, candidate, HeuristicHalfDayBalance) {
				return true
			}
		}
	}
	return false
}
