package optimizer

import (
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
)

// Heuristic names one improvement pass.
type Heuristic string

const (
	HeuristicSubjectGrouping Heuristic = "subject_grouping"
	HeuristicLoadBalancing   Heuristic = "load_balancing"
	HeuristicPreferredSlots  Heuristic = "preferred_slots"
	HeuristicGapRemoval      Heuristic = "gap_removal"
	HeuristicHalfDayBalance  Heuristic = "half_day_balance"
)

// AllHeuristics is the execution order of the passes.
var AllHeuristics = []Heuristic{
	HeuristicSubjectGrouping,
	HeuristicLoadBalancing,
	HeuristicPreferredSlots,
	HeuristicGapRemoval,
	HeuristicHalfDayBalance,
}

// Period is a preferred half of the day.
type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
	PeriodAny       Period = "any"
)

// Accepts reports whether a placement starting at minutes lies in the period.
func (p Period) Accepts(minutes int) bool {
	switch p {
	case PeriodMorning:
		return timegrid.IsMorning(minutes)
	case PeriodAfternoon:
		return !timegrid.IsMorning(minutes)
	}
	return true
}

const (
	minWindowStart = 6 * 60
	maxWindowEnd   = 23 * 60
	minIterations  = 100
	minTolerance   = 0.1

	defaultMinBreak = 15
)

// Options tunes an optimization run.
type Options struct {
	MinBreak      *int                          `json:"minBreak,omitempty"`
	DayStart      int                           `json:"dayStart"`
	DayEnd        int                           `json:"dayEnd"`
	LoadTolerance float64                       `json:"loadTolerance"`
	MaxIterations int                           `json:"maxIterations"`
	Preferred     map[models.SessionType]Period `json:"preferred,omitempty"`
	Heuristics    []Heuristic                   `json:"heuristics,omitempty"`
	Days          []models.Day                  `json:"days,omitempty"`
	Wishes        map[string]models.TeacherWish `json:"-"`
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinBreak:      intPtr(defaultMinBreak),
		DayStart:      8 * 60,
		DayEnd:        18 * 60,
		LoadTolerance: 0.2,
		MaxIterations: 1000,
		Preferred: map[models.SessionType]Period{
			models.SessionCours: PeriodMorning,
			models.SessionTD:    PeriodAfternoon,
			models.SessionTP:    PeriodAfternoon,
		},
		Heuristics: append([]Heuristic(nil), AllHeuristics...),
		Days:       append([]models.Day(nil), timegrid.Days...),
	}
}

// Normalize clamps every field into its accepted range, filling gaps from the defaults.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	out := o

	if out.MinBreak == nil || *out.MinBreak < 0 {
		out.MinBreak = def.MinBreak
	} else {
		out.MinBreak = intPtr(*out.MinBreak)
	}
	if out.DayStart == 0 && out.DayEnd == 0 {
		out.DayStart, out.DayEnd = def.DayStart, def.DayEnd
	}
	if out.DayStart < minWindowStart {
		out.DayStart = minWindowStart
	}
	if out.DayEnd > maxWindowEnd || out.DayEnd <= 0 {
		out.DayEnd = maxWindowEnd
	}
	if out.DayEnd <= out.DayStart {
		out.DayStart, out.DayEnd = def.DayStart, def.DayEnd
	}
	if out.LoadTolerance == 0 {
		out.LoadTolerance = def.LoadTolerance
	}
	if out.LoadTolerance < minTolerance {
		out.LoadTolerance = minTolerance
	}
	if out.MaxIterations == 0 {
		out.MaxIterations = def.MaxIterations
	}
	if out.MaxIterations < minIterations {
		out.MaxIterations = minIterations
	}

	preferred := make(map[models.SessionType]Period, len(def.Preferred))
	for t, p := range def.Preferred {
		preferred[t] = p
	}
	for t, p := range o.Preferred {
		switch p {
		case PeriodMorning, PeriodAfternoon, PeriodAny:
			preferred[t] = p
		}
	}
	out.Preferred = preferred

	if len(out.Heuristics) == 0 {
		out.Heuristics = def.Heuristics
	} else {
		enabled := make(map[Heuristic]bool, len(out.Heuristics))
		for _, h := range out.Heuristics {
			enabled[h] = true
		}
		ordered := make([]Heuristic, 0, len(enabled))
		for _, h := range AllHeuristics {
			if enabled[h] {
				ordered = append(ordered, h)
			}
		}
		out.Heuristics = ordered
	}

	days := make([]models.Day, 0, len(out.Days))
	seen := make(map[models.Day]bool)
	for _, d := range out.Days {
		if timegrid.DayIndex(d) >= 0 && !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		days = def.Days
	}
	out.Days = days

	return out
}

// Break returns the minimum break in minutes. An unset break takes the default.
func (o Options) Break() int {
	if o.MinBreak == nil || *o.MinBreak < 0 {
		return defaultMinBreak
	}
	return *o.MinBreak
}

func intPtr(v int) *int { return &v }

// Enabled reports whether a heuristic will run.
func (o Options) Enabled(h Heuristic) bool {
	for _, x := range o.Heuristics {
		if x == h {
			return true
		}
	}
	return false
}

// PeriodFor returns the preferred period of a session type.
func (o Options) PeriodFor(t models.SessionType) Period {
	if p, ok := o.Preferred[t]; ok {
		return p
	}
	return PeriodAny
}
