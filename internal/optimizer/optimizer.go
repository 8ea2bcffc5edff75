// Package optimizer rearranges a timetable heuristically on a private copy.
//
// A run goes through prepare, units, heuristics, resolve, validate and result.
// Locked sessions never move and coupled practicals move as one unit. The input
// slice is never modified; callers decide whether to apply the result.
package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/coupling"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// ResolveStep is the minute granularity of the residual conflict search.
const ResolveStep = 15

// Progress is emitted between filières and phases.
type Progress struct {
	Step    int    `json:"step"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events; it runs on the optimizer goroutine.
type ProgressFunc func(Progress)

// Relocation records one accepted unit move.
type Relocation struct {
	SessionIDs []int      `json:"sessionIds"`
	Heuristic  string     `json:"heuristic"`
	FromDay    models.Day `json:"fromDay"`
	FromSlot   string     `json:"fromSlot"`
	ToDay      models.Day `json:"toDay"`
	ToSlot     string     `json:"toSlot"`
}

// Result is the outcome of a run.
type Result struct {
	OptimizedSessions []models.Session `json:"optimizedSessions"`
	OriginalStats     Stats            `json:"originalStats"`
	OptimizedStats    Stats            `json:"optimizedStats"`
	Improvement       float64          `json:"improvement"`
	Moves             []Relocation     `json:"moves"`
	Repaired          []int            `json:"repaired,omitempty"`
	Warnings          []string         `json:"warnings,omitempty"`
	Options           Options          `json:"options"`
	Duration          time.Duration    `json:"duration"`
}

// Optimizer runs optimization passes against one detector configuration.
type Optimizer struct {
	detector *conflict.Detector
	coupler  *coupling.Coordinator
	logger   *zap.Logger
}

// New builds an optimizer.
func New(detector *conflict.Detector, logger *zap.Logger) *Optimizer {
	if detector == nil {
		detector = conflict.NewDetector(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{detector: detector, coupler: coupling.New(detector), logger: logger}
}

type run struct {
	opts        Options
	grid        *timegrid.Grid
	detector    *conflict.Detector
	coupler     *coupling.Coordinator
	work        []models.Session
	units       []Unit
	unitOf      map[int]Unit
	filieres    []string
	budget      int
	hasCoupling bool
	moves       []Relocation
	warnings    []string
	progress    ProgressFunc
	step        int
	total       int
}

// Optimize runs every phase and returns the proposed timetable.
func (o *Optimizer) Optimize(ctx context.Context, sessions []models.Session, opts Options, progress ProgressFunc) (*Result, error) {
	started := time.Now()
	opts = opts.Normalize()

	// prepare
	original := models.CloneSessions(sessions)
	r := &run{
		opts:     opts,
		grid:     o.detector.Grid(),
		detector: o.detector,
		coupler:  o.coupler,
		work:     models.CloneSessions(sessions),
		budget:   opts.MaxIterations,
		progress: progress,
	}
	for _, slot := range r.grid.Slots() {
		if _, ok := r.grid.SlotAfter(slot.Label); ok {
			r.hasCoupling = true
			break
		}
	}
	pairs := o.coupler.DetectPairs(original)
	r.filieres = filieresOf(original)
	r.total = len(opts.Heuristics)*len(r.filieres) + 2

	// units
	r.units = buildUnits(r.work, pairs, o.coupler, r.grid)
	r.unitOf = make(map[int]Unit, len(r.work))
	for _, u := range r.units {
		for _, id := range u.IDs() {
			r.unitOf[id] = u
		}
	}

	// heuristics
	for _, h := range opts.Heuristics {
		for _, filiere := range r.filieres {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			units := r.unitsOf(filiere)
			switch h {
			case HeuristicSubjectGrouping:
				r.groupSubjects(units)
			case HeuristicLoadBalancing:
				r.balanceLoad(filiere, units)
			case HeuristicPreferredSlots:
				r.preferSlots(units)
			case HeuristicGapRemoval:
				r.removeGaps(filiere)
			case HeuristicHalfDayBalance:
				r.balanceHalfDays(filiere, units)
			}
			r.emit(fmt.Sprintf("%s: %s", h, displayFiliere(filiere)))
		}
	}
	if r.budget <= 0 {
		r.warn(fmt.Sprintf("iteration budget of %d exhausted; remaining heuristics skipped", opts.MaxIterations))
	}

	// resolve
	r.resolve()
	r.emit("resolve residual conflicts")

	// validate
	repaired, err := o.validate(original, pairs, r)
	if err != nil {
		o.logger.Warn("optimization aborted", zap.Error(err))
		return nil, err
	}
	r.emit("validate")

	// result
	originalStats := ComputeStats(original, o.detector, opts)
	optimizedStats := ComputeStats(r.work, o.detector, opts)
	result := &Result{
		OptimizedSessions: r.work,
		OriginalStats:     originalStats,
		OptimizedStats:    optimizedStats,
		Improvement:       optimizedStats.Score - originalStats.Score,
		Moves:             r.moves,
		Repaired:          repaired,
		Warnings:          r.warnings,
		Options:           opts,
		Duration:          time.Since(started),
	}
	o.logger.Info("optimization finished",
		zap.Int("sessions", len(r.work)),
		zap.Int("moves", len(r.moves)),
		zap.Int("conflicts_before", originalStats.Conflicts),
		zap.Int("conflicts_after", optimizedStats.Conflicts),
		zap.Float64("improvement", result.Improvement),
	)
	return result, nil
}

// validate checks counts, locks, conflicts and couples, repairing broken couples once.
func (o *Optimizer) validate(original []models.Session, pairs []coupling.Pair, r *run) ([]int, error) {
	if err := checkIdentity(original, r.work); err != nil {
		return nil, err
	}
	if err := checkLocks(original, r.work); err != nil {
		return nil, err
	}

	var repaired []int
	if broken := brokenPairs(pairs, o.coupler.DetectPairs(r.work)); len(broken) > 0 {
		result := o.coupler.Repair(broken, r.work)
		if len(result.Failed) > 0 {
			return nil, appErrors.Clone(appErrors.ErrCouplingViolation, fmt.Sprintf("coupled TP repair failed for sessions %v", result.Failed))
		}
		r.work = result.Sessions
		repaired = result.Repaired
		r.warn(fmt.Sprintf("repaired %d separated coupled TP", len(repaired)))
		if err := checkLocks(original, r.work); err != nil {
			return nil, err
		}
		if left := brokenPairs(pairs, o.coupler.DetectPairs(r.work)); len(left) > 0 {
			return nil, appErrors.Clone(appErrors.ErrCouplingViolation, fmt.Sprintf("%d coupled TP still separated", len(left)))
		}
	}

	before := o.detector.CountBlocking(original)
	after := o.detector.CountBlocking(r.work)
	if after > before {
		return nil, appErrors.Clone(appErrors.ErrOptimizerInvariant, fmt.Sprintf("conflicts increased from %d to %d", before, after))
	}
	return repaired, nil
}

func checkIdentity(original, work []models.Session) error {
	if len(original) != len(work) {
		return appErrors.Clone(appErrors.ErrOptimizerInvariant, fmt.Sprintf("session count changed from %d to %d", len(original), len(work)))
	}
	ids := make(map[int]bool, len(original))
	for _, s := range original {
		ids[s.ID] = true
	}
	for _, s := range work {
		if !ids[s.ID] {
			return appErrors.Clone(appErrors.ErrOptimizerInvariant, fmt.Sprintf("unexpected session #%d", s.ID))
		}
	}
	return nil
}

func checkLocks(original, work []models.Session) error {
	byID := make(map[int]models.Session, len(work))
	for _, s := range work {
		byID[s.ID] = s
	}
	for _, s := range original {
		if !s.Locked {
			continue
		}
		if got, ok := byID[s.ID]; !ok || !got.Equal(s) {
			return appErrors.Clone(appErrors.ErrOptimizerInvariant, fmt.Sprintf("locked session #%d was altered", s.ID))
		}
	}
	return nil
}

func brokenPairs(original, current []coupling.Pair) []coupling.Pair {
	alive := make(map[coupling.Pair]bool, len(current))
	for _, p := range current {
		alive[p] = true
	}
	var broken []coupling.Pair
	for _, p := range original {
		if !alive[p] {
			broken = append(broken, p)
		}
	}
	return broken
}

func (r *run) emit(message string) {
	r.step++
	if r.progress != nil {
		r.progress(Progress{Step: r.step, Total: r.total, Message: message})
	}
}

func (r *run) warn(message string) {
	r.warnings = append(r.warnings, message)
}

func (r *run) unitsOf(filiere string) []Unit {
	var out []Unit
	for _, u := range r.units {
		if u.Members()[0].Filiere == filiere {
			out = append(out, u)
		}
	}
	return out
}

// probe returns the proposed placement when it fits the window and clears the detector.
func (r *run) probe(u Unit, day models.Day, start int) ([]models.Session, bool) {
	curDay, curStart := u.Placement()
	if curDay == day && curStart == start {
		return nil, false
	}
	placed := u.Propose(day, start)
	for _, p := range placed {
		s, e, ok := r.grid.Range(p)
		if !ok || s < r.opts.DayStart || e > r.opts.DayEnd {
			return nil, false
		}
	}
	for _, p := range placed {
		if r.detector.Detect(p, r.work, u.IDs()...).HasBlocking() {
			return nil, false
		}
	}
	return placed, true
}

// tryMove spends one iteration on a candidate and commits it when accepted.
func (r *run) tryMove(u Unit, day models.Day, start int, heuristic Heuristic) bool {
	if r.budget <= 0 {
		return false
	}
	r.budget--
	placed, ok := r.probe(u, day, start)
	if !ok {
		return false
	}
	r.commit(u, placed, string(heuristic))
	return true
}

func (r *run) commit(u Unit, placed []models.Session, heuristic string) {
	before := u.Members()[0]
	u.Commit(placed)
	r.moves = append(r.moves, Relocation{
		SessionIDs: u.IDs(),
		Heuristic:  heuristic,
		FromDay:    before.Day,
		FromSlot:   before.Slot,
		ToDay:      placed[0].Day,
		ToSlot:     placed[0].Slot,
	})
}

// starts lists candidate start minutes for a unit on the grid.
// Coupled units only start on slots that open a couple when the grid defines any.
func (r *run) starts(u Unit) []int {
	_, coupled := u.(*CoupledTPUnit)
	var out []int
	for _, slot := range r.grid.Slots() {
		if coupled && r.hasCoupling {
			if _, ok := r.grid.SlotAfter(slot.Label); !ok {
				continue
			}
		}
		out = append(out, slot.Start)
	}
	return out
}

// resolve relocates every still-conflicting unit to the first free position in 15 minute steps.
func (r *run) resolve() {
	for _, u := range r.units {
		if !r.conflicting(u) {
			continue
		}
		if r.relocate(u) {
			continue
		}
		r.warn(fmt.Sprintf("session #%d still conflicting; kept in place", u.IDs()[0]))
	}
}

func (r *run) conflicting(u Unit) bool {
	for _, m := range u.Members() {
		if r.detector.Detect(m, r.work, u.IDs()...).HasBlocking() {
			return true
		}
	}
	return false
}

// relocate moves u to the first conflict-free position. Couples stay on coupling
// starts when the grid defines any; other units also try every ResolveStep.
func (r *run) relocate(u Unit) bool {
	candidates := r.starts(u)
	if _, coupled := u.(*CoupledTPUnit); !coupled || !r.hasCoupling {
		for start := r.opts.DayStart; start < r.opts.DayEnd; start += ResolveStep {
			candidates = append(candidates, start)
		}
	}
	for _, day := range r.opts.Days {
		for _, start := range candidates {
			if placed, ok := r.probe(u, day, start); ok {
				r.commit(u, placed, "resolve")
				return true
			}
		}
	}
	return false
}

func filieresOf(sessions []models.Session) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sessions {
		if !seen[s.Filiere] {
			seen[s.Filiere] = true
			out = append(out, s.Filiere)
		}
	}
	sort.Strings(out)
	return out
}

func displayFiliere(f string) string {
	if f == "" {
		return "(none)"
	}
	return f
}
