package optimizer

import (
	"context"
	stdErrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/coupling"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

func testDetector() *conflict.Detector {
	return conflict.NewDetector(timegrid.DefaultGrid(), models.RoomCatalog{
		"Amphi B": {Kind: models.RoomAmphi, Capacity: 200},
		"A1":      {Kind: models.RoomStandard, Capacity: 40},
		"A4":      {Kind: models.RoomStandard, Capacity: 40},
		"STP-1":   {Kind: models.RoomSTP, Capacity: 20},
	})
}

func session(id int, day models.Day, slot string, t models.SessionType, subject, group, teacher, room string) models.Session {
	s := models.Session{
		ID: id, Day: day, Slot: slot, Type: t, Subject: subject,
		Filiere: "S1PC", Section: "A", Teachers: []string{teacher}, Room: room,
	}
	if t != models.SessionCours {
		s.Subgroup = group
	}
	return s
}

func findSession(t *testing.T, list []models.Session, id int) models.Session {
	t.Helper()
	for _, s := range list {
		if s.ID == id {
			return s
		}
	}
	require.FailNowf(t, "session missing", "id %d", id)
	return models.Session{}
}

func TestOptimizeMovesCoupledTPAsOneUnit(t *testing.T) {
	cours := session(1, models.Tuesday, "8h30", models.SessionCours, "Chimie", "", "T2", "Amphi B")
	cours.Locked = true
	td := session(2, models.Tuesday, "10h00", models.SessionTD, "Chimie", "G1", "T3", "A1")
	td.Locked = true
	first := session(3, models.Monday, "14h30", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	first.HTP = 3
	second := session(4, models.Monday, "16h00", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	other := session(5, models.Wednesday, "10h00", models.SessionTD, "Analyse", "G2", "T4", "A4")
	input := []models.Session{cours, td, first, second, other}

	opts := DefaultOptions()
	opts.Heuristics = []Heuristic{HeuristicSubjectGrouping}
	result, err := New(testDetector(), nil).Optimize(context.Background(), input, opts, nil)
	require.NoError(t, err)

	a := findSession(t, result.OptimizedSessions, 3)
	b := findSession(t, result.OptimizedSessions, 4)
	assert.Equal(t, models.Tuesday, a.Day)
	assert.Equal(t, "14h30", a.Slot)
	assert.Equal(t, models.Tuesday, b.Day)
	assert.Equal(t, "16h00", b.Slot)
	assert.Equal(t, 3.0, a.HTP)
	assert.Zero(t, b.HTP)

	assert.True(t, findSession(t, result.OptimizedSessions, 1).Equal(cours))
	assert.True(t, findSession(t, result.OptimizedSessions, 2).Equal(td))
	assert.True(t, findSession(t, result.OptimizedSessions, 5).Equal(other))
	assert.Zero(t, result.OptimizedStats.Conflicts)
	require.Len(t, result.Moves, 1)
	assert.Equal(t, []int{3, 4}, result.Moves[0].SessionIDs)
}

func TestOptimizeKeepsLockedSessionsAndClearsConflicts(t *testing.T) {
	locked := session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1")
	locked.Locked = true
	mobile := session(2, models.Monday, "8h30", models.SessionTD, "Physique", "G2", "T1", "A4")

	result, err := New(testDetector(), nil).Optimize(context.Background(), []models.Session{locked, mobile}, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.True(t, findSession(t, result.OptimizedSessions, 1).Equal(locked))
	assert.Equal(t, 1, result.OriginalStats.Conflicts)
	assert.Zero(t, result.OptimizedStats.Conflicts)
	assert.Greater(t, result.Improvement, 0.0)
	assert.LessOrEqual(t, result.OptimizedStats.Score, 100.0)
}

func TestOptimizeResolvesResidualConflicts(t *testing.T) {
	input := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		session(2, models.Monday, "8h30", models.SessionTD, "Physique", "G2", "T1", "A4"),
	}
	opts := DefaultOptions()
	opts.Heuristics = []Heuristic{HeuristicGapRemoval}

	result, err := New(testDetector(), nil).Optimize(context.Background(), input, opts, nil)
	require.NoError(t, err)

	moved := findSession(t, result.OptimizedSessions, 1)
	assert.Equal(t, models.Monday, moved.Day)
	assert.Equal(t, "10h00", moved.Slot)
	assert.Zero(t, result.OptimizedStats.Conflicts)
	require.NotEmpty(t, result.Moves)
	assert.Equal(t, "resolve", result.Moves[0].Heuristic)
}

func TestOptimizeWarnsWhenNoPositionIsFree(t *testing.T) {
	input := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		session(2, models.Monday, "8h30", models.SessionTD, "Physique", "G2", "T1", "A4"),
	}
	opts := DefaultOptions()
	opts.Heuristics = []Heuristic{HeuristicGapRemoval}
	opts.Days = []models.Day{models.Monday}
	opts.DayStart, opts.DayEnd = 8*60, 10*60

	result, err := New(testDetector(), nil).Optimize(context.Background(), input, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.OptimizedStats.Conflicts)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "still conflicting")
}

func TestOptimizeLeavesInputUntouched(t *testing.T) {
	input := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		session(2, models.Monday, "8h30", models.SessionTD, "Physique", "G2", "T1", "A4"),
	}
	snapshot := models.CloneSessions(input)

	_, err := New(testDetector(), nil).Optimize(context.Background(), input, DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Equal(t, snapshot, input)
}

func TestOptimizeConflictCountIsMonotone(t *testing.T) {
	input := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		session(2, models.Monday, "8h30", models.SessionTD, "Physique", "G2", "T1", "A1"),
		session(3, models.Monday, "10h00", models.SessionCours, "Analyse", "", "T5", "Amphi B"),
		session(4, models.Friday, "17h30", models.SessionTD, "Chimie", "G1", "T2", "A4"),
	}
	opt := New(testDetector(), nil)

	first, err := opt.Optimize(context.Background(), input, DefaultOptions(), nil)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), first.OptimizedSessions, DefaultOptions(), nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, first.OptimizedStats.Conflicts, first.OriginalStats.Conflicts)
	assert.Equal(t, first.OptimizedStats.Conflicts, second.OriginalStats.Conflicts)
	assert.LessOrEqual(t, second.OptimizedStats.Conflicts, second.OriginalStats.Conflicts)
}

func TestOptimizeReportsProgress(t *testing.T) {
	input := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		{ID: 2, Day: models.Tuesday, Slot: "8h30", Type: models.SessionTD, Subject: "Bio", Filiere: "S2SV", Section: "A", Subgroup: "G1", Room: "A4"},
	}
	var events []Progress
	_, err := New(testDetector(), nil).Optimize(context.Background(), input, DefaultOptions(), func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	require.Len(t, events, len(AllHeuristics)*2+2)
	last := events[len(events)-1]
	assert.Equal(t, last.Total, last.Step)
	assert.Equal(t, "validate", last.Message)
}

func TestOptimizeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(testDetector(), nil).Optimize(ctx, []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
	}, DefaultOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckLocksRejectsDrift(t *testing.T) {
	locked := session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1")
	locked.Locked = true
	drifted := locked
	drifted.Room = "A4"

	err := checkLocks([]models.Session{locked}, []models.Session{drifted})
	require.Error(t, err)
	assert.True(t, stdErrors.Is(err, appErrors.ErrOptimizerInvariant))

	err = checkIdentity([]models.Session{locked}, nil)
	assert.True(t, stdErrors.Is(err, appErrors.ErrOptimizerInvariant))
}

func TestCoupledTPUnitMove(t *testing.T) {
	grid := timegrid.DefaultGrid()
	first := session(1, models.Monday, "14h30", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	first.HTP = 3
	second := session(2, models.Monday, "16h00", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	unit := &CoupledTPUnit{first: &first, second: &second, coupler: coupling.New(testDetector()), grid: grid}

	unit.Move(models.Thursday, 8*60+30, 45)
	assert.Equal(t, models.Thursday, first.Day)
	assert.Equal(t, "8h30", first.Slot)
	assert.Equal(t, models.Thursday, second.Day)
	assert.Equal(t, 8*60+30+90+coupling.MaxGap, second.StartMinutes)
	assert.Equal(t, coupling.MaxGap, unit.Gap())
}

func TestNormalizeOptions(t *testing.T) {
	opts := Options{
		MinBreak:      intPtr(-5),
		DayStart:      5 * 60,
		DayEnd:        23*60 + 30,
		LoadTolerance: 0.01,
		MaxIterations: 10,
		Preferred:     map[models.SessionType]Period{models.SessionTD: PeriodMorning, models.SessionTP: "never"},
		Heuristics:    []Heuristic{HeuristicGapRemoval, "bogus", HeuristicSubjectGrouping},
		Days:          []models.Day{"Dimanche"},
	}.Normalize()

	assert.Equal(t, 15, opts.Break())
	assert.Equal(t, 6*60, opts.DayStart)
	assert.Equal(t, 23*60, opts.DayEnd)
	assert.Equal(t, 0.1, opts.LoadTolerance)
	assert.Equal(t, 100, opts.MaxIterations)
	assert.Equal(t, PeriodMorning, opts.PeriodFor(models.SessionTD))
	assert.Equal(t, PeriodAfternoon, opts.PeriodFor(models.SessionTP))
	assert.Equal(t, []Heuristic{HeuristicSubjectGrouping, HeuristicGapRemoval}, opts.Heuristics)
	assert.Equal(t, timegrid.Days, opts.Days)

	def := Options{}.Normalize()
	require.NotNil(t, def.MinBreak)
	assert.Equal(t, 15, *def.MinBreak)
	assert.Equal(t, 8*60, def.DayStart)
	assert.Equal(t, 18*60, def.DayEnd)
	assert.Equal(t, 0.2, def.LoadTolerance)
	assert.Equal(t, 1000, def.MaxIterations)

	noBreak := intPtr(0)
	explicit := Options{MinBreak: noBreak}.Normalize()
	assert.Equal(t, 0, explicit.Break())
	*noBreak = 30
	assert.Equal(t, 0, explicit.Break())
}

func TestStats(t *testing.T) {
	d := testDetector()
	opts := DefaultOptions()

	assert.Equal(t, 0, idle(13*60, 14*60+30))
	assert.Equal(t, 90, idle(11*60+30, 14*60+30))

	withGap := []models.Session{
		session(1, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"),
		session(2, models.Monday, "14h30", models.SessionTD, "Physique", "G1", "T2", "A1"),
	}
	stats := ComputeStats(withGap, d, opts)
	assert.Equal(t, 1, stats.Gaps)
	assert.Equal(t, 1, stats.Morning)
	assert.Equal(t, 1, stats.Afternoon)
	assert.Equal(t, 1.0, stats.Clustering)

	var clash []models.Session
	for i := 1; i <= 12; i++ {
		clash = append(clash, session(i, models.Monday, "8h30", models.SessionTD, "Analyse", "G1", "T1", "A1"))
	}
	assert.Equal(t, 0.0, ComputeStats(clash, d, opts).Score)
}

func TestResolveKeepsCoupleOnCouplingSlots(t *testing.T) {
	first := session(1, models.Monday, "8h30", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	first.HTP = 3
	second := session(2, models.Monday, "10h00", models.SessionTP, "Chimie", "G1", "T1", "STP-1")
	morning := session(3, models.Monday, "8h30", models.SessionTD, "Analyse", "G2", "T1", "A1")
	morning.Locked = true
	afternoon := session(4, models.Monday, "14h30", models.SessionTD, "Analyse", "G2", "T1", "A1")
	afternoon.Locked = true

	opts := DefaultOptions()
	opts.Heuristics = []Heuristic{HeuristicGapRemoval}
	result, err := New(testDetector(), nil).Optimize(context.Background(), []models.Session{first, second, morning, afternoon}, opts, nil)
	require.NoError(t, err)

	a := findSession(t, result.OptimizedSessions, 1)
	b := findSession(t, result.OptimizedSessions, 2)
	next, ok := timegrid.DefaultGrid().SlotAfter(a.Slot)
	require.True(t, ok, "first half left on %s %s", a.Day, a.Slot)
	assert.Equal(t, next, b.Slot)
	assert.Equal(t, a.Day, b.Day)
	assert.NotEqual(t, models.Monday, a.Day)
	assert.Zero(t, result.OptimizedStats.Conflicts)
	assert.Empty(t, coupling.New(testDetector()).CheckInvariant(result.OptimizedSessions))
	for _, move := range result.Moves {
		_, ok := timegrid.DefaultGrid().SlotAfter(move.ToSlot)
		assert.True(t, ok, "move to %s %s", move.ToDay, move.ToSlot)
	}
}
