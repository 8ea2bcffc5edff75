package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

func seed() []models.Session {
	return []models.Session{
		{ID: 3, Day: models.Monday, Slot: "8h30", Type: models.SessionCours, Subject: "Algebra", Filiere: "S1PC", Section: "A", Teachers: []string{"T1"}},
		{ID: 7, Day: models.Tuesday, Slot: "10h00", Type: models.SessionTD, Subject: "Algebra", Filiere: "S1PC", Section: "A", Subgroup: "G1"},
	}
}

func TestNewComputesNextID(t *testing.T) {
	r := New(seed(), 0, 0)
	assert.Equal(t, 8, r.NextID())

	r = New(seed(), 20, 0)
	assert.Equal(t, 20, r.NextID())
}

func TestAddAssignsMonotonicIDs(t *testing.T) {
	r := New(seed(), 0, 0)
	a := r.Add(models.Session{Subject: "Physics"})
	b := r.Add(models.Session{Subject: "Physics", ID: 999})
	assert.Equal(t, 8, a.ID)
	assert.Equal(t, 9, b.ID)
	assert.Equal(t, 10, r.NextID())
	assert.Equal(t, []string{"add", "add"}, r.UndoLabels())
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	r := New(seed(), 0, 0)
	assert.False(t, r.Remove(42))
	assert.Empty(t, r.UndoLabels())
	assert.True(t, r.Remove(3))
	assert.Equal(t, 1, r.Len())
}

func TestListIsCallerOwned(t *testing.T) {
	r := New(seed(), 0, 0)
	list := r.List()
	list[0].Teachers[0] = "changed"
	list[0].Room = "X"

	again, ok := r.FindByID(3)
	require.True(t, ok)
	assert.Equal(t, "T1", again.Teachers[0])
	assert.Empty(t, again.Room)
	assert.Equal(t, []int{3, 7}, ids(r.List()))
}

func TestUpdateInPlace(t *testing.T) {
	r := New(seed(), 0, 0)
	before := r.sessions[0]
	updated, ok := r.Update(3, func(s *models.Session) {
		s.Room = "Amphi A"
		s.ID = 100
	})
	require.True(t, ok)
	assert.Equal(t, 3, updated.ID)
	assert.Same(t, before, r.sessions[0])
	assert.Equal(t, "Amphi A", r.sessions[0].Room)
}

func TestReplaceAllRebuildsNextID(t *testing.T) {
	r := New(seed(), 50, 0)
	r.ReplaceAll([]models.Session{{ID: 12}, {ID: 4}})
	assert.Equal(t, 13, r.NextID())
	assert.Equal(t, []int{12, 4}, ids(r.List()))
}

func TestBatchRecordsOnceAndRollsBack(t *testing.T) {
	r := New(seed(), 0, 0)
	err := r.Batch("create", func(tx *Registry) error {
		tx.Add(models.Session{Subject: "A"})
		tx.Add(models.Session{Subject: "B"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"create"}, r.UndoLabels())
	assert.Equal(t, 4, r.Len())

	err = r.Batch("broken", func(tx *Registry) error {
		tx.Remove(3)
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 4, r.Len())
	assert.Equal(t, []string{"create"}, r.UndoLabels())

	err = r.Batch("panicky", func(tx *Registry) error {
		tx.Remove(3)
		panic("unexpected")
	})
	require.Error(t, err)
	assert.Equal(t, 4, r.Len())
}

func TestUndoRestoresButKeepsIDsMonotonic(t *testing.T) {
	r := New(seed(), 0, 0)
	added := r.Add(models.Session{Subject: "A"})
	label, ok := r.Undo()
	require.True(t, ok)
	assert.Equal(t, "add", label)
	_, found := r.FindByID(added.ID)
	assert.False(t, found)
	assert.Equal(t, added.ID+1, r.NextID())

	_, ok = r.Undo()
	assert.False(t, ok)
}

func TestUndoDepthIsBounded(t *testing.T) {
	r := New(nil, 0, 2)
	r.PushUndo("one")
	r.PushUndo("two")
	r.PushUndo("three")
	assert.Equal(t, []string{"two", "three"}, r.UndoLabels())
}

func TestQueries(t *testing.T) {
	r := New(seed(), 0, 0)
	assert.Len(t, r.ByDay(models.Monday), 1)
	assert.Len(t, r.ByTeacher(" t1 "), 1)
	assert.Len(t, r.ByGroup("S1PCAG1"), 1)
	assert.Len(t, r.BySlot(models.Tuesday, "10h00"), 1)
}

func ids(list []models.Session) []int {
	out := make([]int, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}
