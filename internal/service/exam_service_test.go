package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/repository"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

func examRequest(date string, students int) dto.ExamRequest {
	return dto.ExamRequest{
		Title:         "Analyse",
		Date:          date,
		StartTime:     "08:30",
		EndTime:       "10h30",
		Filiere:       "GI",
		Subjects:      []string{"Analyse", " "},
		StudentsCount: students,
	}
}

func TestExamAllocationSkipsClaimedRooms(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{})
	svc := NewExamService(ws, nil)
	ctx := context.Background()

	first, err := svc.Create(ctx, examRequest("2026-06-10", 250))
	require.NoError(t, err)
	assert.Equal(t, "8h30", first.StartTime)
	assert.Equal(t, []string{"Analyse"}, first.Subjects)

	result, err := svc.AllocateRooms(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ExamAllocation{
		{Room: "Amphi1", Students: 200},
		{Room: "A1", Students: 40},
		{Room: "A4", Students: 10},
	}, result.Allocations)
	assert.Equal(t, 0, result.Remaining)

	second, err := svc.Create(ctx, examRequest("2026-06-10", 30))
	require.NoError(t, err)
	result, err = svc.AllocateRooms(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ExamAllocation{{Room: "A7", Students: 30}}, result.Allocations)
	assert.ElementsMatch(t, []string{"Amphi1", "A1", "A4"}, result.SkippedRooms)

	conflicts, err := svc.Conflicts(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.Len(t, svc.List(ctx), 2)
}

func TestExamAllocationUsesRoomConfigs(t *testing.T) {
	rec := &events.Recorder{}
	ws := newTestWorkspace(t, nil, rec)
	svc := NewExamService(ws, nil)
	ctx := context.Background()

	configs, err := svc.UpdateRoomConfigs(ctx, dto.RoomConfigsRequest{Configs: []models.ExamRoomConfig{
		{Room: " A1 ", Enabled: true},
		{Room: "A4", Capacity: 100, Enabled: true},
		{Room: "A7", Capacity: 50, Enabled: false},
	}})
	require.NoError(t, err)
	assert.Equal(t, "A1", configs[0].Room)
	assert.Equal(t, []events.Type{events.ExamRoomConfigUpdated}, rec.Types())

	created, err := svc.Create(ctx, examRequest("2026-06-11", 150))
	require.NoError(t, err)
	result, err := svc.AllocateRooms(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []models.ExamAllocation{
		{Room: "A4", Students: 100},
		{Room: "A1", Students: 40},
	}, result.Allocations)
	assert.Equal(t, 10, result.Remaining)

	stored, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Allocations, 2)
}

func TestExamUpdateDropsAllocationsWhenRescheduled(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{})
	svc := NewExamService(ws, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, examRequest("2026-06-10", 20))
	require.NoError(t, err)
	_, err = svc.AllocateRooms(ctx, created.ID)
	require.NoError(t, err)

	req := examRequest("2026-06-10", 20)
	req.Title = "Analyse 2"
	updated, err := svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Len(t, updated.Allocations, 1)

	req.StudentsCount = 10
	updated, err = svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Empty(t, updated.Allocations)
	_, err = svc.AllocateRooms(ctx, created.ID)
	require.NoError(t, err)

	req.Date = "2026-06-12"
	updated, err = svc.Update(ctx, created.ID, req)
	require.NoError(t, err)
	assert.Empty(t, updated.Allocations)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestExamValidation(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{})
	svc := NewExamService(ws, nil)

	req := examRequest("2026-06-10", 20)
	req.EndTime = "8h00"
	_, err := svc.Create(context.Background(), req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = examRequest("10/06/2026", 20)
	_, err = svc.Create(context.Background(), req)
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"date"}, verr.Missing)
}

func TestExamCreateRestoresOnStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: repository.NewMemoryStore(), fail: true}
	ws := newTestWorkspace(t, store, &events.Recorder{})
	svc := NewExamService(ws, nil)

	_, err := svc.Create(context.Background(), examRequest("2026-06-10", 20))
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Empty(t, svc.List(context.Background()))
}

func TestExamSlots(t *testing.T) {
	svc := NewExamService(newTestWorkspace(t, nil, &events.Recorder{}), nil)
	assert.Len(t, svc.Slots(), 4)
}
