package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edt-scheduler/internal/models"
)

func TestAllocateGreedyFillsLargestRoomFirst(t *testing.T) {
	exam := models.Exam{ID: "e1", Date: "2024-01-15", StartTime: "08:30", EndTime: "10:00", StudentsCount: 175}
	rooms := []models.CandidateRoom{{Name: "Std-12", Capacity: 50}, {Name: "Amphi B", Capacity: 200}, {Name: "Std-9", Capacity: 50}}

	result := Allocate(exam, rooms, nil)

	assert.Equal(t, []models.ExamAllocation{{Room: "Amphi B", Students: 175}}, result.Allocations)
	assert.Equal(t, 175, result.TotalAssigned)
	assert.Zero(t, result.Remaining)
}

func TestAllocateSplitsAndBreaksTiesByName(t *testing.T) {
	exam := models.Exam{ID: "e1", StudentsCount: 120}
	rooms := []models.CandidateRoom{{Name: "Std-9", Capacity: 50}, {Name: "Std-12", Capacity: 50}, {Name: "Std-3", Capacity: 10}}

	result := Allocate(exam, rooms, nil)

	assert.Equal(t, []models.ExamAllocation{
		{Room: "Std-12", Students: 50},
		{Room: "Std-9", Students: 50},
		{Room: "Std-3", Students: 10},
	}, result.Allocations)
	assert.Equal(t, 110, result.TotalAssigned)
	assert.Equal(t, 10, result.Remaining)
}

func TestAllocateZeroStudents(t *testing.T) {
	result := Allocate(models.Exam{ID: "e1"}, []models.CandidateRoom{{Name: "A", Capacity: 10}}, nil)
	assert.Empty(t, result.Allocations)
	assert.NotNil(t, result.Allocations)
	assert.Zero(t, result.TotalAssigned)
	assert.Zero(t, result.Remaining)
}

func TestAllocateSkipsRoomsClaimedByOverlappingExam(t *testing.T) {
	existing := []models.Exam{
		{ID: "busy", Date: "2024-01-15", StartTime: "08:30", EndTime: "10:00", Allocations: []models.ExamAllocation{{Room: "amphi b", Students: 80}}},
		{ID: "later", Date: "2024-01-15", StartTime: "14:30", EndTime: "16:00", Allocations: []models.ExamAllocation{{Room: "Std-12", Students: 40}}},
	}
	exam := models.Exam{ID: "e1", Date: "2024-01-15", StartTime: "09:00", EndTime: "10:30", StudentsCount: 90}
	rooms := []models.CandidateRoom{{Name: "Amphi B", Capacity: 200}, {Name: "Std-12", Capacity: 50}, {Name: "Std-9", Capacity: 50}}

	result := Allocate(exam, rooms, existing)

	assert.Equal(t, []string{"Amphi B"}, result.SkippedRooms)
	assert.Equal(t, []models.ExamAllocation{{Room: "Std-12", Students: 50}, {Room: "Std-9", Students: 40}}, result.Allocations)
	assert.Zero(t, result.Remaining)
}

func TestConflicts(t *testing.T) {
	e := models.Exam{ID: "e1", Date: "2024-01-15", StartTime: "08:30", EndTime: "10:00", Allocations: []models.ExamAllocation{{Room: "A1", Students: 10}}}
	others := []models.Exam{
		e,
		{ID: "e2", Date: "2024-01-15", StartTime: "09:30", EndTime: "11:00", Allocations: []models.ExamAllocation{{Room: " a1 ", Students: 5}}},
		{ID: "e3", Date: "2024-01-15", StartTime: "10:15", EndTime: "11:45", Allocations: []models.ExamAllocation{{Room: "A1", Students: 5}}},
		{ID: "e4", Date: "2024-01-16", StartTime: "08:30", EndTime: "10:00", Allocations: []models.ExamAllocation{{Room: "A1", Students: 5}}},
	}

	found := Conflicts(e, others)
	require.Len(t, found, 1)
	assert.Equal(t, models.ExamConflict{ExamID: "e1", OtherID: "e2", Room: "A1", Date: "2024-01-15"}, found[0])
}

func TestCandidatesFromConfigs(t *testing.T) {
	catalog := models.RoomCatalog{"Amphi B": {Kind: models.RoomAmphi, Capacity: 200}}
	configs := []models.ExamRoomConfig{
		{Room: "Amphi B", Enabled: true},
		{Room: "Std-9", Capacity: 30, Enabled: true},
		{Room: "Std-1", Capacity: 30},
	}
	assert.Equal(t, []models.CandidateRoom{{Name: "Amphi B", Capacity: 200}, {Name: "Std-9", Capacity: 30}}, CandidatesFromConfigs(configs, catalog))
}
