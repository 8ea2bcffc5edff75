package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/exam"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// ExamService manages exams and their room allocations.
type ExamService struct {
	ws        *Workspace
	validator *validator.Validate
	logger    *zap.Logger
}

// NewExamService constructs the exam service.
func NewExamService(ws *Workspace, logger *zap.Logger) *ExamService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExamService{ws: ws, validator: newValidator(), logger: logger}
}

// List returns the exams ordered by date then start time.
func (s *ExamService) List(_ context.Context) []models.Exam {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	out := cloneExams(s.ws.doc.Exams)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		a, _, _ := exam.Window(out[i])
		b, _, _ := exam.Window(out[j])
		return a < b
	})
	return out
}

// Get returns one exam.
func (s *ExamService) Get(_ context.Context, id string) (*models.Exam, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, examNotFound(id)
	}
	out := cloneExams(s.ws.doc.Exams[idx : idx+1])[0]
	return &out, nil
}

// Create validates and stores a new exam without allocations.
func (s *ExamService) Create(ctx context.Context, req dto.ExamRequest) (*models.Exam, error) {
	created, err := s.build(req)
	if err != nil {
		return nil, err
	}
	created.ID = uuid.NewString()

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	previous := s.ws.doc.Exams
	s.ws.doc.Exams = append(cloneExams(previous), created)
	if err := s.commit(ctx, previous, "create"); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces an exam. Allocations survive only while date, times and student count are unchanged.
func (s *ExamService) Update(ctx context.Context, id string, req dto.ExamRequest) (*models.Exam, error) {
	updated, err := s.build(req)
	if err != nil {
		return nil, err
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, examNotFound(id)
	}
	previous := s.ws.doc.Exams
	current := previous[idx]
	updated.ID = id
	if current.Date == updated.Date &&
		current.StudentsCount == updated.StudentsCount &&
		timegrid.CanonicalLabel(current.StartTime) == timegrid.CanonicalLabel(updated.StartTime) &&
		timegrid.CanonicalLabel(current.EndTime) == timegrid.CanonicalLabel(updated.EndTime) {
		updated.Allocations = append([]models.ExamAllocation{}, current.Allocations...)
	}

	next := cloneExams(previous)
	next[idx] = updated
	s.ws.doc.Exams = next
	if err := s.commit(ctx, previous, "update"); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Delete removes an exam.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return examNotFound(id)
	}
	previous := s.ws.doc.Exams
	next := make([]models.Exam, 0, len(previous)-1)
	next = append(next, cloneExams(previous[:idx])...)
	next = append(next, cloneExams(previous[idx+1:])...)
	s.ws.doc.Exams = next
	return s.commit(ctx, previous, "delete")
}

// AllocateRooms spreads the exam population over the enabled exam rooms, or the whole catalog when none is configured.
func (s *ExamService) AllocateRooms(ctx context.Context, id string) (*models.AllocationResult, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return nil, examNotFound(id)
	}
	target := s.ws.doc.Exams[idx]
	if _, _, ok := exam.Window(target); !ok {
		return nil, validationFailure([]string{"startTime", "endTime"}, "exam times are unreadable")
	}

	rooms := s.candidates()
	if len(rooms) == 0 {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "no room available for exams")
	}
	result := exam.Allocate(target, rooms, s.ws.doc.Exams)

	previous := s.ws.doc.Exams
	next := cloneExams(previous)
	next[idx].Allocations = append([]models.ExamAllocation{}, result.Allocations...)
	s.ws.doc.Exams = next
	if err := s.commit(ctx, previous, "allocate"); err != nil {
		return nil, err
	}

	s.ws.metrics.RecordExamAllocation(result.Remaining == 0)
	if result.Remaining > 0 {
		s.logger.Warn("exam rooms insufficient",
			zap.String("exam_id", id),
			zap.Int("students", target.StudentsCount),
			zap.Int("remaining", result.Remaining),
		)
	}
	return &result, nil
}

// Conflicts lists rooms the exam shares with overlapping exams.
func (s *ExamService) Conflicts(_ context.Context, id string) ([]models.ExamConflict, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return nil, examNotFound(id)
	}
	out := exam.Conflicts(s.ws.doc.Exams[idx], s.ws.doc.Exams)
	if out == nil {
		out = []models.ExamConflict{}
	}
	return out, nil
}

// RoomConfigs returns the exam room configuration.
func (s *ExamService) RoomConfigs(_ context.Context) []models.ExamRoomConfig {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return append([]models.ExamRoomConfig{}, s.ws.doc.RoomConfigs...)
}

// UpdateRoomConfigs replaces the exam room configuration.
func (s *ExamService) UpdateRoomConfigs(ctx context.Context, req dto.RoomConfigsRequest) ([]models.ExamRoomConfig, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(fieldErrors(err), "")
	}
	configs := make([]models.ExamRoomConfig, 0, len(req.Configs))
	var missing []string
	for i, cfg := range req.Configs {
		cfg.Room = strings.TrimSpace(cfg.Room)
		if cfg.Room == "" {
			missing = append(missing, fmt.Sprintf("configs[%d].room", i))
			continue
		}
		if cfg.Capacity < 0 {
			cfg.Capacity = 0
		}
		configs = append(configs, cfg)
	}
	if len(missing) > 0 {
		return nil, validationFailure(missing, "")
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	previous := s.ws.doc.RoomConfigs
	s.ws.doc.RoomConfigs = configs
	if err := s.ws.persistShared(ctx); err != nil {
		s.ws.doc.RoomConfigs = previous
		s.logger.Error("persist exam room configs failed", zap.Error(err))
		return nil, err
	}
	s.ws.publish(events.ExamRoomConfigUpdated, configs)
	return append([]models.ExamRoomConfig{}, configs...), nil
}

// Slots returns the canonical exam windows.
func (s *ExamService) Slots() []timegrid.Slot {
	return timegrid.CanonicalExamSlots()
}

func (s *ExamService) build(req dto.ExamRequest) (models.Exam, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Date = strings.TrimSpace(req.Date)
	if err := s.validator.Struct(req); err != nil {
		return models.Exam{}, validationFailure(fieldErrors(err), "")
	}
	built := models.Exam{
		Title:         req.Title,
		Date:          req.Date,
		StartTime:     timegrid.CanonicalLabel(req.StartTime),
		EndTime:       timegrid.CanonicalLabel(req.EndTime),
		Filiere:       strings.TrimSpace(req.Filiere),
		Department:    strings.TrimSpace(req.Department),
		Subjects:      models.CleanTeachers(req.Subjects, 0),
		StudentsCount: req.StudentsCount,
		Allocations:   []models.ExamAllocation{},
	}
	if _, _, ok := exam.Window(built); !ok {
		return models.Exam{}, validationFailure([]string{"startTime", "endTime"}, "exam must end after it starts")
	}
	return built, nil
}

// candidates resolves the rooms offered to the allocator. Callers hold the lock.
func (s *ExamService) candidates() []models.CandidateRoom {
	if len(s.ws.doc.RoomConfigs) > 0 {
		return exam.CandidatesFromConfigs(s.ws.doc.RoomConfigs, s.ws.doc.RoomCatalog)
	}
	out := make([]models.CandidateRoom, 0, len(s.ws.doc.RoomCatalog))
	for name, room := range s.ws.doc.RoomCatalog {
		out = append(out, models.CandidateRoom{Name: name, Capacity: room.Capacity})
	}
	return out
}

// commit persists the shared collections, restoring the previous exam list on failure.
func (s *ExamService) commit(ctx context.Context, previous []models.Exam, op string) error {
	if err := s.ws.persistShared(ctx); err != nil {
		s.ws.doc.Exams = previous
		s.logger.Error("persist exams failed", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (s *ExamService) indexOf(id string) int {
	for i := range s.ws.doc.Exams {
		if s.ws.doc.Exams[i].ID == id {
			return i
		}
	}
	return -1
}

func examNotFound(id string) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam %s not found", id))
}

func cloneExams(in []models.Exam) []models.Exam {
	out := make([]models.Exam, len(in))
	for i, e := range in {
		e.Subjects = append([]string(nil), e.Subjects...)
		e.Allocations = append([]models.ExamAllocation{}, e.Allocations...)
		out[i] = e
	}
	return out
}
