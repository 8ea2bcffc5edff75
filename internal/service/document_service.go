package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// DocumentInfo summarises the loaded document.
type DocumentInfo struct {
	Header             models.Header `json:"header"`
	Term               models.Term   `json:"term"`
	Revision           uint64        `json:"revision"`
	Sessions           int           `json:"sessions"`
	Teachers           int           `json:"teachers"`
	Subjects           int           `json:"subjects"`
	Rooms              int           `json:"rooms"`
	Exams              int           `json:"exams"`
	UndoEntries        int           `json:"undoEntries"`
	StoreAuthenticated bool          `json:"storeAuthenticated"`
}

// DocumentService manages the project document: terms, import and export, and shared collections.
type DocumentService struct {
	ws        *Workspace
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDocumentService constructs the document service.
func NewDocumentService(ws *Workspace, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{ws: ws, validator: newValidator(), logger: logger}
}

// Load reads the document from the store.
func (s *DocumentService) Load(ctx context.Context) error {
	return s.ws.Load(ctx)
}

// Document returns a copy of the whole document.
func (s *DocumentService) Document(_ context.Context) models.ProjectDocument {
	return s.ws.Document()
}

// Info reports counts and store status.
func (s *DocumentService) Info(_ context.Context) DocumentInfo {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return DocumentInfo{
		Header:             s.ws.doc.Header,
		Term:               s.ws.term,
		Revision:           s.ws.revision,
		Sessions:           s.ws.reg.Len(),
		Teachers:           len(s.ws.doc.Teachers),
		Subjects:           len(s.ws.doc.SubjectConfig),
		Rooms:              len(s.ws.doc.RoomCatalog),
		Exams:              len(s.ws.doc.Exams),
		UndoEntries:        len(s.ws.reg.UndoLabels()),
		StoreAuthenticated: s.ws.store.IsAuthenticated(),
	}
}

// Save writes the whole document.
func (s *DocumentService) Save(ctx context.Context) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	if err := s.ws.persistDocument(ctx); err != nil {
		s.logger.Error("save document failed", zap.Error(err))
		return err
	}
	return nil
}

// Reset wipes every stored key and starts over from an empty document on the default term.
// The in-memory state is kept when the store cannot be cleared.
func (s *DocumentService) Reset(ctx context.Context) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	if err := s.ws.store.ClearAll(ctx); err != nil {
		s.logger.Error("clear store failed", zap.Error(err))
		return appErrors.CloneWrap(appErrors.ErrPersistence, err, "clear store")
	}
	s.ws.install(emptyDocument(time.Now()), s.ws.defaultTerm)
	s.ws.publish(events.TermChanged, s.ws.term)
	s.logger.Warn("document reset", zap.String("term", string(s.ws.term)))
	return nil
}

// SwitchTerm activates the other term. The undo history belongs to the term being left and is dropped.
func (s *DocumentService) SwitchTerm(ctx context.Context, req dto.SwitchTermRequest) (models.Term, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", validationFailure(fieldErrors(err), "")
	}
	term, ok := models.ParseTerm(req.Term)
	if !ok {
		return "", validationFailure([]string{"term"}, "unknown term "+req.Term)
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	if term == s.ws.term {
		return term, nil
	}
	s.ws.syncTerm()
	previous, previousTerm := cloneDocument(s.ws.doc), s.ws.term
	s.ws.install(s.ws.doc, term)
	if err := s.ws.persistDocument(ctx); err != nil {
		s.ws.install(previous, previousTerm)
		s.logger.Error("switch term failed", zap.String("term", string(term)), zap.Error(err))
		return "", err
	}
	s.ws.publish(events.TermChanged, term)
	s.logger.Info("term switched", zap.String("from", string(previousTerm)), zap.String("to", string(term)))
	return term, nil
}

// Export renders the canonical JSON document.
func (s *DocumentService) Export(_ context.Context) ([]byte, error) {
	doc := s.ws.Document()
	raw, err := importer.Export(&doc)
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrInternal, err, "export document")
	}
	return raw, nil
}

// Import validates raw JSON and installs it. Documents with errors are refused unless force is set.
// The report is returned in every case.
func (s *DocumentService) Import(ctx context.Context, raw []byte, force bool) (*importer.Report, error) {
	report := importer.Validate(raw)
	if report.Normalized == nil || (!report.OK && !force) {
		cause := errors.New(strings.Join(report.Errors, "; "))
		return &report, appErrors.CloneWrap(appErrors.ErrImportFormat, cause, "document rejected")
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	s.ws.syncTerm()
	previous, previousTerm := cloneDocument(s.ws.doc), s.ws.term
	doc := *report.Normalized
	s.ws.install(doc, doc.ActiveTerm())
	if err := s.ws.persistDocument(ctx); err != nil {
		s.ws.install(previous, previousTerm)
		s.logger.Error("import failed", zap.Error(err))
		return &report, err
	}
	s.ws.publish(events.TermChanged, s.ws.term)
	s.logger.Info("document imported",
		zap.Int("autumn_sessions", len(s.ws.doc.Autumn.Sessions)),
		zap.Int("spring_sessions", len(s.ws.doc.Spring.Sessions)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Bool("forced", !report.OK),
	)
	return &report, nil
}

// Subjects returns the subject configurations.
func (s *DocumentService) Subjects(_ context.Context) map[string]models.SubjectConfig {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	out := make(map[string]models.SubjectConfig, len(s.ws.doc.SubjectConfig))
	for name, cfg := range s.ws.doc.SubjectConfig {
		out[name] = cfg
	}
	return out
}

// PutSubject adds or replaces a subject configuration.
func (s *DocumentService) PutSubject(ctx context.Context, req dto.SubjectRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationFailure(fieldErrors(err), "")
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	err := s.ws.updateShared(ctx, "put subject", func(doc *models.ProjectDocument) error {
		doc.SubjectConfig[req.Name] = req.Config
		return nil
	})
	if err != nil {
		return err
	}
	s.ws.publish(events.SubjectAdded, req.Name)
	return nil
}

// RemoveSubject deletes a subject configuration; scheduled sessions are kept.
func (s *DocumentService) RemoveSubject(ctx context.Context, name string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	err := s.ws.updateShared(ctx, "remove subject", func(doc *models.ProjectDocument) error {
		if _, ok := doc.SubjectConfig[name]; !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("subject %s not found", name))
		}
		delete(doc.SubjectConfig, name)
		return nil
	})
	if err != nil {
		return err
	}
	s.ws.publish(events.SubjectRemoved, name)
	return nil
}

// Teachers returns the teacher roster.
func (s *DocumentService) Teachers(_ context.Context) []string {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return append([]string{}, s.ws.doc.Teachers...)
}

// AddTeacher appends a teacher; names are unique ignoring case.
func (s *DocumentService) AddTeacher(ctx context.Context, req dto.TeacherRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationFailure(fieldErrors(err), "")
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	err := s.ws.updateShared(ctx, "add teacher", func(doc *models.ProjectDocument) error {
		if indexOfName(doc.Teachers, req.Name) >= 0 {
			return validationFailure([]string{"name"}, fmt.Sprintf("teacher %s already exists", req.Name))
		}
		doc.Teachers = append(doc.Teachers, req.Name)
		sort.Strings(doc.Teachers)
		return nil
	})
	if err != nil {
		return err
	}
	s.ws.publish(events.TeacherAdded, req.Name)
	return nil
}

// RemoveTeacher drops a teacher from the roster; sessions keep their teacher names.
func (s *DocumentService) RemoveTeacher(ctx context.Context, name string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	var removed string
	err := s.ws.updateShared(ctx, "remove teacher", func(doc *models.ProjectDocument) error {
		idx := indexOfName(doc.Teachers, name)
		if idx < 0 {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", name))
		}
		removed = doc.Teachers[idx]
		doc.Teachers = append(doc.Teachers[:idx:idx], doc.Teachers[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}
	s.ws.publish(events.TeacherRemoved, removed)
	return nil
}

// Rooms returns the room catalog.
func (s *DocumentService) Rooms(_ context.Context) models.RoomCatalog {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	out := make(models.RoomCatalog, len(s.ws.doc.RoomCatalog))
	for name, room := range s.ws.doc.RoomCatalog {
		out[name] = room
	}
	return out
}

// PutRoom adds or replaces a catalog room. The conflict detector picks it up immediately.
func (s *DocumentService) PutRoom(ctx context.Context, req dto.RoomRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationFailure(fieldErrors(err), "")
	}
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return s.ws.updateShared(ctx, "put room", func(doc *models.ProjectDocument) error {
		if key, _, ok := doc.RoomCatalog.Lookup(req.Name); ok {
			delete(doc.RoomCatalog, key)
		}
		doc.RoomCatalog[req.Name] = models.Room{Kind: models.ParseRoomKind(req.Type), Capacity: req.Capacity}
		return nil
	})
}

// RemoveRoom deletes a catalog room.
func (s *DocumentService) RemoveRoom(ctx context.Context, name string) error {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return s.ws.updateShared(ctx, "remove room", func(doc *models.ProjectDocument) error {
		key, _, ok := doc.RoomCatalog.Lookup(name)
		if !ok {
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("room %s not found", name))
		}
		delete(doc.RoomCatalog, key)
		return nil
	})
}

// Coverage compares expected session counts from subject configs with the active term.
// Second halves of coupled practicals are not counted.
func (s *DocumentService) Coverage(_ context.Context) []models.SubjectCoverage {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	sessions := s.ws.reg.List()
	seconds := make(map[int]bool)
	for _, pair := range s.ws.coupler.DetectPairs(sessions) {
		seconds[pair.SecondID] = true
	}
	scheduled := make(map[string]map[models.SessionType]int)
	for _, sess := range sessions {
		if seconds[sess.ID] {
			continue
		}
		key := models.NormalizeName(sess.Subject)
		if scheduled[key] == nil {
			scheduled[key] = make(map[models.SessionType]int)
		}
		scheduled[key][sess.Type]++
	}

	names := make([]string, 0, len(s.ws.doc.SubjectConfig))
	for name := range s.ws.doc.SubjectConfig {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]models.SubjectCoverage, 0, len(names))
	for _, name := range names {
		expected := s.ws.doc.SubjectConfig[name].ExpectedCounts()
		counts := map[models.SessionType]int{models.SessionCours: 0, models.SessionTD: 0, models.SessionTP: 0}
		for kind, n := range scheduled[models.NormalizeName(name)] {
			counts[kind] = n
		}
		complete := true
		for kind, want := range expected {
			if counts[kind] < want {
				complete = false
			}
		}
		out = append(out, models.SubjectCoverage{Subject: name, Expected: expected, Scheduled: counts, Complete: complete})
	}
	return out
}

// Volumes returns the autumn hTP total per teacher.
func (s *DocumentService) Volumes(_ context.Context) map[string]float64 {
	return s.ws.Volumes()
}

func indexOfName(list []string, name string) int {
	needle := models.NormalizeName(name)
	for i, item := range list {
		if models.NormalizeName(item) == needle {
			return i
		}
	}
	return -1
}
