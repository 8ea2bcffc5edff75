package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/coupling"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/importer"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/registry"
	"github.com/noah-isme/edt-scheduler/internal/repository"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// WorkspaceConfig tunes the shared document state.
type WorkspaceConfig struct {
	UndoDepth   int
	DefaultTerm models.Term
}

// Workspace owns the loaded project document and the registry of its active term.
// All services share one workspace; its mutex makes every mutation single-writer.
type Workspace struct {
	mu          sync.Mutex
	store       repository.Store
	events      events.Publisher
	metrics     *MetricsService
	logger      *zap.Logger
	undoDepth   int
	defaultTerm models.Term

	doc      models.ProjectDocument
	term     models.Term
	reg      *registry.Registry
	grid     *timegrid.Grid
	detector *conflict.Detector
	coupler  *coupling.Coordinator
	volumes  map[string]float64
	revision uint64
}

// NewWorkspace builds a workspace holding an empty document until Load is called.
func NewWorkspace(store repository.Store, publisher events.Publisher, metrics *MetricsService, logger *zap.Logger, cfg WorkspaceConfig) *Workspace {
	if store == nil {
		store = repository.NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTerm != models.TermSpring {
		cfg.DefaultTerm = models.TermAutumn
	}
	w := &Workspace{
		store:       store,
		events:      publisher,
		metrics:     metrics,
		logger:      logger,
		undoDepth:   cfg.UndoDepth,
		defaultTerm: cfg.DefaultTerm,
	}
	w.install(emptyDocument(time.Now()), cfg.DefaultTerm)
	return w
}

func emptyDocument(now time.Time) models.ProjectDocument {
	doc := models.ProjectDocument{
		Header: models.Header{Year: importer.AcademicYear(now), Session: models.HeaderAutumn},
	}
	doc.EnsureMaps()
	doc.Autumn.NextID = 1
	doc.Spring.NextID = 1
	return doc
}

// Load reads the document from the store. Read failures are logged and leave defaults in place.
func (w *Workspace) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	doc := emptyDocument(time.Now())
	term := w.defaultTerm
	if raw := w.read(ctx, repository.KeyGlobalData); raw != nil {
		var stored models.ProjectDocument
		if err := json.Unmarshal(raw, &stored); err != nil {
			w.logger.Warn("stored document unreadable", zap.Error(err))
		} else {
			doc = stored
			if parsed, ok := models.ParseTerm(doc.Header.Session); ok {
				term = parsed
			}
		}
	}
	for _, term := range []models.Term{models.TermAutumn, models.TermSpring} {
		raw := w.read(ctx, repository.SessionKey(string(term)))
		if raw == nil {
			continue
		}
		var data models.TermSessions
		if err := json.Unmarshal(raw, &data); err != nil {
			w.logger.Warn("stored term unreadable", zap.String("term", string(term)), zap.Error(err))
			continue
		}
		*doc.TermData(term) = data
	}

	if raw := w.read(ctx, repository.KeyLastActiveSession); raw != nil {
		var name string
		if err := json.Unmarshal(raw, &name); err == nil {
			if parsed, ok := models.ParseTerm(name); ok {
				term = parsed
			}
		}
	}
	w.install(doc, term)
	w.logger.Info("document loaded",
		zap.String("term", string(term)),
		zap.Int("sessions", w.reg.Len()),
		zap.Int("teachers", len(w.doc.Teachers)),
	)
	return nil
}

func (w *Workspace) read(ctx context.Context, key string) []byte {
	raw, err := w.store.Load(ctx, key)
	if err != nil {
		w.logger.Warn("store read failed", zap.String("key", key), zap.Error(err))
		return nil
	}
	return raw
}

// install replaces the whole state. Callers hold the lock.
func (w *Workspace) install(doc models.ProjectDocument, term models.Term) {
	doc.EnsureMaps()
	doc.Header.Session = term.HeaderLabel()
	grid, warnings := timegrid.FromConfig(doc.Slots)
	for _, warning := range warnings {
		w.logger.Warn("slot configuration", zap.String("warning", warning))
	}
	w.doc = doc
	w.term = term
	w.grid = grid
	w.rebuildDetector()
	data := doc.TermData(term)
	w.reg = registry.New(data.Sessions, data.NextID, w.undoDepth)
	w.syncTerm()
	w.volumes = TeacherVolumes(w.doc.Autumn.Sessions)
	w.revision++
}

// rebuildDetector refreshes the detector after the room catalog changed.
func (w *Workspace) rebuildDetector() {
	w.detector = conflict.NewDetector(w.grid, w.doc.RoomCatalog)
	w.coupler = coupling.New(w.detector)
}

// syncTerm copies the registry back into the document.
func (w *Workspace) syncTerm() {
	data := w.doc.TermData(w.term)
	data.Sessions = w.reg.List()
	data.NextID = w.reg.NextID()
}

func (w *Workspace) save(ctx context.Context, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return appErrors.CloneWrap(appErrors.ErrInternal, err, "encode "+key)
	}
	if err := w.store.Save(ctx, key, payload); err != nil {
		return appErrors.CloneWrap(appErrors.ErrPersistence, err, "save "+key)
	}
	return nil
}

// persistTerm writes the sessions of the active term.
func (w *Workspace) persistTerm(ctx context.Context) error {
	w.syncTerm()
	return w.save(ctx, repository.SessionKey(string(w.term)), w.doc.TermData(w.term))
}

// persistShared writes the collections shared by both terms; sessions live under their own keys.
func (w *Workspace) persistShared(ctx context.Context) error {
	global := w.doc
	global.Autumn = models.TermSessions{Sessions: []models.Session{}, NextID: w.doc.Autumn.NextID}
	global.Spring = models.TermSessions{Sessions: []models.Session{}, NextID: w.doc.Spring.NextID}
	return w.save(ctx, repository.KeyGlobalData, global)
}

// persistDocument writes shared collections, both terms and the active term name.
func (w *Workspace) persistDocument(ctx context.Context) error {
	w.syncTerm()
	if err := w.persistShared(ctx); err != nil {
		return err
	}
	for _, term := range []models.Term{models.TermAutumn, models.TermSpring} {
		if err := w.save(ctx, repository.SessionKey(string(term)), w.doc.TermData(term)); err != nil {
			return err
		}
	}
	return w.save(ctx, repository.KeyLastActiveSession, string(w.term))
}

// updateShared applies fn to the shared collections and persists them. A failed fn or write restores the previous document.
func (w *Workspace) updateShared(ctx context.Context, op string, fn func(doc *models.ProjectDocument) error) error {
	w.syncTerm()
	previous := cloneDocument(w.doc)
	if err := fn(&w.doc); err != nil {
		w.doc = previous
		w.rebuildDetector()
		return err
	}
	w.doc.EnsureMaps()
	if err := w.persistShared(ctx); err != nil {
		w.doc = previous
		w.rebuildDetector()
		w.logger.Error("persist document failed, change reverted", zap.String("op", op), zap.Error(err))
		return err
	}
	w.rebuildDetector()
	return nil
}

// commitTerm persists a registry mutation. A failed write reverts the mutation.
func (w *Workspace) commitTerm(ctx context.Context, op string) error {
	if err := w.persistTerm(ctx); err != nil {
		w.reg.Undo()
		w.syncTerm()
		w.logger.Error("persist term failed, mutation reverted",
			zap.String("op", op),
			zap.String("term", string(w.term)),
			zap.Error(err),
		)
		return err
	}
	w.revision++
	w.refreshVolumes()
	w.metrics.RecordMutation(op, w.reg.Len())
	return nil
}

// refreshVolumes recomputes the autumn teacher loads while autumn is the active header session.
func (w *Workspace) refreshVolumes() {
	if w.doc.ActiveTerm() != models.TermAutumn {
		return
	}
	w.volumes = TeacherVolumes(w.doc.Autumn.Sessions)
}

func (w *Workspace) publish(kind events.Type, payload interface{}) {
	if w.events == nil {
		return
	}
	w.events.Publish(events.Event{Type: kind, Payload: payload})
}

// Term returns the active term.
func (w *Workspace) Term() models.Term {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.term
}

// Revision increases on every committed change; proposals use it to detect staleness.
func (w *Workspace) Revision() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revision
}

// Document returns a deep copy of the document with the active term synchronised.
func (w *Workspace) Document() models.ProjectDocument {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.syncTerm()
	return cloneDocument(w.doc)
}

// Volumes returns the autumn hTP total per teacher.
func (w *Workspace) Volumes() map[string]float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]float64, len(w.volumes))
	for k, v := range w.volumes {
		out[k] = v
	}
	return out
}

// Grid returns the active slot grid.
func (w *Workspace) Grid() *timegrid.Grid {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grid
}

// TeacherVolumes sums hTP per teacher. Second halves of coupled practicals carry 0.
func TeacherVolumes(sessions []models.Session) map[string]float64 {
	out := map[string]float64{}
	for _, s := range sessions {
		for _, teacher := range models.CleanTeachers(s.Teachers, 0) {
			out[teacher] += s.HTP
		}
	}
	return out
}

func cloneDocument(doc models.ProjectDocument) models.ProjectDocument {
	raw, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out models.ProjectDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return doc
	}
	out.EnsureMaps()
	return out
}
