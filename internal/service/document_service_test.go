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

func TestSwitchTermSwapsRegistry(t *testing.T) {
	rec := &events.Recorder{}
	store := repository.NewMemoryStore()
	ws := newTestWorkspace(t, store, rec, moveFixture()...)
	svc := NewDocumentService(ws, nil)
	ctx := context.Background()

	term, err := svc.SwitchTerm(ctx, dto.SwitchTermRequest{Term: "Session de printemps"})
	require.NoError(t, err)
	assert.Equal(t, models.TermSpring, term)
	assert.Equal(t, 0, ws.reg.Len())
	assert.Equal(t, models.HeaderSpring, svc.Info(ctx).Header.Session)
	assert.Equal(t, []events.Type{events.TermChanged}, rec.Types())

	raw, err := store.Load(ctx, repository.KeyLastActiveSession)
	require.NoError(t, err)
	assert.JSONEq(t, `"spring"`, string(raw))

	_, err = svc.SwitchTerm(ctx, dto.SwitchTermRequest{Term: "autumn"})
	require.NoError(t, err)
	assert.Equal(t, 2, ws.reg.Len())

	_, err = svc.SwitchTerm(ctx, dto.SwitchTermRequest{Term: "winter"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := repository.NewMemoryStore()
	ws := newTestWorkspace(t, store, &events.Recorder{}, moveFixture()...)
	svc := NewDocumentService(ws, nil)
	ctx := context.Background()
	require.NoError(t, svc.AddTeacher(ctx, dto.TeacherRequest{Name: "Sara"}))
	require.NoError(t, svc.Save(ctx))

	reloaded := NewWorkspace(store, &events.Recorder{}, nil, nil, WorkspaceConfig{})
	require.NoError(t, reloaded.Load(ctx))
	doc := reloaded.Document()
	assert.Len(t, doc.Autumn.Sessions, 2)
	assert.Equal(t, 3, doc.Autumn.NextID)
	assert.Equal(t, []string{"Sara"}, doc.Teachers)
	assert.Len(t, doc.RoomCatalog, 5)
	assert.Equal(t, models.TermAutumn, reloaded.Term())
}

func TestLoadToleratesMissingKeys(t *testing.T) {
	ws := NewWorkspace(repository.NewMemoryStore(), &events.Recorder{}, nil, nil, WorkspaceConfig{DefaultTerm: models.TermSpring})
	require.NoError(t, ws.Load(context.Background()))
	assert.Equal(t, models.TermSpring, ws.Term())
	assert.Empty(t, ws.Document().Autumn.Sessions)
}

func TestImportInstallsExportedDocument(t *testing.T) {
	ctx := context.Background()
	source := NewDocumentService(newTestWorkspace(t, nil, &events.Recorder{}, moveFixture()...), nil)
	raw, err := source.Export(ctx)
	require.NoError(t, err)

	rec := &events.Recorder{}
	ws := newTestWorkspace(t, nil, rec)
	target := NewDocumentService(ws, nil)
	report, err := target.Import(ctx, raw, false)
	require.NoError(t, err)
	assert.True(t, report.OK)
	assert.Equal(t, 2, ws.reg.Len())
	assert.Equal(t, []events.Type{events.TermChanged}, rec.Types())
}

func TestImportRejectsInvalidDocument(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{}, moveFixture()...)
	svc := NewDocumentService(ws, nil)

	report, err := svc.Import(context.Background(), []byte("not json"), true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrImportFormat))
	require.NotNil(t, report)
	assert.False(t, report.OK)
	assert.Equal(t, 2, ws.reg.Len())
}

func TestSubjectsAndTeachersEmitEvents(t *testing.T) {
	rec := &events.Recorder{}
	ws := newTestWorkspace(t, nil, rec)
	svc := NewDocumentService(ws, nil)
	ctx := context.Background()

	require.NoError(t, svc.PutSubject(ctx, dto.SubjectRequest{Name: "Algo", Config: models.SubjectConfig{SectionsCount: 1, TDGroups: 2}}))
	require.NoError(t, svc.AddTeacher(ctx, dto.TeacherRequest{Name: "Ali"}))
	err := svc.AddTeacher(ctx, dto.TeacherRequest{Name: " ali "})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	require.NoError(t, svc.RemoveTeacher(ctx, "ALI"))
	require.NoError(t, svc.RemoveSubject(ctx, "Algo"))
	assert.True(t, errors.Is(svc.RemoveSubject(ctx, "Algo"), appErrors.ErrNotFound))

	assert.Equal(t, []events.Type{
		events.SubjectAdded,
		events.TeacherAdded,
		events.TeacherRemoved,
		events.SubjectRemoved,
	}, rec.Types())
	assert.Empty(t, svc.Teachers(ctx))
}

func TestSharedUpdateRestoresOnStoreFailure(t *testing.T) {
	store := &failingStore{MemoryStore: repository.NewMemoryStore(), fail: true}
	rec := &events.Recorder{}
	ws := newTestWorkspace(t, store, rec)
	svc := NewDocumentService(ws, nil)

	err := svc.AddTeacher(context.Background(), dto.TeacherRequest{Name: "Ali"})
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Empty(t, svc.Teachers(context.Background()))
	assert.Empty(t, rec.Types())
}

func TestPutRoomFeedsDetector(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{})
	docs := NewDocumentService(ws, nil)
	sessions := NewSessionService(ws, nil, nil)
	ctx := context.Background()

	require.NoError(t, docs.PutRoom(ctx, dto.RoomRequest{Name: "B12", Type: "amphi", Capacity: 120}))
	form := dto.SessionForm{Day: "Lundi", Slot: "8h30", Type: "TD", Subject: "Algo", Filiere: "GI", Section: "A", Subgroup: "G1", Room: "B12"}
	_, err := sessions.Create(ctx, form)
	require.Error(t, err)
	var conflictErr *models.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	assert.Equal(t, models.ConflictRoomType, conflictErr.Conflicts[0].Kind)

	require.NoError(t, docs.RemoveRoom(ctx, "b12"))
	assert.NotContains(t, docs.Rooms(ctx), "B12")
}

func TestCoverageSkipsSecondHalves(t *testing.T) {
	ws := newTestWorkspace(t, nil, &events.Recorder{})
	ws.doc.SubjectConfig["Physique"] = models.SubjectConfig{SectionsCount: 1, TPGroups: 2}
	docs := NewDocumentService(ws, nil)
	sessions := NewSessionService(ws, nil, nil)
	ctx := context.Background()

	_, err := sessions.Create(ctx, tpForm())
	require.NoError(t, err)

	coverage := docs.Coverage(ctx)
	require.Len(t, coverage, 1)
	assert.Equal(t, 1, coverage[0].Scheduled[models.SessionTP])
	assert.Equal(t, 2, coverage[0].Expected[models.SessionTP])
	assert.False(t, coverage[0].Complete)
}

type clearFailingStore struct {
	*repository.MemoryStore
}

func (s *clearFailingStore) ClearAll(context.Context) error {
	return errors.New("permission denied")
}

func TestResetWipesStoreAndDocument(t *testing.T) {
	ctx := context.Background()
	rec := &events.Recorder{}
	store := repository.NewMemoryStore()
	ws := newTestWorkspace(t, store, rec, moveFixture()...)
	svc := NewDocumentService(ws, nil)
	require.NoError(t, svc.AddTeacher(ctx, dto.TeacherRequest{Name: "Sara"}))
	require.NoError(t, svc.Save(ctx))
	revision := ws.Revision()

	require.NoError(t, svc.Reset(ctx))
	for _, key := range []string{repository.KeyGlobalData, repository.SessionKey("autumn"), repository.KeyLastActiveSession} {
		raw, err := store.Load(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, raw, key)
	}
	info := svc.Info(ctx)
	assert.Zero(t, info.Sessions)
	assert.Zero(t, info.Teachers)
	assert.Equal(t, models.TermAutumn, info.Term)
	assert.Greater(t, ws.Revision(), revision)
	assert.Equal(t, events.TermChanged, rec.Types()[len(rec.Types())-1])
}

func TestResetKeepsStateWhenStoreFails(t *testing.T) {
	rec := &events.Recorder{}
	ws := newTestWorkspace(t, &clearFailingStore{MemoryStore: repository.NewMemoryStore()}, rec, moveFixture()...)
	svc := NewDocumentService(ws, nil)

	err := svc.Reset(context.Background())
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Equal(t, 2, ws.reg.Len())
	assert.Empty(t, rec.Types())
}
