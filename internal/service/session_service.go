package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/conflict"
	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/registry"
	"github.com/noah-isme/edt-scheduler/internal/timegrid"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
)

// Confirmer is asked whether a move may land in a suggested free room.
// It may block; the workspace stays locked until it answers.
type Confirmer interface {
	ConfirmRoom(ctx context.Context, session models.Session, room string, conflicts []models.Conflict) bool
}

type pendingMove struct {
	original  models.Session
	proposed  models.Session
	conflicts []models.Conflict
}

// SessionService is the interactive controller over the active term.
type SessionService struct {
	ws        *Workspace
	validator *validator.Validate
	confirmer Confirmer
	logger    *zap.Logger
	pending   map[int]pendingMove
}

// NewSessionService wires the controller. A nil confirmer leaves room suggestions pending until ConfirmMove.
func NewSessionService(ws *Workspace, confirmer Confirmer, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		ws:        ws,
		validator: newValidator(),
		confirmer: confirmer,
		logger:    logger,
		pending:   make(map[int]pendingMove),
	}
}

// List returns the sessions of the active term matching the query.
func (s *SessionService) List(_ context.Context, query dto.SessionQuery) []models.Session {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	day, filterDay := timegrid.ParseDay(query.Day)
	kind, filterType := models.ParseSessionType(query.Type)
	filiere := models.NormalizeName(query.Filiere)
	room := models.NormalizeName(query.Room)
	teacher := models.NormalizeName(query.Teacher)

	out := s.ws.reg.Filter(func(sess models.Session) bool {
		if filterDay && sess.Day != day {
			return false
		}
		if filterType && sess.Type != kind {
			return false
		}
		if filiere != "" && models.NormalizeName(sess.Filiere) != filiere {
			return false
		}
		if room != "" && models.NormalizeName(sess.Room) != room {
			return false
		}
		if teacher != "" && !teaches(sess, teacher) {
			return false
		}
		return true
	})
	if out == nil {
		out = []models.Session{}
	}
	return out
}

// Get returns one session.
func (s *SessionService) Get(_ context.Context, id int) (*models.Session, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	sess, ok := s.ws.reg.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	return &sess, nil
}

// Create validates and adds a session; a TP on a coupling slot also gets its second half.
func (s *SessionService) Create(ctx context.Context, form dto.SessionForm) (*models.OperationResult, error) {
	session, err := s.buildSession(form)
	if err != nil {
		return nil, err
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	second, coupled := s.secondHalf(session)
	session.HTP = s.hoursFor(session, coupled, form.HTP)
	session.ID = s.ws.reg.NextID()

	list := s.ws.reg.List()
	report := s.ws.detector.Detect(session, list)
	blocking := report.Blocking()
	notes := suppressedOf(report)
	if coupled {
		second.ID = session.ID + 1
		secondReport := s.ws.detector.Detect(second, append(list, session))
		blocking = append(blocking, secondReport.Blocking()...)
		notes = append(notes, suppressedOf(secondReport)...)
	}
	if len(blocking) > 0 {
		s.ws.metrics.RecordConflicts(blocking)
		return nil, conflictFailure(blocking)
	}

	var added []models.Session
	err = s.ws.reg.Batch(fmt.Sprintf("create #%d", session.ID), func(r *registry.Registry) error {
		added = append(added, r.Add(session))
		if coupled {
			added = append(added, r.Add(second))
		}
		return nil
	})
	if err != nil {
		return nil, s.unexpected("create", session.ID, err)
	}
	if err := s.ws.commitTerm(ctx, "create"); err != nil {
		return nil, err
	}
	for i := range added {
		s.ws.publish(events.SessionAdded, added[i])
	}

	message := "session created"
	if coupled {
		message = "coupled practical created"
	}
	return &models.OperationResult{
		Success:   true,
		Session:   &added[0],
		Sessions:  added,
		Conflicts: notes,
		Message:   message,
	}, nil
}

// Update edits a session in place, keeping its coupled half consistent.
func (s *SessionService) Update(ctx context.Context, id int, form dto.SessionForm) (*models.OperationResult, error) {
	updated, err := s.buildSession(form)
	if err != nil {
		return nil, err
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	current, ok := s.ws.reg.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	updated.ID = id
	list := s.ws.reg.List()
	partner, hasPartner := s.ws.coupler.PartnerOf(current, list)
	if hasPartner && current.HTP == 0 && partner.HTP > 0 {
		return s.updateSecondHalf(ctx, current, partner, updated, form, list)
	}

	second, coupled := s.secondHalf(updated)
	if !coupled && hasPartner && updated.Type == models.SessionTP && samePlacement(current, updated) {
		second, coupled = keptSecondHalf(updated, partner), true
	}
	switch {
	case form.HTP != nil:
		updated.HTP = s.hoursFor(updated, coupled, form.HTP)
	case current.Type == updated.Type && (current.HTP > 0 || !coupled):
		updated.HTP = current.HTP
	default:
		updated.HTP = s.hoursFor(updated, coupled, nil)
	}

	exclude := []int{id}
	if hasPartner {
		exclude = append(exclude, partner.ID)
	}
	report := s.ws.detector.Detect(updated, list, exclude...)
	blocking := report.Blocking()
	notes := suppressedOf(report)
	if coupled {
		if hasPartner {
			second.ID = partner.ID
			second.Locked = partner.Locked
		} else {
			second.ID = s.ws.reg.NextID()
		}
		secondReport := s.ws.detector.Detect(second, replaceSession(list, updated), exclude...)
		blocking = append(blocking, secondReport.Blocking()...)
		notes = append(notes, suppressedOf(secondReport)...)
	}
	if len(blocking) > 0 {
		s.ws.metrics.RecordConflicts(blocking)
		return nil, conflictFailure(blocking)
	}

	var created *models.Session
	err = s.ws.reg.Batch(fmt.Sprintf("update #%d", id), func(r *registry.Registry) error {
		r.Update(id, func(target *models.Session) { *target = updated })
		switch {
		case coupled && hasPartner:
			r.Update(partner.ID, func(target *models.Session) { *target = second })
		case coupled:
			added := r.Add(second)
			created = &added
		case hasPartner:
			r.Remove(partner.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.unexpected("update", id, err)
	}
	if err := s.ws.commitTerm(ctx, "update"); err != nil {
		return nil, err
	}

	stored, _ := s.ws.reg.FindByID(id)
	result := &models.OperationResult{Success: true, Session: &stored, Sessions: []models.Session{stored}, Conflicts: notes, Message: "session updated"}
	s.ws.publish(events.SessionUpdated, stored)
	switch {
	case created != nil:
		result.Sessions = append(result.Sessions, *created)
		s.ws.publish(events.SessionAdded, *created)
	case coupled && hasPartner:
		refreshed, _ := s.ws.reg.FindByID(partner.ID)
		result.Sessions = append(result.Sessions, refreshed)
		s.ws.publish(events.SessionUpdated, refreshed)
	case hasPartner:
		s.ws.publish(events.SessionRemoved, []int{partner.ID})
	}
	return result, nil
}

// updateSecondHalf edits the second half of a couple. Teachers and hours flow to the first half.
func (s *SessionService) updateSecondHalf(ctx context.Context, current, first, updated models.Session, form dto.SessionForm, list []models.Session) (*models.OperationResult, error) {
	var moved []string
	if updated.Day != current.Day {
		moved = append(moved, "day")
	}
	if timegrid.CanonicalLabel(updated.Slot) != timegrid.CanonicalLabel(current.Slot) {
		moved = append(moved, "slot")
	}
	if updated.Type != models.SessionTP {
		moved = append(moved, "type")
	}
	if updated.Subject != first.Subject || updated.StudentEntity() != first.StudentEntity() {
		moved = append(moved, "subject")
	}
	if len(moved) > 0 {
		return nil, validationFailure(moved, "the second half of a coupled TP follows its first half; edit the first half instead")
	}

	updated.StartMinutes, updated.EndMinutes = current.StartMinutes, current.EndMinutes
	newFirst := first.Clone()
	newFirst.Teachers = append([]string(nil), updated.Teachers...)
	if form.HTP != nil && *form.HTP > 0 {
		newFirst.HTP = *form.HTP
	}
	updated.HTP = 0

	exclude := []int{current.ID, first.ID}
	blocking := s.ws.detector.Detect(updated, list, exclude...).Blocking()
	blocking = append(blocking, s.ws.detector.Detect(newFirst, list, exclude...).Blocking()...)
	if len(blocking) > 0 {
		s.ws.metrics.RecordConflicts(blocking)
		return nil, conflictFailure(blocking)
	}

	err := s.ws.reg.Batch(fmt.Sprintf("update #%d", current.ID), func(r *registry.Registry) error {
		r.Update(current.ID, func(target *models.Session) { *target = updated })
		r.Update(first.ID, func(target *models.Session) { *target = newFirst })
		return nil
	})
	if err != nil {
		return nil, s.unexpected("update", current.ID, err)
	}
	if err := s.ws.commitTerm(ctx, "update"); err != nil {
		return nil, err
	}

	storedSecond, _ := s.ws.reg.FindByID(current.ID)
	storedFirst, _ := s.ws.reg.FindByID(first.ID)
	s.ws.publish(events.SessionUpdated, storedSecond)
	s.ws.publish(events.SessionUpdated, storedFirst)
	return &models.OperationResult{
		Success:  true,
		Session:  &storedSecond,
		Sessions: []models.Session{storedSecond, storedFirst},
		Message:  "coupled practical updated",
	}, nil
}

// Delete removes a session; either half of a coupled TP takes the other with it.
func (s *SessionService) Delete(ctx context.Context, id int) (*models.OperationResult, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	current, ok := s.ws.reg.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	removed := []models.Session{current}
	if partner, ok := s.ws.coupler.PartnerOf(current, s.ws.reg.List()); ok {
		isFirst := current.HTP > 0 && partner.HTP == 0
		isSecond := current.HTP == 0 && partner.HTP > 0
		if isFirst || isSecond {
			removed = append(removed, partner)
		}
	}

	err := s.ws.reg.Batch(fmt.Sprintf("delete #%d", id), func(r *registry.Registry) error {
		for _, sess := range removed {
			r.Remove(sess.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.unexpected("delete", id, err)
	}
	if err := s.ws.commitTerm(ctx, "delete"); err != nil {
		return nil, err
	}

	ids := make([]int, 0, len(removed))
	for _, sess := range removed {
		ids = append(ids, sess.ID)
	}
	s.ws.publish(events.SessionRemoved, ids)
	return &models.OperationResult{Success: true, Sessions: removed, Message: fmt.Sprintf("%d session(s) removed", len(removed))}, nil
}

// Move relocates a non-TP session. When only room conflicts block and a compatible room is
// free, the first free room is offered to the confirmer or kept pending for ConfirmMove.
func (s *SessionService) Move(ctx context.Context, id int, req dto.MoveSessionRequest) (*models.MoveOutcome, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	current, ok := s.ws.reg.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	if current.Type == models.SessionTP {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "practical sessions move with their coupled half through the optimizer")
	}

	var missing []string
	day, dayOK := timegrid.ParseDay(req.Day)
	if !dayOK {
		missing = append(missing, "day")
	}
	start, slotOK := timegrid.ParseLabel(req.Slot)
	if !slotOK {
		missing = append(missing, "slot")
	}
	if len(missing) > 0 {
		return nil, validationFailure(missing, "")
	}
	room := current.Room
	if req.Room != nil {
		room = strings.TrimSpace(*req.Room)
	}

	label := timegrid.FormatLabel(start)
	if day == current.Day && label == timegrid.CanonicalLabel(current.Slot) && models.NormalizeName(room) == models.NormalizeName(current.Room) {
		return &models.MoveOutcome{
			OperationResult: models.OperationResult{Success: true, Session: &current, Message: "session already at this position"},
			Status:          models.MoveNoop,
		}, nil
	}

	duration := timegrid.DefaultDuration
	if from, to, ok := s.ws.grid.Range(current); ok {
		duration = to - from
	}
	proposed := current.Clone()
	s.ws.grid.Place(&proposed, day, start, duration)
	proposed.Room = room

	list := s.ws.reg.List()
	blocking := s.ws.detector.Detect(proposed, list).Blocking()
	if len(blocking) == 0 {
		return s.commitMove(ctx, current, proposed)
	}

	if onlyKind(blocking, models.ConflictRoom) {
		if free := s.ws.detector.FreeRooms(proposed, list); len(free) > 0 {
			suggestion := proposed.Clone()
			suggestion.Room = free[0]
			if s.confirmer != nil {
				if s.confirmer.ConfirmRoom(ctx, current, free[0], blocking) {
					return s.commitMove(ctx, current, suggestion)
				}
				delete(s.pending, id)
				return cancelledMove(current), nil
			}
			s.pending[id] = pendingMove{original: current, proposed: suggestion, conflicts: blocking}
			return &models.MoveOutcome{
				OperationResult: models.OperationResult{
					Success:   false,
					Session:   &suggestion,
					Conflicts: models.ConflictStrings(blocking),
					Message:   fmt.Sprintf("room %s is taken; %s is free", room, free[0]),
				},
				Status:        models.MoveAwaitingConfirmation,
				SuggestedRoom: free[0],
				Previous:      &current,
			}, nil
		}
	}

	s.ws.metrics.RecordConflicts(blocking)
	return nil, conflictFailure(blocking)
}

// ConfirmMove commits a pending room suggestion after re-checking it against the current term.
func (s *SessionService) ConfirmMove(ctx context.Context, id int) (*models.MoveOutcome, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	pending, ok := s.pending[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no pending move for session %d", id))
	}
	delete(s.pending, id)

	current, ok := s.ws.reg.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	if !current.Equal(pending.original) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session changed since the room was suggested")
	}
	if blocking := s.ws.detector.Detect(pending.proposed, s.ws.reg.List()).Blocking(); len(blocking) > 0 {
		s.ws.metrics.RecordConflicts(blocking)
		return nil, conflictFailure(blocking)
	}
	return s.commitMove(ctx, current, pending.proposed)
}

// CancelMove discards a pending suggestion and returns the untouched session.
func (s *SessionService) CancelMove(_ context.Context, id int) (*models.MoveOutcome, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	pending, ok := s.pending[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no pending move for session %d", id))
	}
	delete(s.pending, id)
	return cancelledMove(pending.original), nil
}

func (s *SessionService) commitMove(ctx context.Context, current, proposed models.Session) (*models.MoveOutcome, error) {
	err := s.ws.reg.Batch(fmt.Sprintf("move #%d", current.ID), func(r *registry.Registry) error {
		if _, ok := r.Update(current.ID, func(target *models.Session) { *target = proposed }); !ok {
			return notFound(current.ID)
		}
		return nil
	})
	if err != nil {
		return nil, s.unexpected("move", current.ID, err)
	}
	if err := s.ws.commitTerm(ctx, "move"); err != nil {
		return nil, err
	}
	delete(s.pending, current.ID)

	moved, _ := s.ws.reg.FindByID(current.ID)
	s.ws.publish(events.SessionMoved, moved)
	return &models.MoveOutcome{
		OperationResult: models.OperationResult{
			Success: true,
			Session: &moved,
			Message: fmt.Sprintf("moved to %s %s", moved.Day, moved.Slot),
		},
		Status:   models.MoveCommitted,
		Previous: &current,
	}, nil
}

// Undo restores the latest snapshot of the active term.
func (s *SessionService) Undo(ctx context.Context) (*models.OperationResult, error) {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	label, ok := s.ws.reg.Undo()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "nothing to undo")
	}
	s.pending = make(map[int]pendingMove)
	if err := s.ws.persistTerm(ctx); err != nil {
		s.logger.Error("persist after undo failed", zap.String("op", label), zap.Error(err))
		return nil, err
	}
	s.ws.revision++
	s.ws.refreshVolumes()
	s.ws.metrics.RecordMutation("undo", s.ws.reg.Len())
	s.ws.publish(events.SessionUpdated, map[string]string{"undo": label})
	return &models.OperationResult{Success: true, Sessions: s.ws.reg.List(), Message: "undone: " + label}, nil
}

// UndoLabels lists the undo history, oldest first.
func (s *SessionService) UndoLabels() []string {
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return s.ws.reg.UndoLabels()
}

// Check reports what the detector would say about a form without changing anything.
func (s *SessionService) Check(_ context.Context, form dto.SessionForm, exclude ...int) ([]models.Conflict, error) {
	session, err := s.buildSession(form)
	if err != nil {
		return nil, err
	}
	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()
	return s.ws.detector.Detect(session, s.ws.reg.List(), exclude...).Conflicts, nil
}

// buildSession validates the form and converts it into a session without id or hours.
func (s *SessionService) buildSession(form dto.SessionForm) (models.Session, error) {
	form = trimForm(form)
	var missing []string
	if err := s.validator.Struct(form); err != nil {
		missing = fieldErrors(err)
		if missing == nil {
			return models.Session{}, validationFailure(nil, err.Error())
		}
	}

	kind, typeOK := models.ParseSessionType(form.Type)
	if form.Type != "" && !typeOK {
		missing = append(missing, "type")
	}
	if typeOK && kind != models.SessionCours && form.Subgroup == "" {
		missing = append(missing, "subgroup")
	}
	if typeOK && kind != models.SessionTP && !form.AllowNoRoom && form.Room == "" {
		missing = append(missing, "room")
	}
	day, dayOK := timegrid.ParseDay(form.Day)
	if form.Day != "" && !dayOK {
		missing = append(missing, "day")
	}
	start, slotOK := timegrid.ParseLabel(form.Slot)
	if form.Slot != "" && !slotOK {
		missing = append(missing, "slot")
	}
	if len(missing) > 0 {
		return models.Session{}, validationFailure(uniqueStrings(missing), "")
	}

	session := models.Session{
		Day:                   day,
		Slot:                  timegrid.FormatLabel(start),
		Type:                  kind,
		Subject:               form.Subject,
		Filiere:               form.Filiere,
		Section:               form.Section,
		Teachers:              models.CleanTeachers(form.Teachers, 2),
		Room:                  form.Room,
		Locked:                form.Locked,
		AllowTimeSlotOverride: form.Override(),
	}
	if kind != models.SessionCours {
		session.Subgroup = form.Subgroup
	}
	if form.StartTime != "" || form.EndTime != "" {
		from, okFrom := timegrid.ParseLabel(form.StartTime)
		to, okTo := timegrid.ParseLabel(form.EndTime)
		if !okFrom || !okTo || to <= from {
			return models.Session{}, validationFailure([]string{"startTime", "endTime"}, "invalid time range")
		}
		session.StartMinutes, session.EndMinutes = from, to
	}
	return session, nil
}

// secondHalf derives the coupled partner of a TP placed on a coupling slot.
func (s *SessionService) secondHalf(first models.Session) (models.Session, bool) {
	if first.Type != models.SessionTP || first.HasExplicitRange() {
		return models.Session{}, false
	}
	next, ok := s.ws.grid.SlotAfter(first.Slot)
	if !ok {
		return models.Session{}, false
	}
	second := first.Clone()
	second.ID = 0
	second.Slot = next
	second.StartMinutes, second.EndMinutes = 0, 0
	second.HTP = 0
	return second, true
}

// keptSecondHalf rebuilds an existing second half from its edited first half, leaving it where it is.
func keptSecondHalf(first, partner models.Session) models.Session {
	second := first.Clone()
	second.ID = partner.ID
	second.Day = partner.Day
	second.Slot = partner.Slot
	second.StartMinutes, second.EndMinutes = partner.StartMinutes, partner.EndMinutes
	second.HTP = 0
	second.Locked = partner.Locked
	return second
}

func samePlacement(a, b models.Session) bool {
	return a.Day == b.Day &&
		timegrid.CanonicalLabel(a.Slot) == timegrid.CanonicalLabel(b.Slot) &&
		a.StartMinutes == b.StartMinutes &&
		a.EndMinutes == b.EndMinutes
}

// hoursFor resolves hTP: explicit value, then subject volume, then slot length (doubled for couples).
func (s *SessionService) hoursFor(session models.Session, coupled bool, explicit *float64) float64 {
	if explicit != nil && (*explicit > 0 || !coupled) {
		return *explicit
	}
	if cfg, ok := s.ws.doc.SubjectConfig[session.Subject]; ok {
		if hours := cfg.VolumeHTP.For(session.Type); hours > 0 {
			return hours
		}
	}
	hours := float64(timegrid.DefaultDuration) / 60
	if from, to, ok := s.ws.grid.Range(session); ok {
		hours = float64(to-from) / 60
	}
	if coupled {
		hours *= 2
	}
	return hours
}

func (s *SessionService) unexpected(op string, id int, err error) error {
	s.logger.Error("session operation failed",
		zap.String("op", op),
		zap.Int("session_id", id),
		zap.String("term", string(s.ws.term)),
		zap.Error(err),
	)
	if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
		return appErr
	}
	return appErrors.CloneWrap(appErrors.ErrInternal, err, op+" failed")
}

func trimForm(form dto.SessionForm) dto.SessionForm {
	form.Day = strings.TrimSpace(form.Day)
	form.Slot = strings.TrimSpace(form.Slot)
	form.StartTime = strings.TrimSpace(form.StartTime)
	form.EndTime = strings.TrimSpace(form.EndTime)
	form.Type = strings.TrimSpace(form.Type)
	form.Subject = strings.TrimSpace(form.Subject)
	form.Filiere = strings.TrimSpace(form.Filiere)
	form.Section = strings.TrimSpace(form.Section)
	form.Subgroup = strings.TrimSpace(form.Subgroup)
	form.Room = strings.TrimSpace(form.Room)
	return form
}

func notFound(id int) error {
	return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("session %d not found", id))
}

func cancelledMove(original models.Session) *models.MoveOutcome {
	return &models.MoveOutcome{
		OperationResult: models.OperationResult{Success: false, Session: &original, Message: "move cancelled"},
		Status:          models.MoveCancelled,
		Previous:        &original,
	}
}

func suppressedOf(report conflict.Report) []string {
	var out []string
	for _, c := range report.Conflicts {
		if c.Suppressed {
			out = append(out, c.String())
		}
	}
	return out
}

func onlyKind(conflicts []models.Conflict, kind models.ConflictKind) bool {
	for _, c := range conflicts {
		if c.Kind != kind {
			return false
		}
	}
	return len(conflicts) > 0
}

func replaceSession(list []models.Session, s models.Session) []models.Session {
	out := make([]models.Session, 0, len(list)+1)
	replaced := false
	for _, item := range list {
		if item.ID == s.ID {
			out = append(out, s)
			replaced = true
			continue
		}
		out = append(out, item)
	}
	if !replaced {
		out = append(out, s)
	}
	return out
}

func teaches(s models.Session, normalized string) bool {
	for _, t := range s.Teachers {
		if models.NormalizeName(t) == normalized {
			return true
		}
	}
	return false
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
