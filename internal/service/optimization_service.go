package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edt-scheduler/internal/dto"
	"github.com/noah-isme/edt-scheduler/internal/events"
	"github.com/noah-isme/edt-scheduler/internal/models"
	"github.com/noah-isme/edt-scheduler/internal/optimizer"
	"github.com/noah-isme/edt-scheduler/internal/registry"
	"github.com/noah-isme/edt-scheduler/internal/repository"
	appErrors "github.com/noah-isme/edt-scheduler/pkg/errors"
	"github.com/noah-isme/edt-scheduler/pkg/jobs"
	"github.com/noah-isme/edt-scheduler/pkg/storage"
)

const optimizeJobType = "optimize"

// OptimizationConfig governs optimization runs.
type OptimizationConfig struct {
	ProposalTTL   time.Duration
	Workers       int
	MaxIterations int
}

// OptimizationService runs the optimizer on snapshots of the active term and applies reviewed proposals.
type OptimizationService struct {
	ws        *Workspace
	backups   *storage.LocalStorage
	validator *validator.Validate
	logger    *zap.Logger
	cfg       OptimizationConfig
	store     *proposalStore
	queue     *jobs.Queue
}

// NewOptimizationService wires the optimizer. A nil backups storage keeps backups in the Store only.
func NewOptimizationService(ws *Workspace, backups *storage.LocalStorage, logger *zap.Logger, cfg OptimizationConfig) *OptimizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	s := &OptimizationService{
		ws:        ws,
		backups:   backups,
		validator: newValidator(),
		logger:    logger,
		cfg:       cfg,
		store:     newProposalStore(cfg.ProposalTTL),
	}
	s.queue = jobs.NewQueue("optimizer", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: -1,
		Logger:     logger,
	})
	return s
}

// Start launches the workers serving Submit.
func (s *OptimizationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for running jobs to exit.
func (s *OptimizationService) Stop() {
	s.queue.Stop()
}

// Optimize runs synchronously and stores the result as a proposal.
func (s *OptimizationService) Optimize(ctx context.Context, opts optimizer.Options) (*dto.ProposalResponse, error) {
	proposal := optimizationProposal{
		ID:          uuid.NewString(),
		Status:      dto.ProposalPending,
		RequestedAt: time.Now().UTC(),
	}
	if err := s.run(ctx, &proposal, opts); err != nil {
		return nil, err
	}
	return proposal.response(), nil
}

// Submit queues a run; poll Proposal with the returned id.
func (s *OptimizationService) Submit(_ context.Context, opts optimizer.Options) (*dto.ProposalResponse, error) {
	proposal := optimizationProposal{
		ID:          uuid.NewString(),
		Term:        s.ws.Term(),
		Status:      dto.ProposalPending,
		RequestedAt: time.Now().UTC(),
	}
	s.store.Save(proposal)
	if _, err := s.queue.Enqueue(jobs.Job{ID: proposal.ID, Type: optimizeJobType, Payload: opts}); err != nil {
		s.store.Delete(proposal.ID)
		return nil, appErrors.CloneWrap(appErrors.ErrInternal, err, "optimizer queue unavailable")
	}
	return proposal.response(), nil
}

// Proposal returns a stored proposal until it expires.
func (s *OptimizationService) Proposal(_ context.Context, id string) (*dto.ProposalResponse, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return proposal.response(), nil
}

func (s *OptimizationService) handleJob(ctx context.Context, job jobs.Job) error {
	opts, _ := job.Payload.(optimizer.Options)
	proposal, ok := s.store.Get(job.ID)
	if !ok {
		return nil
	}
	if err := s.run(ctx, &proposal, opts); err != nil {
		s.logger.Warn("queued optimization failed", zap.String("proposal_id", job.ID), zap.Error(err))
	}
	return nil
}

// run snapshots the term under the lock and optimizes outside it. The proposal is stored either way.
func (s *OptimizationService) run(ctx context.Context, proposal *optimizationProposal, opts optimizer.Options) error {
	s.ws.mu.Lock()
	sessions := s.ws.reg.List()
	detector := s.ws.detector
	proposal.Term = s.ws.term
	proposal.Revision = s.ws.revision
	wishes := make(map[string]models.TeacherWish, len(s.ws.doc.Wishes))
	for name, wish := range s.ws.doc.Wishes {
		wishes[name] = wish
	}
	s.ws.mu.Unlock()

	if opts.MaxIterations == 0 && s.cfg.MaxIterations > 0 {
		opts.MaxIterations = s.cfg.MaxIterations
	}
	opts.Wishes = wishes

	started := time.Now()
	progress := func(p optimizer.Progress) {
		s.logger.Debug("optimization progress",
			zap.String("proposal_id", proposal.ID),
			zap.Int("step", p.Step),
			zap.Int("total", p.Total),
			zap.String("message", p.Message),
		)
	}
	result, err := optimizer.New(detector, s.logger).Optimize(ctx, sessions, opts, progress)
	if err != nil {
		s.ws.metrics.RecordOptimizerRun("failed", time.Since(started))
		proposal.Status = dto.ProposalFailed
		proposal.Err = err.Error()
		s.store.Save(*proposal)
		s.logger.Error("optimization failed",
			zap.String("op", "optimize"),
			zap.String("term", string(proposal.Term)),
			zap.Error(err),
		)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return appErrors.CloneWrap(appErrors.ErrPreconditionFailed, err, "optimization cancelled")
		}
		if appErr := appErrors.FromError(err); appErr.Code != appErrors.ErrInternal.Code {
			return appErr
		}
		return appErrors.CloneWrap(appErrors.ErrInternal, err, "optimization failed")
	}
	s.ws.metrics.RecordOptimizerRun("ok", time.Since(started))
	proposal.Status = dto.ProposalReady
	proposal.Result = result
	s.store.Save(*proposal)
	return nil
}

// Apply installs a ready proposal. The term is backed up first unless the request opts out.
func (s *OptimizationService) Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(fieldErrors(err), "")
	}
	proposal, ok := s.store.Get(req.ProposalID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	if proposal.Status != dto.ProposalReady || proposal.Result == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "proposal is not ready: "+string(proposal.Status))
	}

	s.ws.mu.Lock()
	defer s.ws.mu.Unlock()

	if proposal.Term != s.ws.term || proposal.Revision != s.ws.revision {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "timetable changed since the proposal was computed")
	}

	resp := &dto.ApplyProposalResponse{ProposalID: proposal.ID, Term: proposal.Term}
	if req.Backup == nil || *req.Backup {
		key, file, err := s.backup(ctx)
		if err != nil {
			return nil, err
		}
		resp.BackupKey, resp.BackupFile = key, file
	}

	optimized := models.CloneSessions(proposal.Result.OptimizedSessions)
	err := s.ws.reg.Batch("optimize", func(r *registry.Registry) error {
		r.ReplaceAll(optimized)
		return nil
	})
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrInternal, err, "apply failed")
	}
	if err := s.ws.commitTerm(ctx, "optimize"); err != nil {
		return nil, err
	}

	proposal.Status = dto.ProposalApplied
	s.store.Save(proposal)

	resp.Sessions = s.ws.reg.Len()
	resp.Stats = proposal.Result.OptimizedStats
	s.ws.publish(events.ScheduleOptimized, map[string]interface{}{
		"proposalId":  proposal.ID,
		"moves":       len(proposal.Result.Moves),
		"improvement": proposal.Result.Improvement,
	})
	s.logger.Info("optimization applied",
		zap.String("proposal_id", proposal.ID),
		zap.String("term", string(proposal.Term)),
		zap.Int("moves", len(proposal.Result.Moves)),
		zap.String("backup", resp.BackupKey),
	)
	return resp, nil
}

// backup writes the active term to the Store and, when configured, to a JSON file. Callers hold the lock.
func (s *OptimizationService) backup(ctx context.Context) (string, string, error) {
	s.ws.syncTerm()
	data := s.ws.doc.TermData(s.ws.term)
	key := repository.BackupKey(string(s.ws.term), time.Now())
	if err := s.ws.save(ctx, key, data); err != nil {
		return "", "", err
	}
	if s.backups == nil {
		return key, "", nil
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return key, "", nil
	}
	file, err := s.backups.Save(key+".json", raw)
	if err != nil {
		s.logger.Warn("backup file not written", zap.String("key", key), zap.Error(err))
		return key, "", nil
	}
	return key, file, nil
}

// --- Proposal cache ---

type optimizationProposal struct {
	ID          string
	Term        models.Term
	Revision    uint64
	Status      dto.ProposalStatus
	Err         string
	RequestedAt time.Time
	Result      *optimizer.Result
}

func (p optimizationProposal) response() *dto.ProposalResponse {
	return &dto.ProposalResponse{
		ProposalID:  p.ID,
		Term:        p.Term,
		Status:      p.Status,
		Error:       p.Err,
		RequestedAt: p.RequestedAt,
		Result:      p.Result,
	}
}

type proposalStore struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]optimizationProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		items: make(map[string]optimizationProposal),
	}
}

func (s *proposalStore) Save(proposal optimizationProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ID] = proposal
}

func (s *proposalStore) Get(id string) (optimizationProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return optimizationProposal{}, false
	}
	if time.Since(proposal.RequestedAt) > s.ttl {
		s.Delete(id)
		return optimizationProposal{}, false
	}
	return proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
