package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"kiln/internal/catalog"
	"kiln/internal/config"
	"kiln/internal/diag"
	"kiln/internal/logging"
)

// LockFileName is the flock target under the output root that guards
// against two services cooking into the same tree.
const LockFileName = ".kiln.lock"

const poolQueueSize = 256

// Option configures optional Service collaborators.
type Option func(*Service)

// WithLogger attaches a logger. The default discards everything.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithStore attaches a catalog store recording finished jobs.
func WithStore(store *catalog.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// Service accepts import requests and runs them as concurrent jobs. All
// exported methods are safe from any goroutine.
type Service struct {
	cfg   *config.Config
	log   *slog.Logger
	store *catalog.Store

	lockPath string
	lock     *flock.Flock
	pool     worker.DynamicWorkerPool

	mu        sync.Mutex
	running   bool
	accepting bool
	jobs      map[JobID]*job
	pending   []*job
	inFlight  int
	drained   chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	kick      chan struct{}
	wg        sync.WaitGroup
}

type job struct {
	id      JobID
	req     Request
	index   map[string]int
	created time.Time

	ctx    context.Context
	cancel context.CancelFunc

	onComplete CompletionFunc
	onProgress ProgressFunc
	onCancel   CancelFunc

	cancelRequested atomic.Bool
	cancelOnce      sync.Once

	mu     sync.Mutex
	status Status
	report *Report
}

func (j *job) setStatus(status Status) {
	j.mu.Lock()
	j.status = status
	j.mu.Unlock()
}

func (j *job) currentStatus() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *job) setReport(rep *Report) {
	j.mu.Lock()
	j.report = rep
	j.mu.Unlock()
}

func (j *job) finalReport() *Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

func (j *job) requestCancel() {
	j.cancelRequested.Store(true)
	j.cancel()
	if j.onCancel != nil {
		j.cancelOnce.Do(func() { j.onCancel(j.id) })
	}
}

func (j *job) notifyProgress(p Progress) {
	if j.onProgress != nil {
		j.onProgress(p)
	}
}

// New builds a stopped service. Start acquires the output lock and begins
// dispatching.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("importer requires a config")
	}
	s := &Service{
		cfg:  cfg,
		log:  logging.NewNop(),
		jobs: make(map[JobID]*job),
		kick: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.NewComponentLogger(s.log, "importer")
	return s, nil
}

// Start acquires the single-writer lock on the output root, builds the
// shared worker pool, and starts the dispatcher. A second kiln against the
// same root fails here with ErrUnavailable.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("import service already running")
	}
	if err := s.cfg.EnsureDirectories(); err != nil {
		return diag.Wrap(diag.ErrIO, "importer", "start", "ensure directories", err)
	}

	lockPath := filepath.Join(s.cfg.OutputRoot(), LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return diag.Wrap(diag.ErrIO, "importer", "start", "acquire output lock", err)
	}
	if !ok {
		return diag.Wrap(diag.ErrUnavailable, "importer", "start",
			fmt.Sprintf("output root %s is locked by another kiln", s.cfg.OutputRoot()), nil)
	}

	s.lock = lock
	s.lockPath = lockPath
	s.pool = worker.NewDynamicWorkerPool(s.cfg.WorkerPoolSize(), poolQueueSize, s.cfg.WorkerIdleTimeout())
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.drained = make(chan struct{})
	s.running = true
	s.accepting = true
	s.wg.Add(1)
	go s.dispatch()

	s.log.Info("import service started",
		logging.String(logging.FieldPath, s.cfg.OutputRoot()),
		logging.Int("max_jobs", s.maxConcurrent()),
		logging.Int("pool_size", s.cfg.WorkerPoolSize()))
	return nil
}

// SubmitImport validates and enqueues one job. The returned id is usable
// for cancellation and queries before the job starts. onComplete receives
// the final report from the job's goroutine.
func (s *Service) SubmitImport(req Request, onComplete CompletionFunc, opts ...SubmitOption) (JobID, error) {
	index, err := validate(req)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if !s.running || !s.accepting {
		s.mu.Unlock()
		return "", diag.Wrap(diag.ErrUnavailable, "importer", "submit", "service is not accepting jobs", nil)
	}
	id := JobID(uuid.NewString())
	jctx, jcancel := context.WithCancel(s.ctx)
	j := &job{
		id:         id,
		req:        req,
		index:      index,
		created:    time.Now(),
		ctx:        jctx,
		cancel:     jcancel,
		onComplete: onComplete,
		status:     StatusPending,
	}
	for _, opt := range opts {
		opt(j)
	}
	s.jobs[id] = j
	s.pending = append(s.pending, j)
	s.mu.Unlock()

	s.kickDispatch()
	s.log.Info("job submitted",
		logging.String(logging.FieldJobID, string(id)),
		logging.String("label", req.Label),
		logging.Int(logging.FieldCount, len(req.Items)))
	return id, nil
}

// SubmitOption attaches optional per-job callbacks.
type SubmitOption func(*job)

// WithProgress delivers status transitions and per-item completions.
func WithProgress(fn ProgressFunc) SubmitOption {
	return func(j *job) { j.onProgress = fn }
}

// WithCancelNotice is called once when cancellation is requested.
func WithCancelNotice(fn CancelFunc) SubmitOption {
	return func(j *job) { j.onCancel = fn }
}

// CancelJob requests cooperative cancellation. It reports whether the job
// existed and was still active.
func (s *Service) CancelJob(id JobID) bool {
	s.mu.Lock()
	j := s.jobs[id]
	s.mu.Unlock()
	if j == nil || j.currentStatus().Terminal() {
		return false
	}
	j.requestCancel()
	s.log.Info("job cancellation requested", logging.String(logging.FieldJobID, string(id)))
	return true
}

// CancelAll cancels every active job and returns how many were signalled.
func (s *Service) CancelAll() int {
	s.mu.Lock()
	active := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		active = append(active, j)
	}
	s.mu.Unlock()

	count := 0
	for _, j := range active {
		if j.currentStatus().Terminal() {
			continue
		}
		j.requestCancel()
		count++
	}
	if count > 0 {
		s.log.Info("all jobs cancelled", logging.Int(logging.FieldCount, count))
	}
	return count
}

// RequestShutdown stops accepting new jobs and cancels the active ones. It
// returns immediately; Stop waits for the drain.
func (s *Service) RequestShutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.checkDrainedLocked()
	s.mu.Unlock()

	s.CancelAll()
	s.log.Info("import service shutting down")
}

// Stop requests shutdown and blocks until every accepted job has produced
// its report or ctx ends.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	drained := s.drained
	s.mu.Unlock()

	s.RequestShutdown()

	select {
	case <-drained:
	case <-ctx.Done():
		return diag.Wrap(diag.ErrCancelled, "importer", "stop", "drain interrupted", ctx.Err())
	}

	s.mu.Lock()
	cancel := s.cancel
	lock := s.lock
	s.running = false
	s.cancel = nil
	s.lock = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	if lock != nil {
		if err := lock.Unlock(); err != nil {
			s.log.Warn("failed to release output lock", logging.Error(err))
		}
	}
	s.log.Info("import service stopped")
	return nil
}

// IsJobActive reports whether the job exists and has not reached a terminal
// status.
func (s *Service) IsJobActive(id JobID) bool {
	s.mu.Lock()
	j := s.jobs[id]
	s.mu.Unlock()
	return j != nil && !j.currentStatus().Terminal()
}

// PendingJobCount returns accepted jobs that have not started.
func (s *Service) PendingJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// InFlightJobCount returns jobs currently running.
func (s *Service) InFlightJobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// JobState returns the job's current status.
func (s *Service) JobState(id JobID) (Status, bool) {
	s.mu.Lock()
	j := s.jobs[id]
	s.mu.Unlock()
	if j == nil {
		return "", false
	}
	return j.currentStatus(), true
}

// JobReport returns the final report for a finished job.
func (s *Service) JobReport(id JobID) (*Report, bool) {
	s.mu.Lock()
	j := s.jobs[id]
	s.mu.Unlock()
	if j == nil {
		return nil, false
	}
	rep := j.finalReport()
	return rep, rep != nil
}

func (s *Service) maxConcurrent() int {
	if n := s.cfg.Cooking.MaxConcurrentJobs; n > 0 {
		return n
	}
	return 1
}

func (s *Service) kickDispatch() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

func (s *Service) dispatch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.kick:
		}
		s.launchRunnable()
	}
}

func (s *Service) launchRunnable() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 || s.inFlight >= s.maxConcurrent() {
			s.checkDrainedLocked()
			s.mu.Unlock()
			return
		}
		j := s.pending[0]
		s.pending = s.pending[1:]
		s.inFlight++
		s.wg.Add(1)
		s.mu.Unlock()
		go s.runJob(j)
	}
}

// checkDrainedLocked closes the drain latch once shutdown was requested and
// no job remains queued or running. Callers hold s.mu.
func (s *Service) checkDrainedLocked() {
	if s.accepting || s.inFlight > 0 || len(s.pending) > 0 {
		return
	}
	select {
	case <-s.drained:
	default:
		close(s.drained)
	}
}

func (s *Service) runJob(j *job) {
	defer s.wg.Done()

	rep, assets := s.pump(j)
	s.recordJob(rep, assets)
	j.setReport(rep)
	j.setStatus(rep.Status)
	if j.onComplete != nil {
		j.onComplete(rep)
	}

	s.mu.Lock()
	s.inFlight--
	s.checkDrainedLocked()
	s.mu.Unlock()
	s.kickDispatch()
}

// recordJob persists the outcome when a catalog is attached. Failures are
// reported as diagnostics on the report, never as job failures.
func (s *Service) recordJob(rep *Report, assets []catalog.Asset) {
	if s.store == nil {
		return
	}
	entry := &catalog.Job{
		ID:           string(rep.JobID),
		Label:        rep.Label,
		Status:       catalogStatus(rep.Status),
		Success:      rep.Success,
		Cancelled:    rep.Cancelled,
		OutputDir:    rep.OutputDir,
		ManifestPath: rep.ManifestPath,
		Textures:     rep.Counts.Textures,
		Buffers:      rep.Counts.Buffers,
		Assets:       rep.Counts.Assets,
		Deduplicated: rep.Counts.Deduplicated,
		ErrorCount:   rep.ErrorCount(),
		WarningCount: rep.WarningCount(),
		Duration:     rep.Duration,
		CreatedAt:    rep.CreatedAt,
		FinishedAt:   rep.FinishedAt,
	}
	if err := s.store.RecordJob(context.Background(), entry, assets, rep.Diagnostics); err != nil {
		rep.Diagnostics = append(rep.Diagnostics, diag.FromError(diag.CodeCatalogFailed, err))
		s.log.Warn("catalog record failed",
			logging.String(logging.FieldJobID, string(rep.JobID)),
			logging.Error(err))
	}
}

func catalogStatus(status Status) catalog.Status {
	switch status {
	case StatusComplete:
		return catalog.StatusComplete
	case StatusCancelled:
		return catalog.StatusCancelled
	default:
		return catalog.StatusFailed
	}
}
