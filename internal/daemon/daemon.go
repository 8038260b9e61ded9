// Package daemon runs the unattended ingestion loop: scan and stage
// arriving files, reconcile metadata into the catalog, publish data files,
// and sweep old files, one cycle at a time until a termination signal.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/dataset"
	"curator/internal/journal"
	"curator/internal/lifecycle"
	"curator/internal/logging"
	"curator/internal/reconcile"
)

// Daemon owns the cycle loop and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	files  *lifecycle.Manager
	engine *reconcile.Engine
	store  *journal.Store

	lockPath string
	lock     *flock.Flock
	now      func() time.Time
}

// New assembles the daemon and its dependencies: journal store, catalog,
// lifecycle manager and reconciliation engine.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("daemon requires config and logger")
	}

	store, err := journal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	filter, err := dataset.NewColumnFilter(cfg.Values.ColumnFilter)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("column filter: %w", err)
	}
	cat, err := catalog.Load(cfg, filter, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	files := lifecycle.NewManager(cfg, logger)
	engine := reconcile.NewEngine(cfg, cat, files, store, filter, logger)

	lockPath := filepath.Join(cfg.Folders.StateDir, "curator.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		files:    files,
		engine:   engine,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
		now:      time.Now,
	}, nil
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) acquireLock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another curator instance is already running")
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
}

// Run executes cycles until the context is canceled. Cancellation is
// checked only between cycles, so an in-flight cycle always completes and
// never leaves the catalog half-updated. Consecutive failing cycles beyond
// the configured budget abort the daemon.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.acquireLock(); err != nil {
		return err
	}
	defer d.releaseLock()

	d.logger.Info("curator daemon started",
		logging.String("watch", d.cfg.Folders.Watch),
		logging.String("lock", d.lockPath))

	if err := d.files.MirrorOutputs(); err != nil {
		d.logger.Warn("startup output mirror incomplete", logging.Error(err))
	}

	interval := time.Duration(d.cfg.Workflow.PollIntervalSeconds) * time.Second
	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("shutdown requested, exiting")
			return nil
		default:
		}

		if err := d.runCycle(ctx); err != nil {
			consecutive++
			d.logger.Error("cycle failed",
				logging.Int("consecutive", consecutive),
				logging.Error(err))
			if consecutive >= d.cfg.Workflow.ErrorBudget {
				return fmt.Errorf("%d consecutive failing cycles: %w", consecutive, err)
			}
		} else {
			consecutive = 0
		}

		select {
		case <-ctx.Done():
			d.logger.Info("shutdown requested, exiting")
			return nil
		case <-time.After(interval):
		}
	}
}

// runCycle performs one classify -> reconcile -> publish -> clean pass.
func (d *Daemon) runCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	started := d.now()
	logger := d.logger.With(logging.String("cycle", cycleID))

	var errs []error

	classified, err := d.files.ClassifyAndStage()
	if err != nil {
		errs = append(errs, err)
	}

	if err := d.engine.ProcessMetadataFiles(ctx, cycleID, classified.Metadata); err != nil {
		errs = append(errs, err)
	}
	if err := d.engine.ProcessDataFiles(ctx, cycleID, classified.Data); err != nil {
		errs = append(errs, err)
	}

	if due, when := d.cleanDue(ctx); due {
		for _, folder := range []string{d.cfg.Folders.Watch, d.cfg.Folders.Staging} {
			if err := d.files.CleanOld(folder); err != nil {
				errs = append(errs, err)
			}
		}
		if err := d.store.SetLastClean(ctx, when); err != nil {
			logger.Warn("record retention sweep failed", logging.Error(err))
		}
	}

	cycleErr := errors.Join(errs...)
	fileCount := 0
	for _, paths := range classified.Metadata {
		fileCount += len(paths)
	}
	for _, paths := range classified.Data {
		fileCount += len(paths)
	}

	rec := journal.CycleRecord{
		CycleID:    cycleID,
		StartedAt:  started,
		FinishedAt: d.now(),
		Files:      fileCount,
		Failures:   len(errs),
	}
	if cycleErr != nil {
		rec.Error = summarize(cycleErr)
	}
	if err := d.store.RecordCycle(ctx, rec); err != nil {
		logger.Warn("record cycle failed", logging.Error(err))
	}

	if fileCount > 0 || cycleErr != nil {
		logger.Info("cycle finished",
			logging.Int("files", fileCount),
			logging.Int("failures", len(errs)),
			logging.Duration("elapsed", rec.FinishedAt.Sub(started)))
	}
	return cycleErr
}

// cleanDue reports whether the retention sweep interval has elapsed since
// the last recorded sweep. A journal without a record means a sweep is due.
func (d *Daemon) cleanDue(ctx context.Context) (bool, time.Time) {
	now := d.now()
	last, ok, err := d.store.LastClean(ctx)
	if err != nil {
		d.logger.Warn("read last retention sweep failed", logging.Error(err))
		return false, now
	}
	if !ok {
		return true, now
	}
	interval := time.Duration(d.cfg.Workflow.CleanIntervalHours) * time.Hour
	return now.Sub(last) >= interval, now
}

// summarize keeps journal error text readable when many files fail at once.
func summarize(err error) string {
	text := err.Error()
	lines := strings.Split(text, "\n")
	if len(lines) <= 3 {
		return text
	}
	return fmt.Sprintf("%s (and %d more)", strings.Join(lines[:3], "; "), len(lines)-3)
}
