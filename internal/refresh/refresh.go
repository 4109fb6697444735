// Package refresh keeps the store current by fetching every table source on
// a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/star/skywatch/internal/archive"
	"github.com/star/skywatch/internal/heavens"
	"github.com/star/skywatch/internal/metrics"
)

// DefaultSchedule refreshes every source twice an hour.
const DefaultSchedule = "@every 30m"

// ErrUnknownSource is returned by RefreshOnce for an unregistered source.
var ErrUnknownSource = errors.New("unknown table source")

// Config holds refresher configuration.
type Config struct {
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Refresher fetches sources on a schedule and on demand, keeps the store
// current and archives tables whose content changed.
type Refresher struct {
	cfg     Config
	sched   cron.Schedule
	sources map[string]heavens.TableGetter
	store   *archive.Store
	archive *archive.Cache
	logger  *slog.Logger

	mu      sync.Mutex
	digests map[string]string
}

// New creates a Refresher. The schedule accepts standard five-field cron
// expressions and descriptors such as "@hourly" or "@every 15m". archive
// may be nil to disable on-disk history.
func New(cfg Config, store *archive.Store, ac *archive.Cache, logger *slog.Logger, sources ...heavens.TableGetter) (*Refresher, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", cfg.Schedule, err)
	}

	r := &Refresher{
		cfg:     cfg,
		sched:   sched,
		sources: make(map[string]heavens.TableGetter, len(sources)),
		store:   store,
		archive: ac,
		logger:  logger,
		digests: make(map[string]string),
	}
	for _, s := range sources {
		if _, dup := r.sources[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate table source %q", s.Name())
		}
		r.sources[s.Name()] = s
	}
	return r, nil
}

// Sources returns the registered source names, sorted.
func (r *Refresher) Sources() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether source is registered.
func (r *Refresher) Has(source string) bool {
	_, ok := r.sources[source]
	return ok
}

// Next returns the next scheduled run after t.
func (r *Refresher) Next(t time.Time) time.Time {
	return r.sched.Next(t)
}

// Seed records t as the current table for its source without fetching,
// e.g. when warming the store from the archive at startup.
func (r *Refresher) Seed(t *heavens.Table) {
	r.store.Set(t)
	r.mu.Lock()
	r.digests[t.Source] = t.Digest()
	r.mu.Unlock()
}

// RefreshOnce fetches source once and updates the store. The table is
// archived only when its digest differs from the last one seen.
func (r *Refresher) RefreshOnce(ctx context.Context, source string) (*heavens.Table, error) {
	src, ok := r.sources[source]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	t, err := src.GetTable(ctx)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, &heavens.FetchError{Source: source, Err: heavens.ErrEmptyTable}
	}

	r.store.Set(t)
	metrics.SetTableAge(source, 0)

	digest := t.Digest()
	r.mu.Lock()
	changed := r.digests[source] != digest
	r.digests[source] = digest
	r.mu.Unlock()

	if changed && r.archive != nil {
		if err := r.archive.Write(t); err != nil {
			r.logger.Warn("failed to archive table", "source", source, "error", err)
		} else {
			metrics.IncArchiveWrites(source)
		}
	}

	r.logger.Info("table refreshed", "source", source, "rows", len(t.Rows), "changed", changed)
	return t, nil
}

// RefreshAll refreshes every source independently and joins their errors.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, name := range r.Sources() {
		if _, err := r.RefreshOnce(ctx, name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start runs the schedule until ctx is cancelled. Overlapping runs of the
// same source are skipped. It also refreshes the table age gauges.
func (r *Refresher) Start(ctx context.Context) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{r.logger})))

	for _, name := range r.Sources() {
		c.Schedule(r.sched, cron.FuncJob(func() {
			if _, err := r.RefreshOnce(ctx, name); err != nil {
				r.logger.Warn("scheduled refresh failed", "source", name, "error", err)
			}
		}))
	}

	c.Start()
	r.logger.Info("refresher started", "schedule", r.cfg.Schedule, "sources", r.Sources(), "next_run", r.Next(time.Now()).Format(time.RFC3339))

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, name := range r.Sources() {
				if age := r.store.AgeSeconds(name); age >= 0 {
					metrics.SetTableAge(name, age)
				}
			}
		case <-ctx.Done():
			<-c.Stop().Done()
			r.logger.Info("refresher stopped")
			return
		}
	}
}

// cronLogger adapts slog to cron.Logger. cron reports every job start and
// finish through Info, so those go to slog at debug level.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, append([]any{"component", "cron"}, keysAndValues...)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{"component", "cron", "error", err}, keysAndValues...)...)
}
