package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/regionmap/internal/metrics"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// DefaultReloadTimeout bounds one snapshot rebuild.
var DefaultReloadTimeout = 2 * time.Minute

// DefaultWarningLimit caps the warnings retained on a snapshot.
const DefaultWarningLimit = 200

// RowSource yields the billing rows for one snapshot.
type RowSource interface {
	Name() string
	LoadRows(ctx context.Context, opts ...Option) ([]Row, error)
}

// BoundarySource yields the region shapes the rows are joined against.
type BoundarySource interface {
	LoadBoundaries(ctx context.Context, opts ...Option) ([]BoundaryRecord, error)
}

// ServiceConfig tunes snapshot construction.
type ServiceConfig struct {
	Columns       Columns
	Workers       int
	Normalizer    func(string) string
	WarningLimit  int
	ReloadTimeout time.Duration
	MaxReloads    int
	ReloadWait    time.Duration
}

// Service owns the current snapshot and rebuilds it on demand.
// Readers never block: Snapshot returns whatever was last published.
type Service struct {
	rows       RowSource
	boundaries BoundarySource
	cfg        ServiceConfig
	limiter    *ReloadLimiter
	logger     *slog.Logger

	current atomic.Pointer[Snapshot]
}

// NewService creates a Service with no snapshot loaded. Call Reload before
// serving reads.
func NewService(rows RowSource, boundaries BoundarySource, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cfg.Columns == (Columns{}) {
		cfg.Columns = DefaultColumns()
	}
	if cfg.WarningLimit == 0 {
		cfg.WarningLimit = DefaultWarningLimit
	}
	if cfg.ReloadTimeout <= 0 {
		cfg.ReloadTimeout = DefaultReloadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		rows:       rows,
		boundaries: boundaries,
		cfg:        cfg,
		limiter:    NewReloadLimiter(cfg.MaxReloads, cfg.ReloadWait),
		logger:     logger,
	}
}

// Limiter exposes the reload limiter for health reporting and shutdown.
func (s *Service) Limiter() *ReloadLimiter {
	return s.limiter
}

// Snapshot returns the current snapshot, or ErrNoSnapshot before the first
// successful reload.
func (s *Service) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	return snap, nil
}

// Reload builds a new snapshot from the sources and publishes it, waiting up
// to ReloadWait for a running reload to finish. On failure the previous
// snapshot stays current.
func (s *Service) Reload(ctx context.Context) (*Snapshot, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		if errors.Is(err, ErrReloadBusy) {
			metrics.Reloads.WithLabelValues(metrics.ResultBusy).Inc()
		}
		return nil, err
	}
	defer s.limiter.Release()
	return s.reload(ctx)
}

// TryReload is Reload without waiting: it returns ErrReloadBusy at once if
// another reload is running. Scheduled reloads use it so they never queue
// behind a manual one.
func (s *Service) TryReload(ctx context.Context) (*Snapshot, error) {
	if !s.limiter.TryAcquire() {
		metrics.Reloads.WithLabelValues(metrics.ResultBusy).Inc()
		return nil, ErrReloadBusy
	}
	defer s.limiter.Release()
	return s.reload(ctx)
}

func (s *Service) reload(ctx context.Context) (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReloadTimeout)
	defer cancel()

	source := s.rows.Name()
	trigger := TriggerFromContext(ctx)
	start := time.Now()
	snap, err := s.build(ctx)
	elapsed := time.Since(start)
	metrics.ReloadDuration.WithLabelValues(source).Observe(elapsed.Seconds())

	if err != nil {
		metrics.Reloads.WithLabelValues(metrics.ResultFailed).Inc()
		s.logger.Error("snapshot reload failed",
			"source", source,
			"trigger", trigger.Reason,
			"remote_addr", trigger.RemoteAddr,
			"duration", elapsed,
			"error", err,
		)
		return nil, err
	}
	snap.Duration = elapsed
	snap.Trigger = trigger

	s.current.Store(snap)
	s.publishMetrics(snap)
	metrics.Reloads.WithLabelValues(metrics.ResultOK).Inc()

	s.logger.Info("snapshot loaded",
		"id", snap.ID,
		"source", source,
		"trigger", trigger.Reason,
		"remote_addr", trigger.RemoteAddr,
		"rows", snap.Rows,
		"bytes", snap.SourceBytes,
		"regions", len(snap.Boundaries),
		"categories", snap.Categories.Len(),
		"warnings", snap.Warnings.Total,
		"duration", elapsed,
	)
	return snap, nil
}

func (s *Service) build(ctx context.Context) (*Snapshot, error) {
	warnings := &WarningLog{Limit: s.cfg.WarningLimit}
	var mu sync.Mutex
	warn := func(w Warning) {
		mu.Lock()
		warnings.Add(w)
		logged := s.cfg.WarningLimit <= 0 || warnings.Total <= s.cfg.WarningLimit
		mu.Unlock()

		metrics.Warnings.WithLabelValues(string(w.Kind)).Inc()
		if logged {
			s.logger.Warn("degraded input",
				"kind", w.Kind,
				"line", w.Line,
				"column", w.Column,
				"value", w.Value,
				"message", w.Message,
			)
		}
	}

	opts := []Option{WithWarnFunc(warn)}
	if s.cfg.Normalizer != nil {
		opts = append(opts, WithRegionNormalizer(s.cfg.Normalizer))
	}

	var sourceBytes int64
	loadOpts := append([]Option{WithByteCount(func(n int64) { sourceBytes = n })}, opts...)
	rows, err := s.rows.LoadRows(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load rows from %s: %w", s.rows.Name(), err)
	}

	index, categories, err := AggregateParallel(ctx, rows, s.cfg.Columns, s.cfg.Workers, opts...)
	if err != nil {
		return nil, err
	}

	boundaries, err := s.boundaries.LoadBoundaries(ctx, WithWarnFunc(warn))
	if err != nil {
		return nil, fmt.Errorf("load boundary file: %w", err)
	}
	if len(boundaries) == 0 {
		return nil, ErrNoBoundaries
	}

	if s.cfg.WarningLimit > 0 && warnings.Total > s.cfg.WarningLimit {
		s.logger.Warn("further degraded input not logged",
			"suppressed", warnings.Total-s.cfg.WarningLimit,
		)
	}

	snap := newSnapshot(s.rows.Name(), rows, index, categories, Join(index, categories, boundaries), *warnings)
	snap.SourceBytes = sourceBytes
	return snap, nil
}

func (s *Service) publishMetrics(snap *Snapshot) {
	metrics.SnapshotRows.Set(float64(snap.Rows))
	metrics.SnapshotCategories.Set(float64(snap.Categories.Len()))
	for _, class := range snap.Legend() {
		metrics.SnapshotRegions.WithLabelValues(class.Label).Set(float64(class.Regions))
	}
}

// Snapshot is one immutable build of the pipeline. All fields are read-only
// once published.
type Snapshot struct {
	ID          uuid.UUID
	Source      string
	LoadedAt    time.Time
	Duration    time.Duration
	Trigger     ReloadTrigger
	Rows        int
	SourceBytes int64 // size of the parsed input; 0 for query sources
	Index       *AggregateIndex
	Categories  *CategorySet
	Boundaries  []AnnotatedBoundary
	Warnings    WarningLog

	byRegion map[string]int
}

func newSnapshot(source string, rows []Row, index *AggregateIndex, categories *CategorySet, annotated []AnnotatedBoundary, warnings WarningLog) *Snapshot {
	byRegion := make(map[string]int, len(annotated))
	for i, a := range annotated {
		if _, ok := byRegion[a.Region]; !ok && a.Region != "" {
			byRegion[a.Region] = i
		}
	}
	return &Snapshot{
		ID:         uuid.New(),
		Source:     source,
		LoadedAt:   time.Now().UTC(),
		Rows:       len(rows),
		Index:      index,
		Categories: categories,
		Boundaries: annotated,
		Warnings:   warnings,
		byRegion:   byRegion,
	}
}

// Boundary returns the first annotated boundary for a region.
func (s *Snapshot) Boundary(region string) (AnnotatedBoundary, bool) {
	i, ok := s.byRegion[region]
	if !ok {
		return AnnotatedBoundary{}, false
	}
	return s.Boundaries[i], true
}

// Summarize builds the popup summary for a region.
func (s *Snapshot) Summarize(region string) Summary {
	return Summarize(s.Index, s.Categories, region)
}

// Legend labels for the two presence classes.
const (
	LegendNoData = "No Data"
	LegendData   = "Data"
)

// LegendClass is one entry of the choropleth legend.
type LegendClass struct {
	Label   string `json:"label"`
	HasData bool   `json:"hasData"`
	Regions int    `json:"regions"`
}

// Legend counts boundary regions per presence class, No Data first.
func (s *Snapshot) Legend() []LegendClass {
	withData := lo.CountBy(s.Boundaries, func(a AnnotatedBoundary) bool {
		return a.HasData
	})
	return []LegendClass{
		{Label: LegendNoData, HasData: false, Regions: len(s.Boundaries) - withData},
		{Label: LegendData, HasData: true, Regions: withData},
	}
}

// UnmatchedRegions lists regions with data that no boundary record names,
// sorted. Their rows are aggregated but never drawn.
func (s *Snapshot) UnmatchedRegions() []string {
	return lo.Filter(s.Index.Regions(), func(region string, _ int) bool {
		_, ok := s.byRegion[region]
		return !ok
	})
}
