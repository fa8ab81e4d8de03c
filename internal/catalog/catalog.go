package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/af-corp/queryrouter/internal/types"
)

// Source provides collection metadata. Sources are owned by the ingestion
// side; the router only reads them.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]types.Collection, error)
}

// StaticSource adapts a function (typically the config loader) into a Source.
type StaticSource struct {
	name string
	fn   func() []types.Collection
}

func NewStaticSource(name string, fn func() []types.Collection) *StaticSource {
	return &StaticSource{name: name, fn: fn}
}

func (s *StaticSource) Name() string { return s.name }

func (s *StaticSource) Load(_ context.Context) ([]types.Collection, error) {
	return s.fn(), nil
}

// Catalog holds the current snapshot and rebuilds it from its sources.
// Sources are merged in order; a later source overrides an earlier one by name.
type Catalog struct {
	sources []Source
	logger  *slog.Logger

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	group   singleflight.Group

	mu       sync.Mutex
	lastGood map[string][]types.Collection

	onRefresh func(*Snapshot, error)
}

func New(logger *slog.Logger, sources ...Source) *Catalog {
	c := &Catalog{
		sources:  sources,
		logger:   logger,
		lastGood: make(map[string][]types.Collection),
	}
	c.current.Store(NewSnapshot(0, nil))
	return c
}

// Snapshot returns the current immutable view.
func (c *Catalog) Snapshot() *Snapshot {
	return c.current.Load()
}

// OnRefresh registers fn to run after every refresh with the resulting
// snapshot and error. Set it before the first Refresh or Run.
func (c *Catalog) OnRefresh(fn func(*Snapshot, error)) {
	c.onRefresh = fn
}

// Refresh reloads every source and swaps in a new snapshot. Concurrent callers
// share one reload. A failing source keeps contributing its last good result.
func (c *Catalog) Refresh(ctx context.Context) error {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		err := c.refresh(ctx)
		if c.onRefresh != nil {
			c.onRefresh(c.Snapshot(), err)
		}
		return nil, err
	})
	return err
}

func (c *Catalog) refresh(ctx context.Context) error {
	var merged []types.Collection
	var failed []string

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, src := range c.sources {
		cols, err := src.Load(ctx)
		if err != nil {
			c.logger.Warn("catalog source failed, using last good result",
				"source", src.Name(),
				"error", err,
			)
			failed = append(failed, src.Name())
			cols = c.lastGood[src.Name()]
		} else {
			c.lastGood[src.Name()] = cols
		}
		merged = append(merged, cols...)
	}

	snap := NewSnapshot(c.version.Add(1), merged)
	c.current.Store(snap)
	c.logger.Debug("catalog refreshed", "version", snap.Version(), "collections", snap.Len())

	if len(failed) == len(c.sources) && len(c.sources) > 0 {
		return fmt.Errorf("all catalog sources failed: %v", failed)
	}
	return nil
}

// Run refreshes the catalog on the given interval until ctx is done.
func (c *Catalog) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.logger.Error("catalog refresh failed", "error", err)
			}
		}
	}
}
