package roster

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/school-notify-api/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const cacheKey = "roster:ids"

// Gateway is the read side of the roster used by registration and broadcast.
// Successful fetches are cached for ttl; failures are never cached. A ttl of
// zero reads the source on every call. Concurrent misses share one fetch,
// bounded by the source's own timeout rather than the first caller's context.
type Gateway struct {
	source Source
	cache  Cache
	ttl    time.Duration
	group  singleflight.Group
}

func NewGateway(source Source, cache Cache, ttl time.Duration) *Gateway {
	return &Gateway{source: source, cache: cache, ttl: ttl}
}

// IDs returns every roster id.
func (g *Gateway) IDs(ctx context.Context) ([]string, error) {
	if g.cached() {
		ids, ok, err := g.cache.Get(ctx, cacheKey)
		switch {
		case err != nil:
			metrics.RosterCacheLookups.WithLabelValues("error").Inc()
			slog.Warn("roster cache read failed", "err", err)
		case ok:
			metrics.RosterCacheLookups.WithLabelValues("hit").Inc()
			return ids, nil
		default:
			metrics.RosterCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	// The shared fetch outlives any single caller; each caller waits on its own ctx.
	fetchCtx := context.WithoutCancel(ctx)
	ch := g.group.DoChan(cacheKey, func() (interface{}, error) {
		ids, err := g.source.FetchIDs(fetchCtx)
		if err != nil {
			return nil, err
		}
		if g.cached() {
			if err := g.cache.Set(fetchCtx, cacheKey, ids, g.ttl); err != nil {
				slog.Warn("roster cache write failed", "err", err)
			}
		}
		return ids, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

// Contains reports whether id is on the roster.
func (g *Gateway) Contains(ctx context.Context, id string) (bool, error) {
	ids, err := g.IDs(ctx)
	if err != nil {
		return false, err
	}
	id = strings.TrimSpace(id)
	for _, rid := range ids {
		if rid == id {
			return true, nil
		}
	}
	return false, nil
}

func (g *Gateway) cached() bool {
	return g.cache != nil && g.ttl > 0
}
