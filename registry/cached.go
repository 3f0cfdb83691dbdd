package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/igne-dev/pluginhost/plugin/entities"
	"github.com/igne-dev/pluginhost/plugin/ports"
	"github.com/igne-dev/pluginhost/plugin/values"
)

// CachedSource wraps a ReleaseSource with a time-bounded cache of catalog
// documents. The cache is an explicit object owned by the host, never
// process-wide state, and ClearCache makes resolution deterministic again
// for tests and forced refreshes. Concurrent fetches of the same document
// are deduplicated. Downloads are never cached.
type CachedSource struct {
	inner ports.ReleaseSource
	ttl   time.Duration
	now   func() time.Time

	mu       sync.Mutex
	releases map[string]cachedRelease
	ledgers  map[string]cachedLedger

	group singleflight.Group
}

type cachedRelease struct {
	release entities.PluginRelease
	expires time.Time
}

type cachedLedger struct {
	ledger  entities.VersionsLedger
	expires time.Time
}

var _ ports.InvalidatingSource = (*CachedSource)(nil)

// CachedSourceOption configures a CachedSource.
type CachedSourceOption func(*CachedSource)

// WithClock overrides the time source. For tests.
func WithClock(now func() time.Time) CachedSourceOption {
	return func(s *CachedSource) { s.now = now }
}

// NewCachedSource wraps inner with a TTL cache.
func NewCachedSource(inner ports.ReleaseSource, ttl time.Duration, opts ...CachedSourceOption) *CachedSource {
	s := &CachedSource{
		inner:    inner,
		ttl:      ttl,
		now:      time.Now,
		releases: make(map[string]cachedRelease),
		ledgers:  make(map[string]cachedLedger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LatestRelease returns the cached manifest or fetches it once.
func (s *CachedSource) LatestRelease(ctx context.Context, id values.PluginID) (entities.PluginRelease, error) {
	key := id.String()

	s.mu.Lock()
	if c, ok := s.releases[key]; ok && s.now().Before(c.expires) {
		s.mu.Unlock()
		return c.release, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("release:"+key, func() (any, error) {
		release, err := s.inner.LatestRelease(ctx, id)
		if err != nil {
			return entities.PluginRelease{}, err
		}
		s.mu.Lock()
		s.releases[key] = cachedRelease{release: release, expires: s.now().Add(s.ttl)}
		s.mu.Unlock()
		return release, nil
	})
	if err != nil {
		return entities.PluginRelease{}, err
	}
	return v.(entities.PluginRelease), nil
}

// Versions returns the cached ledger or fetches it once.
func (s *CachedSource) Versions(ctx context.Context, id values.PluginID) (entities.VersionsLedger, error) {
	key := id.String()

	s.mu.Lock()
	if c, ok := s.ledgers[key]; ok && s.now().Before(c.expires) {
		s.mu.Unlock()
		return c.ledger, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do("ledger:"+key, func() (any, error) {
		ledger, err := s.inner.Versions(ctx, id)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.ledgers[key] = cachedLedger{ledger: ledger, expires: s.now().Add(s.ttl)}
		s.mu.Unlock()
		return ledger, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(entities.VersionsLedger), nil
}

// Download always delegates; release artifacts are not cached here.
func (s *CachedSource) Download(ctx context.Context, release entities.PluginRelease) ([]byte, error) {
	return s.inner.Download(ctx, release)
}

// ClearCache drops all cached catalog documents.
func (s *CachedSource) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases = make(map[string]cachedRelease)
	s.ledgers = make(map[string]cachedLedger)
}
