package photos

import (
	"context"
	"sync"
	"time"
)

// MemorySource keeps assets in memory. It backs the ephemeral demo mode and
// doubles as the test source across packages.
type MemorySource struct {
	mu     sync.RWMutex
	assets map[string]Asset
	access AccessLevel
}

// NewMemorySource constructs an empty source with access granted.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		assets: make(map[string]Asset),
		access: AccessGranted,
	}
}

// Add registers an asset with the given capture time.
func (s *MemorySource) Add(ref string, capturedAt time.Time) Asset {
	s.mu.Lock()
	defer s.mu.Unlock()

	asset := Asset{Ref: ref, CapturedAt: capturedAt}
	s.assets[ref] = asset
	return asset
}

// Remove drops an asset, simulating external deletion.
func (s *MemorySource) Remove(ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.assets, ref)
}

// SetAccess overrides the reported permission level.
func (s *MemorySource) SetAccess(level AccessLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = level
}

// RequestAccess implements Source.
func (s *MemorySource) RequestAccess(ctx context.Context) (AccessLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access, nil
}

// FetchSince implements Source.
func (s *MemorySource) FetchSince(ctx context.Context, cutoff time.Time) ([]Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Asset
	for _, asset := range s.assets {
		if asset.CapturedAt.Before(cutoff) {
			continue
		}
		out = append(out, asset)
	}
	return out, nil
}

// Resolve implements Source.
func (s *MemorySource) Resolve(ctx context.Context, ref string) (*Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return &asset, nil
}

// Delete implements Source.
func (s *MemorySource) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[ref]; !ok {
		return ErrNotFound
	}
	delete(s.assets, ref)
	return nil
}
