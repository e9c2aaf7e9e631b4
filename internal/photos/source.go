package photos

import (
	"context"
	"errors"
	"time"
)

// Asset identifies a screenshot-like item held by the photo source. Ref is
// stable across application runs for a given physical asset.
type Asset struct {
	Ref        string    `json:"ref"`
	CapturedAt time.Time `json:"captured_at"`
}

// AccessLevel mirrors the photo source permission states.
type AccessLevel string

const (
	AccessGranted    AccessLevel = "granted"
	AccessLimited    AccessLevel = "limited"
	AccessDenied     AccessLevel = "denied"
	AccessRestricted AccessLevel = "restricted"
)

// Readable reports whether assets can be fetched at this access level.
func (l AccessLevel) Readable() bool {
	return l == AccessGranted || l == AccessLimited
}

// ErrNotFound indicates an asset reference no longer resolves in the source.
var ErrNotFound = errors.New("photos: asset not found")

// Source abstracts the device photo library. Implementations must be safe for
// concurrent use.
type Source interface {
	// RequestAccess reports the current permission state. Callers gate fetch
	// and resolve operations on a readable level.
	RequestAccess(ctx context.Context) (AccessLevel, error)

	// FetchSince returns screenshot assets captured at or after the cutoff.
	// Order is unspecified; callers sort.
	FetchSince(ctx context.Context, cutoff time.Time) ([]Asset, error)

	// Resolve returns the asset for ref, or ErrNotFound when it no longer
	// exists in the source.
	Resolve(ctx context.Context, ref string) (*Asset, error)

	// Delete removes the asset from the source. Returns ErrNotFound when the
	// asset is already gone.
	Delete(ctx context.Context, ref string) error
}
