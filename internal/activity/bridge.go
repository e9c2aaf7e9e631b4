package activity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/capturecabinet/cabinet/internal/photos"
	"github.com/capturecabinet/cabinet/internal/services"
	"github.com/capturecabinet/cabinet/pkg/logger"
	"github.com/capturecabinet/cabinet/pkg/metrics"
)

const (
	defaultSelectionTimeout = 30 * time.Second
	defaultDismissDelay     = 2 * time.Second
)

// Engine is the assignment surface the bridge drives on folder selection.
type Engine interface {
	AssignToFolder(ctx context.Context, assetRef, folderID string) (services.AssignOutcome, error)
	FolderSummaries(ctx context.Context) ([]services.FolderSummary, error)
}

type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingSelection
	phaseSaving
	phaseCompleted
)

// ErrSessionBusy indicates a save is already in flight for the session.
var ErrSessionBusy = errors.New("activity: session is saving")

// Bridge runs the capture-to-filing session state machine. One session is
// live at a time; a newly detected screenshot replaces the previous session.
// Events carrying an unknown or superseded session id are dropped.
type Bridge struct {
	engine Engine
	host   Host
	log    *zap.Logger

	selectionTimeout time.Duration
	dismissDelay     time.Duration

	mu       sync.Mutex
	session  string
	phase    phase
	snapshot Snapshot
	timer    *time.Timer
}

// Option customises bridge timing.
type Option func(*Bridge)

// WithSelectionTimeout overrides how long a session waits for a folder pick.
func WithSelectionTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.selectionTimeout = d
		}
	}
}

// WithDismissDelay overrides how long the completed state stays visible.
func WithDismissDelay(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.dismissDelay = d
		}
	}
}

// NewBridge constructs the session bridge.
func NewBridge(engine Engine, host Host, opts ...Option) (*Bridge, error) {
	if engine == nil {
		return nil, errors.New("activity: engine is required")
	}
	if host == nil {
		return nil, errors.New("activity: host is required")
	}

	b := &Bridge{
		engine:           engine,
		host:             host,
		log:              logger.WithModule("activity"),
		selectionTimeout: defaultSelectionTimeout,
		dismissDelay:     defaultDismissDelay,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// StartSession presents a new session for a freshly captured screenshot. Any
// session already on screen is ended first. A host refusal leaves the bridge
// idle and is reported to the caller.
func (b *Bridge) StartSession(ctx context.Context, asset photos.Asset) (string, error) {
	folders, err := b.engine.FolderSummaries(ctx)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	if b.session != "" {
		b.endLocked(ctx, "superseded")
	}

	snapshot := Snapshot{
		SessionID:            uuid.NewString(),
		ScreenshotAssetRef:   asset.Ref,
		ScreenshotCapturedAt: asset.CapturedAt,
		Folders:              folders,
	}
	b.session = snapshot.SessionID
	b.phase = phaseAwaitingSelection
	b.snapshot = snapshot
	b.mu.Unlock()

	if err := b.host.Start(ctx, snapshot); err != nil {
		b.mu.Lock()
		if b.session == snapshot.SessionID {
			b.resetLocked()
		}
		b.mu.Unlock()

		metrics.ActivitySessions.WithLabelValues("start_failed").Inc()
		b.log.Warn("activity start refused",
			zap.String("asset_ref", asset.Ref),
			zap.Error(err))
		return "", err
	}

	b.mu.Lock()
	if b.session == snapshot.SessionID {
		b.armTimerLocked(b.selectionTimeout, func(ctx context.Context) {
			b.expire(ctx, snapshot.SessionID)
		})
	}
	b.mu.Unlock()

	return snapshot.SessionID, nil
}

// SelectFolder files the session screenshot into the chosen folder and walks
// the session through saving and completed. Selections for a session that is
// no longer current are dropped without effect.
func (b *Bridge) SelectFolder(ctx context.Context, sessionID, folderID string) error {
	b.mu.Lock()
	if b.session != sessionID {
		b.mu.Unlock()
		b.log.Debug("dropping stale selection", zap.String("session_id", sessionID))
		return nil
	}
	if b.phase == phaseSaving {
		b.mu.Unlock()
		return ErrSessionBusy
	}
	if b.phase != phaseAwaitingSelection {
		b.mu.Unlock()
		return nil
	}

	b.stopTimerLocked()
	b.phase = phaseSaving
	b.snapshot.SelectedFolderID = folderID
	b.snapshot.IsSaving = true
	saving := b.snapshot
	assetRef := b.snapshot.ScreenshotAssetRef
	b.mu.Unlock()

	if err := b.host.Update(ctx, saving); err != nil {
		b.log.Warn("activity update failed", zap.Error(err))
	}

	outcome, assignErr := b.engine.AssignToFolder(ctx, assetRef, folderID)
	saved := assignErr == nil &&
		(outcome.Status == services.AssignStatusAssigned || outcome.Status == services.AssignStatusAlreadyAssigned)

	b.mu.Lock()
	if b.session != sessionID {
		// Session was replaced mid-save. The assignment already committed;
		// only the presentation is gone.
		b.mu.Unlock()
		return assignErr
	}

	b.phase = phaseCompleted
	b.snapshot.IsSaving = false
	b.snapshot.SavedSuccessfully = &saved
	completed := b.snapshot
	b.armTimerLocked(b.dismissDelay, func(ctx context.Context) {
		b.dismiss(ctx, sessionID)
	})
	b.mu.Unlock()

	if err := b.host.Update(ctx, completed); err != nil {
		b.log.Warn("activity update failed", zap.Error(err))
	}

	if saved {
		metrics.ActivitySessions.WithLabelValues("saved").Inc()
	} else {
		metrics.ActivitySessions.WithLabelValues("failed").Inc()
		b.log.Warn("activity save failed",
			zap.String("asset_ref", assetRef),
			zap.String("folder_id", folderID),
			zap.Error(assignErr))
	}
	return assignErr
}

// Dismiss ends the session without filing. Unknown session ids are ignored.
func (b *Bridge) Dismiss(ctx context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != sessionID || b.phase == phaseSaving {
		return
	}
	b.endLocked(ctx, "dismissed")
}

// ActiveSession returns the current session snapshot, or false when idle.
func (b *Bridge) ActiveSession() (Snapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == "" {
		return Snapshot{}, false
	}
	return b.snapshot, true
}

// Close tears down any live session.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != "" {
		b.endLocked(context.Background(), "shutdown")
	}
}

// expire fires when no folder was picked within the selection window.
func (b *Bridge) expire(ctx context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != sessionID || b.phase != phaseAwaitingSelection {
		return
	}
	metrics.ActivitySessions.WithLabelValues("timeout").Inc()
	b.endLocked(ctx, "timeout")
}

// dismiss fires after the completed state has been shown long enough.
func (b *Bridge) dismiss(ctx context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != sessionID || b.phase != phaseCompleted {
		return
	}
	b.endLocked(ctx, "completed")
}

func (b *Bridge) endLocked(ctx context.Context, reason string) {
	snapshot := b.snapshot
	b.resetLocked()

	if err := b.host.End(ctx, snapshot); err != nil {
		b.log.Warn("activity end failed",
			zap.String("reason", reason),
			zap.Error(err))
	}
	b.log.Debug("activity session ended",
		zap.String("session_id", snapshot.SessionID),
		zap.String("reason", reason))
}

func (b *Bridge) resetLocked() {
	b.stopTimerLocked()
	b.session = ""
	b.phase = phaseIdle
	b.snapshot = Snapshot{}
}

func (b *Bridge) armTimerLocked(d time.Duration, fn func(context.Context)) {
	b.stopTimerLocked()
	b.timer = time.AfterFunc(d, func() {
		fn(context.Background())
	})
}

func (b *Bridge) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
