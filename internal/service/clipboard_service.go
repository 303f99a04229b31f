// Package service orchestrates the clipboard history: it drives observed
// payloads through extraction, duplicate suppression, persistence and
// retention, couples record deletion to blob deletion, and owns the
// monitoring lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"clipd/internal/blob"
	"clipd/internal/clipboard"
	"clipd/internal/extract"
	"clipd/internal/storage"
	"clipd/pkg/types"
)

// ErrDuplicate is the defined non-error outcome of ingesting a payload equal
// to the most recent clip. No record is created.
var ErrDuplicate = errors.New("service: duplicate of most recent clip")

// ServiceError wraps a failed service operation with its name.
type ServiceError struct {
	Op      string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Presence is the keep-alive capability acquired while monitoring runs, so
// the host environment can see (and not reclaim) the background process.
type Presence interface {
	Acquire() error
	Release() error
}

type nopPresence struct{}

func (nopPresence) Acquire() error { return nil }
func (nopPresence) Release() error { return nil }

type state int

const (
	stateStopped state = iota
	stateRunning
)

// Options wires a Service. Monitor and Presence may be nil for consumers
// that only read and mutate history without watching the host clipboard.
type Options struct {
	Monitor   clipboard.Monitor
	Store     storage.Store
	Blobs     *blob.Store
	Extractor *extract.Extractor
	Presence  Presence
	Logger    *slog.Logger

	HistoryLimit  int           // non-pinned capacity, default 100
	AutoClearDays int           // 0 disables age-based clearing
	ReapInterval  time.Duration // orphan reap cadence, default 30m
}

type Service struct {
	monitor   clipboard.Monitor
	store     storage.Store
	blobs     *blob.Store
	extractor *extract.Extractor
	presence  Presence
	logger    *slog.Logger
	notifier  *Notifier

	historyLimit  int
	autoClearDays int
	reapInterval  time.Duration

	mu     sync.Mutex
	state  state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(opts Options) *Service {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 100
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = 30 * time.Minute
	}
	if opts.Presence == nil {
		opts.Presence = nopPresence{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Service{
		monitor:       opts.Monitor,
		store:         opts.Store,
		blobs:         opts.Blobs,
		extractor:     opts.Extractor,
		presence:      opts.Presence,
		logger:        opts.Logger,
		notifier:      NewNotifier(),
		historyLimit:  opts.HistoryLimit,
		autoClearDays: opts.AutoClearDays,
		reapInterval:  opts.ReapInterval,
	}
}

// Start transitions Stopped -> Running: acquire presence, hook the monitor
// and begin accepting change notifications. Starting while running is a
// no-op.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateRunning {
		return nil
	}

	if err := s.presence.Acquire(); err != nil {
		return &ServiceError{Op: "Start", Message: "failed to acquire presence", Err: err}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx

	s.monitor.OnChange(func(p types.Payload) {
		// Never block the notification path: each change is one supervised
		// unit of work, and one failing ingest must not take the loop down.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("ingest panicked", "panic", r)
				}
			}()
			s.handleChange(ctx, p)
		}()
	})

	if err := s.monitor.Start(); err != nil {
		s.cancel()
		s.presence.Release()
		return &ServiceError{Op: "Start", Message: "failed to start clipboard monitor", Err: err}
	}

	s.wg.Add(1)
	go s.reapLoop(s.ctx)
	if s.autoClearDays > 0 {
		s.wg.Add(1)
		go s.autoClearLoop(s.ctx)
	}

	s.state = stateRunning
	s.logger.Info("clipboard monitoring started", "history_limit", s.historyLimit)
	return nil
}

// Stop transitions Running -> Stopped: release the subscription, cancel
// in-flight ingests and retract presence. Stopping while stopped is a no-op.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateStopped {
		return nil
	}

	s.cancel()

	var stopErr error
	if err := s.monitor.Stop(); err != nil {
		stopErr = &ServiceError{Op: "Stop", Message: "failed to stop clipboard monitor", Err: err}
	}

	s.wg.Wait()

	if err := s.presence.Release(); err != nil {
		s.logger.Warn("failed to release presence", "error", err)
	}

	s.state = stateStopped
	s.logger.Info("clipboard monitoring stopped")
	return stopErr
}

// Running reports whether the monitor lifecycle is active.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

func (s *Service) handleChange(ctx context.Context, p types.Payload) {
	if p.Empty() {
		return
	}
	id, err := s.Ingest(ctx, p)
	switch {
	case errors.Is(err, ErrDuplicate):
		s.logger.Debug("duplicate payload, not saved")
	case err != nil:
		// Per-event failures are logged and swallowed; monitoring survives
		// an unbounded sequence of malformed payloads.
		s.logger.Error("failed to ingest clipboard change", "error", err)
	default:
		s.logger.Debug("clipboard change saved", "id", id)
	}
}

// Ingest classifies a payload, suppresses an immediate duplicate of the most
// recent clip, persists the record and enforces the non-pinned capacity.
// Returns the new clip's id, or ErrDuplicate.
func (s *Service) Ingest(ctx context.Context, p types.Payload) (int64, error) {
	clip, err := s.extractor.Extract(p)
	if err != nil {
		return 0, &ServiceError{Op: "Ingest", Message: "failed to extract payload", Err: err}
	}

	recent, err := s.store.MostRecent(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, &ServiceError{Op: "Ingest", Message: "failed to read most recent clip", Err: err}
	}
	if recent != nil && isDuplicate(clip, recent) {
		return 0, ErrDuplicate
	}

	id, err := s.store.Insert(ctx, clip)
	if err != nil {
		return 0, &ServiceError{Op: "Ingest", Message: "failed to insert clip", Err: err}
	}

	if err := s.enforceLimit(ctx); err != nil {
		// The insert stands; the cap is eventually consistent and a brief
		// overshoot is tolerated.
		s.logger.Warn("failed to enforce history limit", "error", err)
	}

	s.notifier.Publish()
	return id, nil
}

// isDuplicate compares a candidate against the most recent clip. Equality is
// scoped by the candidate's kind: text and html by full text, links by ref.
// Images never count as duplicates (no content hashing), nor do multi-item
// or unclassified payloads.
func isDuplicate(candidate, recent *types.Clip) bool {
	switch candidate.Kind {
	case types.KindText, types.KindHTML:
		return candidate.FullText == recent.FullText
	case types.KindLink:
		return candidate.LinkRef == recent.LinkRef
	default:
		return false
	}
}

func (s *Service) enforceLimit(ctx context.Context) error {
	count, err := s.store.CountUnpinned(ctx)
	if err != nil {
		return err
	}
	if excess := int(count) - s.historyLimit; excess > 0 {
		return s.store.DeleteOldestUnpinned(ctx, excess)
	}
	return nil
}

// History returns clips newest-first, optionally paginated.
func (s *Service) History(ctx context.Context, limit, offset int) ([]*types.Clip, error) {
	return s.store.List(ctx, storage.ListFilter{Limit: limit, Offset: offset})
}

// Pinned returns all pinned clips, newest-first.
func (s *Service) Pinned(ctx context.Context) ([]*types.Clip, error) {
	return s.store.List(ctx, storage.ListFilter{PinnedOnly: true})
}

// Search returns clips whose preview, full text or link ref contains query.
func (s *Service) Search(ctx context.Context, query string) ([]*types.Clip, error) {
	return s.store.List(ctx, storage.ListFilter{Query: query})
}

func (s *Service) Get(ctx context.Context, id int64) (*types.Clip, error) {
	return s.store.GetByID(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.Count(ctx)
}

// Watch subscribes to history invalidation. The channel receives after every
// mutation; call cancel when done observing.
func (s *Service) Watch() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// Delete removes one clip. For image clips the referenced blob and its
// thumbnail go too; a blob deletion failure is logged and left to the
// reaper.
func (s *Service) Delete(ctx context.Context, id int64) error {
	clip, err := s.store.GetByID(ctx, id)
	if err != nil {
		return &ServiceError{Op: "Delete", Message: "failed to get clip", Err: err}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return &ServiceError{Op: "Delete", Message: "failed to delete clip", Err: err}
	}

	if clip.Kind == types.KindImage {
		if err := s.blobs.Delete(clip.ImageRef); err != nil {
			s.logger.Warn("failed to delete blob, leaving orphan", "ref", clip.ImageRef, "error", err)
		}
	}

	s.notifier.Publish()
	return nil
}

// DeleteAll clears the history and every stored image blob.
func (s *Service) DeleteAll(ctx context.Context) error {
	refs, err := s.store.ImageRefs(ctx)
	if err != nil {
		return &ServiceError{Op: "DeleteAll", Message: "failed to list image refs", Err: err}
	}

	if err := s.store.DeleteAll(ctx); err != nil {
		return &ServiceError{Op: "DeleteAll", Message: "failed to delete clips", Err: err}
	}

	for _, ref := range refs {
		if err := s.blobs.Delete(ref); err != nil {
			s.logger.Warn("failed to delete blob, leaving orphan", "ref", ref, "error", err)
		}
	}

	s.notifier.Publish()
	return nil
}

func (s *Service) SetPinned(ctx context.Context, id int64, pinned bool) error {
	if err := s.store.SetPinned(ctx, id, pinned); err != nil {
		return &ServiceError{Op: "SetPinned", Message: "failed to update pinned flag", Err: err}
	}
	s.notifier.Publish()
	return nil
}

// ToPayload reconstructs a payload equivalent to the one a clip was captured
// from: the inverse of extraction, suitable for writing back to the host
// clipboard.
func (s *Service) ToPayload(clip *types.Clip) types.Payload {
	var item types.PayloadItem
	var labels []string

	switch clip.Kind {
	case types.KindText:
		item.Text = clip.FullText
		labels = []string{"text/plain"}
	case types.KindHTML:
		item.Text = clip.FullText
		item.Markup = clip.Markup
		labels = []string{"text/html", "text/plain"}
	case types.KindLink:
		item.URI = clip.LinkRef
		labels = []string{"text/uri-list"}
	case types.KindImage:
		item.URI = clip.ImageRef
		labels = []string{"image/jpeg"}
	default:
		item.Text = clip.Preview
		labels = []string{"text/plain"}
	}

	return types.Payload{Items: []types.PayloadItem{item}, ContentTypes: labels}
}

// CopyToClipboard writes a stored clip back to the host clipboard.
func (s *Service) CopyToClipboard(ctx context.Context, id int64) error {
	clip, err := s.store.GetByID(ctx, id)
	if err != nil {
		return &ServiceError{Op: "CopyToClipboard", Message: "failed to get clip", Err: err}
	}
	if err := s.monitor.SetPayload(s.ToPayload(clip)); err != nil {
		return &ServiceError{Op: "CopyToClipboard", Message: "failed to set clipboard content", Err: err}
	}
	return nil
}

// ReapOrphans deletes blob files no record references. Abandoned ingests and
// failed blob deletions both end up here.
func (s *Service) ReapOrphans(ctx context.Context) error {
	refs, err := s.store.ImageRefs(ctx)
	if err != nil {
		return &ServiceError{Op: "ReapOrphans", Message: "failed to list image refs", Err: err}
	}
	valid := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		valid[ref] = struct{}{}
	}
	if err := s.blobs.Reap(valid); err != nil {
		return &ServiceError{Op: "ReapOrphans", Message: "failed to reap blobs", Err: err}
	}
	return nil
}

// ClearOlderThan deletes non-pinned clips captured before the cutoff and
// their blobs.
func (s *Service) ClearOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)
	deleted, err := s.store.DeleteUnpinnedBefore(ctx, cutoff)
	if err != nil {
		return 0, &ServiceError{Op: "ClearOlderThan", Message: "failed to clear old clips", Err: err}
	}
	if deleted > 0 {
		// Blobs of the removed image clips are now orphans.
		if err := s.ReapOrphans(ctx); err != nil {
			s.logger.Warn("failed to reap after auto-clear", "error", err)
		}
		s.notifier.Publish()
	}
	return deleted, nil
}

func (s *Service) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.ReapOrphans(ctx); err != nil {
				s.logger.Warn("orphan reap failed", "error", err)
			}
		}
	}
}

func (s *Service) autoClearLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	age := time.Duration(s.autoClearDays) * 24 * time.Hour
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ClearOlderThan(ctx, age); err != nil {
				s.logger.Warn("auto-clear failed", "error", err)
			} else if n > 0 {
				s.logger.Info("auto-cleared old clips", "count", n)
			}
		}
	}
}
