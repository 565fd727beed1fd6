package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	"github.com/noah-isme/school-portal-api/pkg/realtime"
)

type studentViewSource interface {
	Load(ctx context.Context, userID string) (*models.StudentView, []models.SubjectView, error)
}

// StudentViewWatcher keeps one identity's student view fresh.
//
// It owns at most one change feed subscription, created when an identity is set
// and closed before the next one is created. Every feed signal triggers a full
// re-fetch. Fetches are numbered; a result is applied only if no newer fetch has
// been issued since, whatever order they complete in.
type StudentViewWatcher struct {
	source  studentViewSource
	feed    realtime.Feed
	logger  *zap.Logger
	metrics *MetricsService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	identity    *string
	sub         realtime.Subscription
	scope       context.Context
	scopeCancel context.CancelFunc
	latest      uint64
	state       models.ViewState
	updates     chan models.ViewState
	closed      bool
}

// NewStudentViewWatcher constructs a watcher with no identity.
func NewStudentViewWatcher(source studentViewSource, feed realtime.Feed, logger *zap.Logger, metrics *MetricsService) *StudentViewWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &StudentViewWatcher{
		source:  source,
		feed:    feed,
		logger:  logger,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
		state:   models.EmptyViewState(),
		updates: make(chan models.ViewState, 1),
	}
}

// SetIdentity switches the watched identity. nil (or empty) clears the view
// without issuing any query. Setting the current identity again is a no-op.
func (w *StudentViewWatcher) SetIdentity(identity *string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || sameIdentity(w.identity, identity) {
		return
	}

	w.releaseLocked()

	if identity == nil || *identity == "" {
		w.identity = nil
		// invalidate anything still in flight
		w.latest++
		w.state = models.EmptyViewState()
		w.emitLocked()
		return
	}

	id := *identity
	w.identity = &id
	w.scope, w.scopeCancel = context.WithCancel(w.ctx)
	sub := w.feed.Subscribe(
		realtime.Where("students", "user_id", id),
		realtime.Table("learning_profiles"),
	)
	w.sub = sub

	w.wg.Add(1)
	go w.pump(w.scope, sub)

	w.fetchLocked()
}

// Refresh re-runs the fetch for the current identity.
func (w *StudentViewWatcher) Refresh() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.identity == nil {
		return
	}
	w.fetchLocked()
}

// State returns the current view state.
func (w *StudentViewWatcher) State() models.ViewState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Updates delivers state transitions. Only the latest undelivered state is kept.
// The channel is closed by Close.
func (w *StudentViewWatcher) Updates() <-chan models.ViewState {
	return w.updates
}

// Close releases the subscription, cancels in-flight fetches and waits for them to return.
func (w *StudentViewWatcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.releaseLocked()
	w.cancel()
	close(w.updates)
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *StudentViewWatcher) releaseLocked() {
	if w.sub != nil {
		w.sub.Close()
		w.sub = nil
	}
	if w.scopeCancel != nil {
		w.scopeCancel()
		w.scopeCancel = nil
	}
}

func (w *StudentViewWatcher) fetchLocked() {
	w.latest++
	fetchID := w.latest
	userID := *w.identity
	ctx := w.scope

	w.state.Loading = true
	w.emitLocked()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		start := time.Now()
		student, subjects, err := w.source.Load(ctx, userID)
		w.apply(fetchID, student, subjects, err, time.Since(start))
	}()
}

func (w *StudentViewWatcher) apply(fetchID uint64, student *models.StudentView, subjects []models.SubjectView, err error, took time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || fetchID != w.latest {
		w.metrics.ObserveViewFetch(FetchOutcomeSuperseded, took)
		return
	}
	w.metrics.ObserveViewFetch(fetchOutcome(err), took)

	if err != nil {
		w.logger.Debug("student view fetch failed", zap.Uint64("fetch_id", fetchID), zap.Error(err))
		w.state = errorViewState(err)
	} else {
		if subjects == nil {
			subjects = []models.SubjectView{}
		}
		w.state = models.ViewState{Student: student, Subjects: subjects}
	}
	w.emitLocked()
}

// emitLocked replaces any undelivered state with the current one. Only holders of
// mu send, so after draining the buffered slot the send cannot block.
func (w *StudentViewWatcher) emitLocked() {
	if w.closed {
		return
	}
	select {
	case <-w.updates:
	default:
	}
	select {
	case w.updates <- w.state:
	default:
	}
}

func (w *StudentViewWatcher) pump(ctx context.Context, sub realtime.Subscription) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C():
			if !ok {
				return
			}
			w.mu.Lock()
			if !w.closed && w.sub == sub {
				w.logger.Debug("change feed signal, refetching", zap.String("table", ev.Table), zap.String("op", ev.Op))
				w.fetchLocked()
			}
			w.mu.Unlock()
		}
	}
}

func sameIdentity(a, b *string) bool {
	if a == nil || b == nil {
		return (a == nil || *a == "") && (b == nil || *b == "")
	}
	return *a == *b
}
