package auth

import (
	"context"
	"sync/atomic"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess          ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure          ActivityEventType = "auth.login.failure"
	ActivityEventRefreshSuccess        ActivityEventType = "auth.refresh.success"
	ActivityEventRefreshFailure        ActivityEventType = "auth.refresh.failure"
	ActivityEventLogout                ActivityEventType = "auth.logout"
	ActivityEventRegistration          ActivityEventType = "auth.registration"
	ActivityEventEmailConfirmed        ActivityEventType = "auth.email.confirmed"
	ActivityEventEmailChanged          ActivityEventType = "auth.email.changed"
	ActivityEventPasswordResetRequest  ActivityEventType = "auth.password.reset.request"
	ActivityEventPasswordResetFinalize ActivityEventType = "auth.password.reset"
)

// ActorRef identifies who performed an action. Type is "user", "system", or
// "unknown" for unauthenticated failures.
type ActorRef struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  string
	SessionID  string
	Success    bool
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
// Recording is best effort: implementations must never block the auth flow
// and their errors are logged, not propagated.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// ActivityStore persists activity events. AsyncActivitySink drains into one.
type ActivityStore interface {
	SaveActivity(ctx context.Context, record *ActivityRecord) error
}

// AsyncActivitySink buffers events on a bounded channel and writes them from
// a single background worker. Enqueueing never blocks; when the buffer is
// full the event is dropped and a counter incremented. Delivery is at most
// once and unordered relative to the request that produced the event.
type AsyncActivitySink struct {
	store   ActivityStore
	events  chan ActivityEvent
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	logger  Logger
}

// NewAsyncActivitySink starts the background writer. bufferSize <= 0 falls
// back to 256.
func NewAsyncActivitySink(store ActivityStore, bufferSize int, logger Logger) *AsyncActivitySink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if logger == nil {
		logger = defLogger{}
	}

	sink := &AsyncActivitySink{
		store:  store,
		events: make(chan ActivityEvent, bufferSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: logger,
	}

	go sink.drain()

	return sink
}

// Record enqueues the event without blocking. A full buffer drops the event,
// as does a sink that has already been closed.
func (s *AsyncActivitySink) Record(_ context.Context, event ActivityEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if s.closed.Load() {
		s.dropped.Add(1)
		s.logger.Warn("activity sink closed, dropping %s event", event.EventType)
		return nil
	}

	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
		s.logger.Warn("activity sink buffer full, dropping %s event", event.EventType)
	}

	return nil
}

// Dropped reports how many events were discarded due to a full buffer.
func (s *AsyncActivitySink) Dropped() uint64 {
	return s.dropped.Load()
}

// Close stops accepting events and waits for the buffer to flush. The events
// channel itself stays open so a Record racing Close can never panic; it is
// safe to call Close more than once.
func (s *AsyncActivitySink) Close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.quit)
	}
	<-s.done
}

func (s *AsyncActivitySink) drain() {
	defer close(s.done)

	for {
		select {
		case event := <-s.events:
			s.persist(event)
		case <-s.quit:
			for {
				select {
				case event := <-s.events:
					s.persist(event)
				default:
					return
				}
			}
		}
	}
}

func (s *AsyncActivitySink) persist(event ActivityEvent) {
	record := &ActivityRecord{
		EventType:  string(event.EventType),
		ActorID:    event.Actor.ID,
		ActorType:  event.Actor.Type,
		AccountID:  event.AccountID,
		SessionID:  event.SessionID,
		Success:    event.Success,
		Reason:     event.Reason,
		Metadata:   event.Metadata,
		OccurredAt: event.OccurredAt,
	}

	// Writes use a background context so an aborted request cannot cancel
	// its own audit trail.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := s.store.SaveActivity(ctx, record); err != nil {
		s.logger.Warn("activity sink failed to persist %s event: %v", event.EventType, err)
	}
	cancel()
}
