package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/beekhof/o365sync/internal/calendar"
)

const sourceCalendarID = "primary"

// SourceReader reads events from the source calendar.
type SourceReader interface {
	Events(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
}

// TargetClient reads and writes events on the destination calendar.
type TargetClient interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.OutlookEvent, error)
	CreateEvent(ctx context.Context, payload *calendar.EventPayload) error
	UpdateEvent(ctx context.Context, eventID string, payload *calendar.EventPayload) error
}

// Summary counts what a run did.
type Summary struct {
	Created int
	Updated int
	Skipped int
	Failed  int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d created, %d updated, %d skipped, %d failed", s.Created, s.Updated, s.Skipped, s.Failed)
}

// Syncer drives one sync run: read both calendars, reconcile, apply.
type Syncer struct {
	source     SourceReader
	target     TargetClient
	reconciler *Reconciler
	windowDays int
	logger     *zap.Logger

	// now is swapped out in tests.
	now func() time.Time
}

func NewSyncer(source SourceReader, target TargetClient, windowDays int, logger *zap.Logger) *Syncer {
	return &Syncer{
		source:     source,
		target:     target,
		reconciler: NewReconciler(logger),
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// Plan reads both calendars and returns the actions a run would apply,
// without touching the destination. A source read failure aborts the plan;
// a destination read failure does not, see existingEvents.
func (s *Syncer) Plan(ctx context.Context) ([]PlannedAction, error) {
	window := NewWindow(s.now().UTC(), s.windowDays)
	s.logger.Info("reading source calendar",
		zap.Time("from", window.Start),
		zap.Time("to", window.End))

	sourceEvents, err := s.source.Events(ctx, sourceCalendarID, window.Start, window.End)
	if err != nil {
		return nil, fmt.Errorf("failed to read source calendar: %w", err)
	}
	s.logger.Info("fetched source events", zap.Int("count", len(sourceEvents)))

	existing := s.existingEvents(ctx, window)
	return s.reconciler.Reconcile(sourceEvents, existing), nil
}

// existingEvents fetches and indexes the destination events in the window.
// If the destination cannot be read the run proceeds as if it were empty;
// that risks duplicates but keeps the sync available.
func (s *Syncer) existingEvents(ctx context.Context, window Window) TargetIndex {
	events, err := s.target.ListEvents(ctx, window.Start, window.End)
	if err != nil {
		s.logger.Warn("failed to read destination calendar, treating it as empty", zap.Error(err))
		return IndexTargetEvents(nil)
	}

	index := IndexTargetEvents(events)
	s.logger.Info("fetched destination events",
		zap.Int("count", len(events)),
		zap.Int("synced", index.Len()))
	return index
}

// Apply executes the planned actions sequentially. A failed write is logged
// and counted but does not stop the remaining events, except when the
// destination rejects the credential: an expired session would fail every
// write, so the run aborts instead.
func (s *Syncer) Apply(ctx context.Context, actions []PlannedAction) (Summary, error) {
	var summary Summary
	for _, action := range actions {
		switch action.Action {
		case ActionCreate:
			if err := s.target.CreateEvent(ctx, action.Payload); err != nil {
				if isAuthFailure(err) {
					return summary, fmt.Errorf("destination rejected the stored session: %w", err)
				}
				s.logger.Error("failed to create event",
					zap.String("title", action.Payload.Subject),
					zap.Error(err))
				summary.Failed++
				continue
			}
			s.logger.Info("created event", zap.String("title", action.Payload.Subject))
			summary.Created++
		case ActionUpdate:
			if err := s.target.UpdateEvent(ctx, action.TargetID, action.Payload); err != nil {
				if isAuthFailure(err) {
					return summary, fmt.Errorf("destination rejected the stored session: %w", err)
				}
				s.logger.Error("failed to update event",
					zap.String("title", action.Payload.Subject),
					zap.Error(err))
				summary.Failed++
				continue
			}
			s.logger.Info("updated event", zap.String("title", action.Payload.Subject))
			summary.Updated++
		case ActionSkip:
			s.logger.Debug("event unchanged", zap.String("title", action.Payload.Subject))
			summary.Skipped++
		}
	}
	return summary, nil
}

func isAuthFailure(err error) bool {
	var remoteErr *calendar.RemoteError
	return errors.As(err, &remoteErr) && remoteErr.IsAuth()
}

// Sync performs one full run.
func (s *Syncer) Sync(ctx context.Context) (Summary, error) {
	actions, err := s.Plan(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary, err := s.Apply(ctx, actions)
	if err != nil {
		return summary, err
	}
	s.logger.Info("sync complete",
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
