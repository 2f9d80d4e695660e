package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/unclebandit/contractor-followups/internal/channel"
	appErrors "github.com/unclebandit/contractor-followups/internal/errors"
	"github.com/unclebandit/contractor-followups/internal/metrics"
	"github.com/unclebandit/contractor-followups/internal/model"
	"github.com/unclebandit/contractor-followups/internal/queue"
)

// StaleReason is recorded on messages that were claimed but never resolved.
const StaleReason = "delivery outcome unknown"

// DispatchStore is the slice of the message repository a dispatch cycle needs.
type DispatchStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.DueMessage, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time, providerMessageID string) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	FailStale(ctx context.Context, before time.Time, reason string) (int64, error)
}

// CycleLock keeps dispatch cycles from overlapping across processes.
type CycleLock interface {
	TryAcquire(ctx context.Context) (token string, ok bool, err error)
	Release(ctx context.Context, token string) error
}

type MessageResult struct {
	ID     uuid.UUID           `json:"id"`
	Status model.MessageStatus `json:"status"`
	Error  string              `json:"error,omitempty"`
}

type DispatchResult struct {
	Due     int             `json:"due"`
	Sent    int             `json:"sent"`
	Failed  int             `json:"failed"`
	Skipped int             `json:"skipped"`
	Results []MessageResult `json:"results"`
}

// Dispatcher delivers due follow-ups. Each message is claimed before it is sent, so
// overlapping cycles never send the same message twice.
type Dispatcher struct {
	Store  DispatchStore
	Sender channel.Sender
	Events queue.Queue // optional
	Lock   CycleLock   // optional

	// Limiter paces channel sends. nil means unlimited.
	Limiter *rate.Limiter
	Tracer  trace.Tracer
	Logger  *zap.Logger
	Now     func() time.Time

	BatchSize   int
	Concurrency int
	StaleAfter  time.Duration // 0 disables stale reaping
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d *Dispatcher) tracer() trace.Tracer {
	if d.Tracer != nil {
		return d.Tracer
	}
	return otel.Tracer("github.com/unclebandit/contractor-followups/internal/service")
}

// Run performs one dispatch cycle. It returns ErrDispatchInProgress when another
// cycle holds the lock. Per-message failures are reported in the result, never as an error.
func (d *Dispatcher) Run(ctx context.Context) (*DispatchResult, error) {
	ctx, span := d.tracer().Start(ctx, "dispatch-cycle")
	defer span.End()

	if d.Lock != nil {
		token, ok, err := d.Lock.TryAcquire(ctx)
		switch {
		case err != nil:
			d.Logger.Warn("dispatch lock unavailable, continuing without it", zap.Error(err))
		case !ok:
			metrics.DispatchCyclesTotal.WithLabelValues("locked").Inc()
			span.SetAttributes(attribute.Bool("dispatch.locked", true))
			return nil, appErrors.ErrDispatchInProgress
		default:
			defer func() {
				if err := d.Lock.Release(context.WithoutCancel(ctx), token); err != nil {
					d.Logger.Warn("failed to release dispatch lock", zap.Error(err))
				}
			}()
		}
	}

	now := d.now()

	if d.StaleAfter > 0 {
		n, err := d.Store.FailStale(ctx, now.Add(-d.StaleAfter), StaleReason)
		if err != nil {
			d.Logger.Warn("failed to resolve stale sending messages", zap.Error(err))
		} else if n > 0 {
			metrics.StaleSendingFailedTotal.Add(float64(n))
			d.Logger.Warn("failed stale sending messages", zap.Int64("count", n), zap.Duration("stale_after", d.StaleAfter))
		}
	}

	due, err := d.Store.ListDue(ctx, now, d.batchSize())
	if err != nil {
		metrics.DispatchCyclesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list due messages")
		return nil, fmt.Errorf("list due messages: %w", err)
	}

	result := &DispatchResult{Due: len(due), Results: []MessageResult{}}
	span.SetAttributes(attribute.Int("dispatch.due", len(due)))
	if len(due) == 0 {
		metrics.DispatchCyclesTotal.WithLabelValues("empty").Inc()
		return result, nil
	}

	outcomes := d.deliverConcurrently(ctx, due)
	for _, o := range outcomes {
		if o == nil {
			result.Skipped++
			continue
		}
		result.Results = append(result.Results, *o)
		if o.Status == model.MessageStatusSent {
			result.Sent++
		} else {
			result.Failed++
		}
	}

	metrics.DispatchCyclesTotal.WithLabelValues("completed").Inc()
	span.SetAttributes(
		attribute.Int("dispatch.sent", result.Sent),
		attribute.Int("dispatch.failed", result.Failed),
		attribute.Int("dispatch.skipped", result.Skipped),
	)
	d.Logger.Info("dispatch cycle finished",
		zap.Int("due", result.Due),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (d *Dispatcher) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return 100
}

// deliverConcurrently runs a bounded worker pool over batch. outcomes[i] is nil when
// message i was skipped.
func (d *Dispatcher) deliverConcurrently(ctx context.Context, batch []model.DueMessage) []*MessageResult {
	outcomes := make([]*MessageResult, len(batch))
	jobs := make(chan int, len(batch))

	workers := d.Concurrency
	if workers < 1 {
		workers = 1
	}
	workers = min(workers, len(batch))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = d.deliver(ctx, batch[i])
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

// deliver claims, sends and records one message. It returns nil when the message was
// not claimed by this cycle.
func (d *Dispatcher) deliver(ctx context.Context, m model.DueMessage) *MessageResult {
	ctx, span := d.tracer().Start(ctx, "deliver-follow-up", trace.WithAttributes(
		attribute.String("message.id", m.ID.String()),
		attribute.Int("message.sequence_day", m.SequenceDay),
	))
	defer span.End()

	log := d.Logger.With(zap.String("message_id", m.ID.String()), zap.Int("sequence_day", m.SequenceDay))

	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			log.Warn("rate limiter wait aborted, leaving message pending", zap.Error(err))
			return nil
		}
	}

	claimed, err := d.Store.Claim(ctx, m.ID)
	if err != nil {
		log.Error("failed to claim message", zap.Error(err))
		span.RecordError(err)
		return nil
	}
	if !claimed {
		metrics.ClaimConflictsTotal.Inc()
		log.Info("message not claimed: taken by another cycle or parent no longer live")
		return nil
	}

	// Once claimed the message must reach a terminal state even if the trigger goes away.
	ctx = context.WithoutCancel(ctx)

	res := d.send(ctx, m)
	out := &MessageResult{ID: m.ID}
	if res.Success {
		out.Status = model.MessageStatusSent
		if err := d.Store.MarkSent(ctx, m.ID, d.now(), res.MessageID); err != nil {
			log.Error("message sent but not recorded", zap.String("provider_message_id", res.MessageID), zap.Error(err))
		}
	} else {
		out.Status = model.MessageStatusFailed
		out.Error = res.Error
		span.SetStatus(codes.Error, res.Error)
		if err := d.Store.MarkFailed(ctx, m.ID, res.Error); err != nil {
			log.Error("failed to record delivery failure", zap.Error(err))
		}
		log.Warn("follow-up delivery failed", zap.String("error", res.Error))
	}

	ref, _ := m.Parent()
	metrics.MessagesDispatchedTotal.WithLabelValues(string(out.Status), string(ref.Kind)).Inc()
	d.publish(log, m, ref, out, res.MessageID)
	return out
}

func (d *Dispatcher) send(ctx context.Context, m model.DueMessage) (res channel.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = channel.Failure(fmt.Errorf("channel panicked: %v", r))
		}
	}()

	if strings.TrimSpace(m.Destination) == "" {
		return channel.Failure(errors.New("no destination phone number"))
	}
	return d.Sender.Send(ctx, m.Destination, m.MessageText)
}

func (d *Dispatcher) publish(log *zap.Logger, m model.DueMessage, ref model.ParentRef, out *MessageResult, providerID string) {
	if d.Events == nil {
		return
	}
	ev := queue.DeliveryEvent{
		MessageID:         m.ID,
		ParentKind:        ref.Kind,
		ParentID:          ref.ID,
		Status:            out.Status,
		ProviderMessageID: providerID,
		Error:             out.Error,
		OccurredAt:        d.now(),
	}
	if err := d.Events.Publish(queue.TopicDeliveries, ev); err != nil {
		log.Debug("delivery event not published", zap.Error(err))
	}
}
