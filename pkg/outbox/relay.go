package outbox

import (
	"context"
	"log/slog"
	"time"
)

type Store interface {
	LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error)
	MarkSent(ctx context.Context, ids []string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Release(ctx context.Context, relayID string, ids []string) error
}

// Relay polls the outbox and hands claimed events to the dispatcher one at a
// time. Every write must finish before the claim's lease lapses, otherwise
// another relay could take the event over and publish it again.
type Relay struct {
	log       *slog.Logger
	store     Store
	dispatch  *Dispatcher
	relayID   string
	batchSize int
	interval  time.Duration
	lease     time.Duration
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption { return func(r *Relay) { r.interval = d } }

func WithBatchSize(n int) RelayOption { return func(r *Relay) { r.batchSize = n } }

func WithLease(d time.Duration) RelayOption { return func(r *Relay) { r.lease = d } }

func NewRelay(log *slog.Logger, store Store, dispatch *Dispatcher, relayID string, opts ...RelayOption) *Relay {
	r := &Relay{
		log:       log,
		store:     store,
		dispatch:  dispatch,
		relayID:   relayID,
		batchSize: 100,
		interval:  500 * time.Millisecond,
		lease:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	r.log.Info("relay started", "relay_id", r.relayID, "batch_size", r.batchSize, "lease", r.lease)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("relay stopping", "relay_id", r.relayID)
			return nil
		case <-t.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	events, err := r.store.LockBatch(ctx, r.relayID, r.batchSize, r.lease)
	if err != nil {
		r.log.Error("relay lock batch error", "err", err)
		return
	}
	if len(events) == 0 {
		return
	}

	// A fifth of the lease is kept back for marking the last event.
	deadline := time.Now().Add(r.lease - r.lease/5)
	for i, e := range events {
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			r.release(ctx, events[i:])
			return
		}
		dctx, cancel := context.WithDeadline(ctx, deadline)
		err := r.dispatch.Dispatch(dctx, e)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				r.release(ctx, events[i:])
				return
			}
			if mErr := r.store.MarkFailed(ctx, e.ID, err.Error()); mErr != nil {
				r.log.Error("relay mark failed error", "event_id", e.ID, "err", mErr)
			}
			continue
		}
		if err := r.store.MarkSent(ctx, []string{e.ID}); err != nil {
			r.log.Error("relay mark sent error", "event_id", e.ID, "err", err)
		}
	}
}

// release hands unsent claims back before their lease runs out. It runs on
// shutdown too, so it does not inherit ctx's cancellation.
func (r *Relay) release(ctx context.Context, events []Event) {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.store.Release(ctx, r.relayID, ids); err != nil {
		r.log.Error("relay release error", "count", len(ids), "err", err)
		return
	}
	r.log.Warn("relay released unsent events", "relay_id", r.relayID, "count", len(ids))
}
