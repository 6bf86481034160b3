package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/storefront/pkg/docstore"
)

const (
	CollectionName = "outbox"
	MaxRetries     = 5
)

// DocStore keeps outbox events in a docstore collection. Claims are made with
// ConditionalUpdate on status so two relays never dispatch the same event.
type DocStore struct {
	log    *slog.Logger
	events *docstore.Collection[Event]
	now    func() time.Time
}

func NewDocStore(log *slog.Logger, store docstore.Store) *DocStore {
	return &DocStore{
		log:    log,
		events: docstore.NewCollection[Event](store, CollectionName),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Record appends a pending event and returns its id.
func (s *DocStore) Record(ctx context.Context, e Event) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	e.ID = id.String()
	e.Status = StatusPending
	e.CreatedAt = s.now()
	if _, err := s.events.Insert(ctx, e.ID, e); err != nil {
		return "", fmt.Errorf("record outbox event: %w", err)
	}
	return e.ID, nil
}

func (s *DocStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]Event, error) {
	if err := s.releaseExpired(ctx); err != nil {
		return nil, err
	}
	candidates, err := s.events.Find(ctx, docstore.Filter{
		Equals: map[string]any{"status": StatusPending},
		Order:  docstore.ByID,
	}, 0, batchSize)
	if err != nil {
		return nil, err
	}

	leaseUntil := s.now().Add(lease)
	claimed := make([]Event, 0, len(candidates))
	for _, c := range candidates {
		e, ok, err := s.events.ConditionalUpdate(ctx, c.ID,
			[]docstore.Condition{docstore.Eq("status", StatusPending)},
			docstore.Mutation{Set: map[string]any{
				"status":      StatusInProgress,
				"relay_id":    relayID,
				"lease_until": leaseUntil,
			}})
		if err != nil {
			return claimed, err
		}
		if ok {
			claimed = append(claimed, e)
		}
	}
	return claimed, nil
}

// releaseExpired returns in-progress events whose lease ran out to pending.
func (s *DocStore) releaseExpired(ctx context.Context) error {
	stuck, err := s.events.Find(ctx, docstore.Filter{
		Equals: map[string]any{"status": StatusInProgress},
	}, 0, 0)
	if err != nil {
		return err
	}
	now := s.now()
	for _, e := range stuck {
		if e.LeaseUntil == nil || e.LeaseUntil.After(now) {
			continue
		}
		_, ok, err := s.events.ConditionalUpdate(ctx, e.ID,
			[]docstore.Condition{docstore.Eq("status", StatusInProgress), docstore.Eq("relay_id", e.RelayID)},
			docstore.Mutation{Set: map[string]any{"status": StatusPending, "lease_until": nil}})
		if err != nil {
			return err
		}
		if ok {
			s.log.Warn("outbox lease expired", "event_id", e.ID, "relay_id", e.RelayID)
		}
	}
	return nil
}

func (s *DocStore) MarkSent(ctx context.Context, ids []string) error {
	var missing int
	for _, id := range ids {
		ok, err := s.events.UpdateByID(ctx, id, docstore.Mutation{Set: map[string]any{
			"status":      StatusSent,
			"lease_until": nil,
		}})
		if err != nil {
			return err
		}
		if !ok {
			missing++
		}
	}
	if missing > 0 {
		return fmt.Errorf("mark sent: %d of %d events not found", missing, len(ids))
	}
	return nil
}

// Release returns events still claimed by relayID to pending without counting
// a failed attempt.
func (s *DocStore) Release(ctx context.Context, relayID string, ids []string) error {
	for _, id := range ids {
		_, _, err := s.events.ConditionalUpdate(ctx, id,
			[]docstore.Condition{docstore.Eq("status", StatusInProgress), docstore.Eq("relay_id", relayID)},
			docstore.Mutation{Set: map[string]any{"status": StatusPending, "lease_until": nil}})
		if err != nil {
			return err
		}
	}
	return nil
}

// MarkFailed puts the event back to pending until it has failed MaxRetries
// times, after which it stays failed.
func (s *DocStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	e, err := s.events.Get(ctx, id)
	if err != nil {
		return err
	}
	retries := e.RetryCount + 1
	status := StatusPending
	if retries >= MaxRetries {
		status = StatusFailed
	}
	_, _, err = s.events.ConditionalUpdate(ctx, id,
		[]docstore.Condition{docstore.Eq("status", StatusInProgress)},
		docstore.Mutation{Set: map[string]any{
			"status":      status,
			"retry_count": retries,
			"last_error":  errMsg,
			"lease_until": nil,
		}})
	return err
}

// Pending counts events not yet handed to the broker.
func (s *DocStore) Pending(ctx context.Context) (int64, error) {
	return s.events.Count(ctx, docstore.Filter{Equals: map[string]any{"status": StatusPending}})
}

func (s *DocStore) Get(ctx context.Context, id string) (Event, error) {
	return s.events.Get(ctx, id)
}
