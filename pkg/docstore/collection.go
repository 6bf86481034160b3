package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Collection binds a Store collection to a record type. Reads reject
// documents carrying fields T does not declare.
type Collection[T any] struct {
	store Store
	name  string
}

func NewCollection[T any](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	raw, err := c.store.FindByID(ctx, c.name, id)
	if err != nil {
		return zero, err
	}
	return c.decode(raw)
}

func (c *Collection[T]) Find(ctx context.Context, f Filter, skip, limit int) ([]T, error) {
	raws, err := c.store.FindMany(ctx, c.name, f, skip, limit)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		v, err := c.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T]) Insert(ctx context.Context, id string, v T) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s document: %w", c.name, err)
	}
	return c.store.Insert(ctx, c.name, id, raw)
}

func (c *Collection[T]) UpdateOne(ctx context.Context, f Filter, m Mutation) (bool, error) {
	return c.store.UpdateOne(ctx, c.name, f, m)
}

// UpdateByID applies m to the document with the given id.
func (c *Collection[T]) UpdateByID(ctx context.Context, id string, m Mutation) (bool, error) {
	return c.store.UpdateOne(ctx, c.name, Filter{Equals: map[string]any{"id": id}}, m)
}

// ConditionalUpdate reports ok=false when the document is missing or a
// condition does not hold.
func (c *Collection[T]) ConditionalUpdate(ctx context.Context, id string, conds []Condition, m Mutation) (T, bool, error) {
	var zero T
	raw, err := c.store.ConditionalUpdate(ctx, c.name, id, conds, m)
	if err != nil || raw == nil {
		return zero, false, err
	}
	v, err := c.decode(raw)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

func (c *Collection[T]) Delete(ctx context.Context, id string) (bool, error) {
	return c.store.DeleteOne(ctx, c.name, id)
}

func (c *Collection[T]) Count(ctx context.Context, f Filter) (int64, error) {
	return c.store.Count(ctx, c.name, f)
}

func (c *Collection[T]) decode(raw []byte) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", ErrMalformed, c.name, err)
	}
	return v, nil
}
