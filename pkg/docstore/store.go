// Package docstore is a thin adapter over a key-ordered document collection.
//
// Documents are JSON objects addressed by a string id. The only way to mutate
// a field conditionally is ConditionalUpdate, which every backend evaluates and
// applies as a single storage operation.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("docstore: document not found")
	ErrDuplicate    = errors.New("docstore: duplicate document id")
	ErrInvalidField = errors.New("docstore: invalid field name")
	ErrMalformed    = errors.New("docstore: malformed document")
)

// Op is a comparison used by a Condition.
type Op string

const (
	OpEq  Op = "eq"
	OpGte Op = "gte"
)

// Condition is a predicate on one top-level field of the stored document.
type Condition struct {
	Field string
	Op    Op
	Value any
}

// Eq and Gte build conditions.
func Eq(field string, v any) Condition  { return Condition{Field: field, Op: OpEq, Value: v} }
func Gte(field string, v any) Condition { return Condition{Field: field, Op: OpGte, Value: v} }

// Mutation describes top-level field assignments and integer increments.
// Inc is applied to the value stored before the mutation; a missing field counts as 0.
type Mutation struct {
	Set map[string]any
	Inc map[string]int64
}

func (m Mutation) empty() bool { return len(m.Set) == 0 && len(m.Inc) == 0 }

// Order selects the scan order of FindMany.
type Order int

const (
	ByID Order = iota
	Newest
)

// TextMatch is a case-insensitive substring match against any of Fields.
type TextMatch struct {
	Term   string
	Fields []string
}

// Filter selects documents. Equals is an exact match on top-level fields.
type Filter struct {
	Equals map[string]any
	Match  *TextMatch
	Order  Order
}

// Store is the storage contract every backend implements.
type Store interface {
	FindByID(ctx context.Context, collection, id string) ([]byte, error)
	FindMany(ctx context.Context, collection string, f Filter, skip, limit int) ([][]byte, error)
	Insert(ctx context.Context, collection, id string, doc []byte) (string, error)
	UpdateOne(ctx context.Context, collection string, f Filter, m Mutation) (bool, error)
	DeleteOne(ctx context.Context, collection, id string) (bool, error)
	DeleteMany(ctx context.Context, collection string, f Filter) (int64, error)
	Count(ctx context.Context, collection string, f Filter) (int64, error)
	// ConditionalUpdate applies m only if all conds hold against the current
	// document. It returns the updated document, or nil when the document is
	// missing or a condition failed.
	ConditionalUpdate(ctx context.Context, collection, id string, conds []Condition, m Mutation) ([]byte, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var fieldName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

func checkField(name string) error {
	if !fieldName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

func validate(f Filter, conds []Condition, m Mutation) error {
	for k := range f.Equals {
		if err := checkField(k); err != nil {
			return err
		}
	}
	if f.Match != nil {
		for _, k := range f.Match.Fields {
			if err := checkField(k); err != nil {
				return err
			}
		}
	}
	for _, c := range conds {
		if err := checkField(c.Field); err != nil {
			return err
		}
		if c.Op != OpEq && c.Op != OpGte {
			return fmt.Errorf("docstore: unsupported op %q", c.Op)
		}
	}
	for k := range m.Set {
		if err := checkField(k); err != nil {
			return err
		}
	}
	for k := range m.Inc {
		if err := checkField(k); err != nil {
			return err
		}
		if _, clash := m.Set[k]; clash {
			return fmt.Errorf("docstore: field %q both set and incremented", k)
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewID returns a fresh document id.
func NewID() string { return uuid.NewString() }
