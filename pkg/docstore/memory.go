package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type memDoc struct {
	seq  uint64
	body map[string]any
}

// Memory is an in-process Store. Every operation runs under one lock, which
// is what makes ConditionalUpdate atomic here.
type Memory struct {
	mu    sync.RWMutex
	seq   uint64
	colls map[string]map[string]*memDoc
}

func NewMemory() *Memory {
	return &Memory{colls: make(map[string]map[string]*memDoc)}
}

var _ Store = (*Memory)(nil)

func (s *Memory) FindByID(_ context.Context, collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.colls[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return json.Marshal(d.body)
}

func (s *Memory) FindMany(_ context.Context, collection string, f Filter, skip, limit int) ([][]byte, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched, err := s.match(collection, f)
	if err != nil {
		return nil, err
	}
	if skip > len(matched) {
		skip = len(matched)
	}
	matched = matched[skip:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	out := make([][]byte, 0, len(matched))
	for _, d := range matched {
		b, err := json.Marshal(d.body)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Memory) Insert(_ context.Context, collection, id string, doc []byte) (string, error) {
	body, err := decodeBody(doc)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = NewID()
	}
	body["id"] = id

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[collection]
	if !ok {
		c = make(map[string]*memDoc)
		s.colls[collection] = c
	}
	if _, exists := c[id]; exists {
		return "", ErrDuplicate
	}
	s.seq++
	c[id] = &memDoc{seq: s.seq, body: body}
	return id, nil
}

func (s *Memory) UpdateOne(_ context.Context, collection string, f Filter, m Mutation) (bool, error) {
	if err := validate(f, nil, m); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched, err := s.match(collection, f)
	if err != nil || len(matched) == 0 {
		return false, err
	}
	return true, apply(matched[0].body, m)
}

func (s *Memory) DeleteOne(_ context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.colls[collection][id]; !ok {
		return false, nil
	}
	delete(s.colls[collection], id)
	return true, nil
}

func (s *Memory) DeleteMany(_ context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	matched, err := s.match(collection, f)
	if err != nil {
		return 0, err
	}
	for _, d := range matched {
		delete(s.colls[collection], d.body["id"].(string))
	}
	return int64(len(matched)), nil
}

func (s *Memory) Count(_ context.Context, collection string, f Filter) (int64, error) {
	if err := validate(f, nil, Mutation{}); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched, err := s.match(collection, f)
	return int64(len(matched)), err
}

func (s *Memory) ConditionalUpdate(_ context.Context, collection, id string, conds []Condition, m Mutation) ([]byte, error) {
	if err := validate(Filter{}, conds, m); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.colls[collection][id]
	if !ok {
		return nil, nil
	}
	for _, c := range conds {
		hold, err := holds(d.body[c.Field], c)
		if err != nil {
			return nil, err
		}
		if !hold {
			return nil, nil
		}
	}
	if err := apply(d.body, m); err != nil {
		return nil, err
	}
	return json.Marshal(d.body)
}

func (s *Memory) Ping(context.Context) error  { return nil }
func (s *Memory) Close(context.Context) error { return nil }

// match must be called with the lock held.
func (s *Memory) match(collection string, f Filter) ([]*memDoc, error) {
	var out []*memDoc
	for _, d := range s.colls[collection] {
		ok, err := matches(d.body, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if f.Order == Newest {
			return out[i].seq > out[j].seq
		}
		return out[i].body["id"].(string) < out[j].body["id"].(string)
	})
	return out, nil
}

func matches(body map[string]any, f Filter) (bool, error) {
	for k, v := range f.Equals {
		ok, err := holds(body[k], Eq(k, v))
		if err != nil || !ok {
			return false, err
		}
	}
	if f.Match == nil || f.Match.Term == "" {
		return true, nil
	}
	term := strings.ToLower(f.Match.Term)
	for _, k := range f.Match.Fields {
		if s, ok := body[k].(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true, nil
		}
	}
	return false, nil
}

func holds(stored any, c Condition) (bool, error) {
	switch c.Op {
	case OpEq:
		if stored == nil {
			return c.Value == nil, nil
		}
		a, err := json.Marshal(stored)
		if err != nil {
			return false, err
		}
		b, err := json.Marshal(c.Value)
		if err != nil {
			return false, err
		}
		return bytes.Equal(a, b), nil
	case OpGte:
		n, ok := stored.(json.Number)
		if !ok {
			return false, nil
		}
		have, err := n.Float64()
		if err != nil {
			return false, nil
		}
		want, err := toFloat(c.Value)
		if err != nil {
			return false, err
		}
		return have >= want, nil
	}
	return false, fmt.Errorf("docstore: unsupported op %q", c.Op)
}

// apply resolves every Set and Inc value before touching body, so a mutation
// that fails leaves the document as it was.
func apply(body map[string]any, m Mutation) error {
	staged := make(map[string]any, len(m.Set)+len(m.Inc))
	for k, delta := range m.Inc {
		var cur int64
		if n, ok := body[k].(json.Number); ok {
			v, err := n.Int64()
			if err != nil {
				return fmt.Errorf("%w: %s is not an integer", ErrMalformed, k)
			}
			cur = v
		} else if body[k] != nil {
			return fmt.Errorf("%w: %s is not a number", ErrMalformed, k)
		}
		staged[k] = json.Number(fmt.Sprint(cur + delta))
	}
	for k, v := range m.Set {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("docstore: encode %s: %w", k, err)
		}
		var val any
		if err := decodeValue(raw, &val); err != nil {
			return err
		}
		staged[k] = val
	}
	for k, v := range staged {
		body[k] = v
	}
	return nil
}

func decodeBody(doc []byte) (map[string]any, error) {
	var body map[string]any
	if err := decodeValue(doc, &body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformed)
	}
	return body, nil
}

func decodeValue(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	case json.Number:
		return n.Float64()
	}
	return 0, fmt.Errorf("docstore: non-numeric comparison value %T", v)
}
