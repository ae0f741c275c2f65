// Package store provides keyed in-process stores whose identifiers are
// assigned atomically from a per-store sequence.
package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/YuminosukeSato/mlapi/pkg/errors"
)

// Store keeps values of type T under sequentially assigned identifiers.
type Store[T any] interface {
	// Insert stores v under the next identifier and returns it.
	Insert(ctx context.Context, v T) (string, error)
	// InsertFunc stores the value built by fn from the next identifier. fn
	// runs under the store lock and must not call back into the store.
	InsertFunc(ctx context.Context, fn func(id string) T) (string, error)
	// Put stores v under a known identifier and advances the sequence past it.
	Put(ctx context.Context, id string, v T) error
	// Delete removes the value stored under id. Identifiers are never
	// reassigned after a delete.
	Delete(ctx context.Context, id string) error
	// Get returns the value stored under id, or an error marked not found.
	Get(ctx context.Context, id string) (T, error)
	// List returns every identifier in sequence order.
	List(ctx context.Context) []string
	// Len returns the number of stored values.
	Len(ctx context.Context) int
}

// IDFormat converts between sequence numbers and identifiers.
type IDFormat struct {
	Prefix string
}

// Format returns the identifier for sequence number n.
func (f IDFormat) Format(n uint64) string {
	return f.Prefix + strconv.FormatUint(n, 10)
}

// Parse returns the sequence number encoded in id.
func (f IDFormat) Parse(id string) (uint64, error) {
	rest, ok := strings.CutPrefix(id, f.Prefix)
	if !ok || rest == "" {
		return 0, errors.NewValidationError("id", fmt.Sprintf("expected prefix %q", f.Prefix), id)
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil || n == 0 || strconv.FormatUint(n, 10) != rest {
		return 0, errors.NewValidationError("id", "expected a positive decimal sequence number", id)
	}
	return n, nil
}

// Identifier formats used by the registries.
var (
	DatasetIDs = IDFormat{}
	ModelIDs   = IDFormat{Prefix: "model_"}
)

type entry[T any] struct {
	seq uint64
	v   T
}

// Memory is a mutex guarded Store. The zero value is not usable; use
// NewMemory.
type Memory[T any] struct {
	mu       sync.RWMutex
	resource string
	format   IDFormat
	last     uint64
	items    map[string]entry[T]
}

var _ Store[int] = (*Memory[int])(nil)

// NewMemory returns an empty store. resource names the stored kind in not
// found errors.
func NewMemory[T any](resource string, format IDFormat) *Memory[T] {
	return &Memory[T]{
		resource: resource,
		format:   format,
		items:    make(map[string]entry[T]),
	}
}

func (m *Memory[T]) Insert(ctx context.Context, v T) (string, error) {
	return m.InsertFunc(ctx, func(string) T { return v })
}

func (m *Memory[T]) InsertFunc(ctx context.Context, fn func(id string) T) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last++
	id := m.format.Format(m.last)
	m.items[id] = entry[T]{seq: m.last, v: fn(id)}
	return id, nil
}

func (m *Memory[T]) Put(ctx context.Context, id string, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seq, err := m.format.Parse(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[id] = entry[T]{seq: seq, v: v}
	m.last = max(m.last, seq)
	return nil
}

func (m *Memory[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return errors.NewNotFoundError(m.resource, id)
	}
	delete(m.items, id)
	return nil
}

func (m *Memory[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.items[id]
	if !ok {
		return zero, errors.NewNotFoundError(m.resource, id)
	}
	return e.v, nil
}

func (m *Memory[T]) List(_ context.Context) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.items))
	for id := range m.items {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Compare(m.items[a].seq, m.items[b].seq)
	})
	return ids
}

func (m *Memory[T]) Len(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
