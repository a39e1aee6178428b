package repo

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

var ErrClosed = errors.New("message store closed")

// MemoryMessageRepo keeps messages in process. Each Upsert runs under one lock,
// which is this store's equivalent of a conditional write.
type MemoryMessageRepo struct {
	mu     sync.RWMutex
	items  map[string]model.Message
	closed bool
	now    func() time.Time
}

func NewMemoryMessageRepo() *MemoryMessageRepo {
	return &MemoryMessageRepo{
		items: make(map[string]model.Message),
		now:   time.Now,
	}
}

func (r *MemoryMessageRepo) Upsert(ctx context.Context, u Upsert) (model.Message, error) {
	if err := ctx.Err(); err != nil {
		return model.Message{}, err
	}
	if u.ID == "" {
		return model.Message{}, errors.New("upsert id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return model.Message{}, ErrClosed
	}

	m, ok := r.items[u.ID]
	if ok {
		u.Set.applyTo(&m)
	} else {
		m = u.inserted(r.now())
	}
	r.items[u.ID] = clone(m)
	return clone(m), nil
}

func (r *MemoryMessageRepo) FindByWaID(ctx context.Context, waID string) ([]model.Message, error) {
	return r.find(ctx, func(m model.Message) bool { return m.WaID == waID })
}

func (r *MemoryMessageRepo) FindAll(ctx context.Context) ([]model.Message, error) {
	return r.find(ctx, func(model.Message) bool { return true })
}

func (r *MemoryMessageRepo) find(ctx context.Context, keep func(model.Message) bool) ([]model.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrClosed
	}

	out := make([]model.Message, 0, len(r.items))
	for _, m := range r.items {
		if keep(m) {
			out = append(out, clone(m))
		}
	}
	SortByCreatedAt(out)
	return out, nil
}

func (r *MemoryMessageRepo) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}
	return nil
}

func (r *MemoryMessageRepo) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// SortByCreatedAt orders messages oldest first, breaking ties by id.
func SortByCreatedAt(msgs []model.Message) {
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

func clone(m model.Message) model.Message {
	if m.Metadata != nil {
		m.Metadata = maps.Clone(m.Metadata)
	}
	return m
}
