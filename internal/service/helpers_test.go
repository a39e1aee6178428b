package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LeventeLantos/wa-inbox/internal/model"
	"github.com/LeventeLantos/wa-inbox/internal/repo"
)

func inboundPayload(id, waID, name, body string, ts int64) []byte {
	return []byte(fmt.Sprintf(`{"metaData":{"entry":[{"changes":[{"field":"messages","value":{
		"contacts":[{"profile":{"name":%q},"wa_id":%q}],
		"messages":[{"from":%q,"id":%q,"timestamp":"%d","text":{"body":%q},"type":"text"}]
	}}]}]}}`, name, waID, waID, id, ts, body))
}

func statusPayload(id, waID, status string, ts int64) []byte {
	return []byte(fmt.Sprintf(`{"metaData":{"entry":[{"changes":[{"field":"messages","value":{
		"statuses":[{"id":%q,"recipient_id":%q,"status":%q,"timestamp":"%d"}]
	}}]}]}}`, id, waID, status, ts))
}

var errDown = errors.New("connection refused")

// downRepo fails every call, like a store that went away.
type downRepo struct{}

var _ repo.MessageRepository = (*downRepo)(nil)

func (downRepo) Upsert(context.Context, repo.Upsert) (model.Message, error) {
	return model.Message{}, errDown
}
func (downRepo) FindByWaID(context.Context, string) ([]model.Message, error) { return nil, errDown }
func (downRepo) FindAll(context.Context) ([]model.Message, error)            { return nil, errDown }
func (downRepo) Ping(context.Context) error                                  { return errDown }
func (downRepo) Close() error                                                { return nil }

type fakeCache struct {
	mu          sync.Mutex
	convs       []model.Conversation
	ok          bool
	gen         int64
	gets        int
	sets        int
	invalidates int
}

func (c *fakeCache) Get(context.Context) ([]model.Conversation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.convs, c.ok, nil
}

func (c *fakeCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *fakeCache) Set(_ context.Context, gen int64, convs []model.Conversation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if gen == c.gen {
		c.convs, c.ok = convs, true
	}
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidates++
	c.gen++
	c.convs, c.ok = nil, false
	return nil
}

type published struct {
	event string
	msg   model.Message
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{event: event, msg: payload.(model.Message)})
}

func (p *fakePublisher) snapshot() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

type fakeRelay struct {
	id    string
	err   error
	calls int
}

func (f *fakeRelay) Send(context.Context, string, string) (string, error) {
	f.calls++
	return f.id, f.err
}
