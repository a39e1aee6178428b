package service

import (
	"slices"
	"strings"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

// Aggregate groups messages by wa_id into conversation summaries, newest
// conversation first. The name is taken from the latest message that carries
// one, so a known name never falls back to unknown.
func Aggregate(msgs []model.Message) []model.Conversation {
	type group struct {
		last  model.Message
		named *model.Message
	}

	groups := make(map[string]*group)
	for i := range msgs {
		m := msgs[i]
		g, ok := groups[m.WaID]
		if !ok {
			g = &group{last: m}
			groups[m.WaID] = g
		} else if newer(m, g.last) {
			g.last = m
		}
		if m.Name != "" && (g.named == nil || newer(m, *g.named)) {
			g.named = &m
		}
	}

	out := make([]model.Conversation, 0, len(groups))
	for waID, g := range groups {
		c := model.Conversation{
			WaID:        waID,
			LastMessage: g.last.Body,
			Timestamp:   g.last.CreatedAt,
		}
		if g.named != nil {
			name := g.named.Name
			c.Name = &name
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b model.Conversation) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.WaID, b.WaID)
	})
	return out
}

// newer orders by createdAt, then by id so equal timestamps resolve the same
// way on every call.
func newer(a, b model.Message) bool {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c > 0
	}
	return a.ID > b.ID
}
