package cache

import (
	"context"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

// ConversationCache holds the aggregated conversation list between writes.
//
// Readers take Generation before querying the store and pass it to Set. Set
// is a no-op when an Invalidate happened in between, so a snapshot that
// predates a write is never cached.
type ConversationCache interface {
	Get(ctx context.Context) (convs []model.Conversation, ok bool, err error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, gen int64, convs []model.Conversation) error
	Invalidate(ctx context.Context) error
}
