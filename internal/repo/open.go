package repo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrUnsupportedStore = errors.New("unsupported store scheme")

// Open builds a repository from a DSN. The scheme picks the backend:
// memory://, postgres:// (postgresql://) or mongodb:// (mongodb+srv://).
// Remote stores are pinged before Open returns.
func Open(ctx context.Context, dsn string) (MessageRepository, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty dsn", ErrUnsupportedStore)
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(parsed.Scheme) {
	case "memory", "mem", "inmem":
		return NewMemoryMessageRepo(), nil
	case "postgres", "postgresql":
		return NewPostgresMessageRepo(ctx, dsn)
	case "mongodb", "mongodb+srv":
		return NewMongoMessageRepo(ctx, dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStore, parsed.Scheme)
	}
}
