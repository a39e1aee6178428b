package repo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/LeventeLantos/wa-inbox/internal/model"
)

// Run with INBOX_TEST_POSTGRES_DSN and/or INBOX_TEST_MONGO_URI pointing at
// disposable databases.
func integrationRepos(t *testing.T) map[string]MessageRepository {
	t.Helper()

	out := map[string]MessageRepository{}
	if dsn := strings.TrimSpace(os.Getenv("INBOX_TEST_POSTGRES_DSN")); dsn != "" {
		r, err := NewPostgresMessageRepo(context.Background(), dsn)
		if err != nil {
			t.Fatalf("connect postgres: %v", err)
		}
		t.Cleanup(func() { _ = r.Close() })
		out["postgres"] = r
	}
	if uri := strings.TrimSpace(os.Getenv("INBOX_TEST_MONGO_URI")); uri != "" {
		r, err := NewMongoMessageRepo(context.Background(), uri)
		if err != nil {
			t.Fatalf("connect mongo: %v", err)
		}
		t.Cleanup(func() { _ = r.Close() })
		out["mongo"] = r
	}
	if len(out) == 0 {
		t.Skip("set INBOX_TEST_POSTGRES_DSN or INBOX_TEST_MONGO_URI to run store integration tests")
	}
	return out
}

func TestStoreIntegration_StatusThenInboundThenStatus(t *testing.T) {
	for name, r := range integrationRepos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			id := fmt.Sprintf("it-%s-%d", name, time.Now().UnixNano())
			waID := "wa-" + id

			got, err := r.Upsert(ctx, statusUpsert(id, waID, model.Delivered, time.Unix(1500, 0)))
			if err != nil {
				t.Fatalf("status Upsert() error: %v", err)
			}
			if got.Body != model.BusinessAccountBody || got.Type != model.DefaultType {
				t.Fatalf("expected insert defaults, got %+v", got)
			}

			got, err = r.Upsert(ctx, inboundUpsert(id, waID, "Alice", "hi", time.Unix(1000, 0)))
			if err != nil {
				t.Fatalf("inbound Upsert() error: %v", err)
			}
			if got.Body != "hi" || got.Name != "Alice" || got.FromMe || got.Status != model.Delivered {
				t.Fatalf("expected full overwrite, got %+v", got)
			}

			got, err = r.Upsert(ctx, statusUpsert(id, waID, model.Read, time.Unix(2000, 0)))
			if err != nil {
				t.Fatalf("status Upsert() error: %v", err)
			}
			if got.Body != "hi" || got.Name != "Alice" || got.Status != model.Read || !got.FromMe {
				t.Fatalf("unexpected merged record %+v", got)
			}
			if !got.CreatedAt.Equal(time.Unix(2000, 0)) {
				t.Fatalf("expected createdAt from the status event, got %v", got.CreatedAt)
			}

			msgs, err := r.FindByWaID(ctx, waID)
			if err != nil {
				t.Fatalf("FindByWaID() error: %v", err)
			}
			if len(msgs) != 1 {
				t.Fatalf("expected one record for %s, got %d", id, len(msgs))
			}
		})
	}
}
