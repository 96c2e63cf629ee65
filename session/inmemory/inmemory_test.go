package inmemory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/newsrag/models"
)

func TestInMemoryHistory(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	store := NewInMemorySessionStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	_ = store.Append(ctx, "s1", models.ChatMessage{Role: models.RoleUser, Content: "one"}, time.Hour)
	now = now.Add(30 * time.Minute)
	_ = store.Append(ctx, "s1", models.ChatMessage{Role: models.RoleAssistant, Content: "two"}, time.Hour)

	if ttl := store.TTL("s1"); ttl != time.Hour {
		t.Fatalf("ttl = %v, want 1h after append", ttl)
	}
	got, _ := store.Load(ctx, "s1")
	if len(got) != 2 || got[0].Content != "one" || got[1].Content != "two" {
		t.Fatalf("history = %+v", got)
	}

	// returned slice must not alias internal state
	got[0].Content = "mutated"
	again, _ := store.Load(ctx, "s1")
	if again[0].Content != "one" {
		t.Fatalf("Load leaked internal slice")
	}

	now = now.Add(time.Hour)
	expired, _ := store.Load(ctx, "s1")
	if len(expired) != 0 {
		t.Fatalf("expired history = %+v", expired)
	}

	_ = store.Append(ctx, "s2", models.ChatMessage{Role: models.RoleUser, Content: "x"}, time.Hour)
	_ = store.Clear(ctx, "s2")
	if cleared, _ := store.Load(ctx, "s2"); len(cleared) != 0 {
		t.Fatalf("cleared history = %+v", cleared)
	}
}

func TestInMemoryConcurrentAppends(t *testing.T) {
	t.Parallel()
	store := NewInMemorySessionStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Append(ctx, "shared", models.ChatMessage{Role: models.RoleUser, Content: "m"}, time.Minute)
		}()
	}
	wg.Wait()
	got, _ := store.Load(ctx, "shared")
	if len(got) != 50 {
		t.Fatalf("got %d messages", len(got))
	}
}
