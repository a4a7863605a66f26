package testutil

import (
	"context"
	"testing"

	"github.com/coral-mesh/calltree/internal/threaddata"
)

// NewTestStore creates an in-memory thread store holding the labels and
// samples of mem. The store is closed when the test completes.
func NewTestStore(t *testing.T, mem *threaddata.Memory) *threaddata.Store {
	t.Helper()

	db, err := threaddata.OpenDB("")
	if err != nil {
		t.Fatalf("failed to open thread database: %v", err)
	}
	ctx := context.Background()
	store, err := threaddata.NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		t.Fatalf("failed to create thread store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close thread store: %v", err)
		}
	})

	if mem != nil {
		labels, err := mem.RankLabels(ctx)
		if err != nil {
			t.Fatalf("failed to read rank labels: %v", err)
		}
		if err := store.Ingest(ctx, labels, mem.Samples()); err != nil {
			t.Fatalf("failed to ingest thread data: %v", err)
		}
	}
	return store
}
