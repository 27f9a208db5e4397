package main

import (
	"context"
	"sort"
	"strings"
	"testing"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/semantic"
	"github.com/thanhph/mobistore/internal/storage"
)

type fixedEmbedder struct {
	calls int
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return []float32{1, 0, 0}, nil
}

func TestRebuildIndex_PrunesStaleVectors(t *testing.T) {
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	products := catalog.NewStore(s.DB())
	emb := &fixedEmbedder{}
	index := semantic.New(s.DB(), emb)

	seeded := make([]catalog.Product, 3)
	for i, name := range []string{"Galaxy M55", "iPhone 15", "Redmi Note 13"} {
		p := catalog.Product{
			Name: name, Brand: "Test", Category: catalog.CategoryPhone,
			Price: 5_000_000, IsActive: true, StockQuantity: 1,
		}
		if err := products.Upsert(ctx, &p); err != nil {
			t.Fatalf("seeding %s: %v", name, err)
		}
		seeded[i] = p
	}

	embedded, stale, err := rebuildIndex(ctx, products, index)
	if err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	if embedded != 3 || stale != 0 {
		t.Errorf("first rebuild = (%d embedded, %d stale), want (3, 0)", embedded, stale)
	}
	if emb.calls != 3 {
		t.Errorf("embedder called %d times, want 3", emb.calls)
	}

	// Deactivate one product; its vector must be dropped on the next run.
	seeded[0].IsActive = false
	if err := products.Upsert(ctx, &seeded[0]); err != nil {
		t.Fatalf("deactivating: %v", err)
	}

	embedded, stale, err = rebuildIndex(ctx, products, index)
	if err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if embedded != 2 || stale != 1 {
		t.Errorf("second rebuild = (%d embedded, %d stale), want (2, 1)", embedded, stale)
	}

	ids, err := index.IndexedIDs(ctx)
	if err != nil {
		t.Fatalf("IndexedIDs: %v", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	want := []int64{seeded[1].ID, seeded[2].ID}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if len(ids) != len(want) || ids[0] != want[0] || ids[1] != want[1] {
		t.Errorf("indexed ids = %v, want %v", ids, want)
	}
}

func TestColorize(t *testing.T) {
	orig := noColor
	t.Cleanup(func() { noColor = orig })

	noColor = false
	got := colorize(colorRed, "boom")
	if !strings.HasPrefix(got, colorRed) || !strings.HasSuffix(got, colorReset) {
		t.Errorf("colorize = %q, want red wrapping", got)
	}

	noColor = true
	if got := colorize(colorRed, "boom"); got != "boom" {
		t.Errorf("colorize with --no-color = %q, want plain text", got)
	}
}
