package semantic

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/storage"
)

// termEmbedder maps text to a fixed-dimension bag-of-terms vector, so
// similarity in tests is predictable: texts sharing more terms score higher.
type termEmbedder struct {
	terms []string
	err   error
	calls int
}

func (e *termEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	vec := make([]float32, len(e.terms))
	for i, term := range e.terms {
		if strings.Contains(lower, term) {
			vec[i] = 1
		}
	}
	return vec, nil
}

func newTestIndex(t *testing.T) (*Index, *termEmbedder) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	emb := &termEmbedder{terms: []string{"pin", "camera", "gaming", "samsung", "apple"}}
	return New(s.DB(), emb), emb
}

func phone(id int64, name, brand, description string) catalog.Product {
	return catalog.Product{
		ID: id, Name: name, Brand: brand,
		Category: catalog.CategoryPhone, Price: 10_000_000,
		Description: description, IsActive: true,
	}
}

func TestIndex_QueryRanksBySimilarity(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	mustUpsert(t, ix, phone(1, "Galaxy M55", "Samsung", "pin 6000mAh dùng hai ngày"))
	mustUpsert(t, ix, phone(2, "Pixelphone", "Other", "camera chụp đêm tốt"))
	mustUpsert(t, ix, phone(3, "ROG Phone", "Asus", "gaming chuyên dụng"))

	ids, err := ix.Query(ctx, "samsung pin trâu", 2)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}
	if ids[0] != 1 {
		t.Errorf("best match = %d, want 1 (shares pin and samsung terms)", ids[0])
	}
}

func TestIndex_UpsertReplacesVector(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	mustUpsert(t, ix, phone(1, "Galaxy", "Samsung", "gaming"))
	mustUpsert(t, ix, phone(1, "Galaxy", "Samsung", "pin 6000mAh"))

	count, err := ix.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after re-upsert, want 1", count)
	}

	ids, err := ix.Query(ctx, "pin", 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("Query after re-upsert = %v, want [1]", ids)
	}
}

func TestIndex_Delete(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()

	mustUpsert(t, ix, phone(1, "Galaxy", "Samsung", "pin"))
	if err := ix.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := ix.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete of missing vector: %v", err)
	}

	count, _ := ix.Count(ctx)
	if count != 0 {
		t.Errorf("count = %d after delete, want 0", count)
	}
}

func TestIndex_QueryEmbedderErrorPropagates(t *testing.T) {
	ix, emb := newTestIndex(t)
	mustUpsert(t, ix, phone(1, "Galaxy", "Samsung", "pin"))

	emb.err = errors.New("quota exhausted")
	if _, err := ix.Query(context.Background(), "pin", 5); err == nil {
		t.Error("Query succeeded with a failing embedder")
	}
}

func TestIndex_QueryZeroVectorReturnsNothing(t *testing.T) {
	ix, _ := newTestIndex(t)
	mustUpsert(t, ix, phone(1, "Galaxy", "Samsung", "pin"))

	// Query text sharing no terms embeds to the zero vector.
	ids, err := ix.Query(context.Background(), "xyzzy", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("got %v for an unembeddable query, want none", ids)
	}
}

func TestIndex_QueryTopKCapsResults(t *testing.T) {
	ix, _ := newTestIndex(t)
	ctx := context.Background()
	for i := int64(1); i <= 10; i++ {
		mustUpsert(t, ix, phone(i, "Galaxy", "Samsung", "pin"))
	}

	ids, err := ix.Query(ctx, "samsung pin", 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("got %d ids, want 3", len(ids))
	}
}

func TestIndex_IndexedIDs(t *testing.T) {
	ix, _ := newTestIndex(t)
	mustUpsert(t, ix, phone(3, "c", "x", "pin"))
	mustUpsert(t, ix, phone(1, "a", "x", "pin"))

	ids, err := ix.IndexedIDs(context.Background())
	if err != nil {
		t.Fatalf("IndexedIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 3 {
		t.Errorf("IndexedIDs = %v, want [1 3]", ids)
	}
}

func TestFloat32Codec_RoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, float32(math.Pi), -1e9, 1e-9}
	out, err := decodeFloat32sInto(nil, encodeFloat32s(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestFloat32Codec_RejectsCorruptBlob(t *testing.T) {
	if _, err := decodeFloat32sInto(nil, []byte{1, 2, 3}); err == nil {
		t.Error("decode accepted a blob whose length is not a multiple of 4")
	}
}

func mustUpsert(t *testing.T, ix *Index, p catalog.Product) {
	t.Helper()
	if err := ix.Upsert(context.Background(), p); err != nil {
		t.Fatalf("Upsert(%d): %v", p.ID, err)
	}
}
