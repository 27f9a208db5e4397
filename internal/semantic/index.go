// Package semantic maintains an embedding index over the product catalog and
// answers free-text similarity queries with ranked product IDs. Vectors live
// in the product_vectors table and are searched by brute-force cosine
// similarity, which is plenty for a catalog of this size.
package semantic

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/thanhph/mobistore/internal/catalog"
)

// Embedder produces an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Index stores one embedding per product and serves similarity queries.
type Index struct {
	db       *sql.DB
	embedder Embedder
}

// New wraps an existing *sql.DB for vector operations. The product_vectors
// table must already exist (created via migrations).
func New(db *sql.DB, embedder Embedder) *Index {
	return &Index{db: db, embedder: embedder}
}

// semanticText renders the product as the descriptive paragraph that gets
// embedded. Richer text than the bare name gives the embedding model brand,
// category, and price range context to match against.
func semanticText(p catalog.Product) string {
	return fmt.Sprintf(
		"Sản phẩm: %s. Hãng: %s. Loại: %s. Mô tả chi tiết: %s. Mức giá khoảng: %d đồng.",
		p.Name, p.Brand, p.Category, p.Description, p.EffectivePrice(),
	)
}

// Upsert embeds the product's descriptive text and stores the vector,
// replacing any previous vector for the same product ID.
func (ix *Index) Upsert(ctx context.Context, p catalog.Product) error {
	vec, err := ix.embedder.Embed(ctx, semanticText(p))
	if err != nil {
		return fmt.Errorf("embedding product %d: %w", p.ID, err)
	}
	_, err = ix.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO product_vectors (product_id, embedding, price, brand, category)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, encodeFloat32s(vec), p.EffectivePrice(), p.Brand, string(p.Category))
	if err != nil {
		return fmt.Errorf("storing vector for product %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes the vector for a product. Deleting a product that was never
// indexed is not an error.
func (ix *Index) Delete(ctx context.Context, productID int64) error {
	if _, err := ix.db.ExecContext(ctx, `DELETE FROM product_vectors WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("deleting vector for product %d: %w", productID, err)
	}
	return nil
}

// Count returns the number of indexed products.
func (ix *Index) Count(ctx context.Context) (int, error) {
	var count int
	err := ix.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM product_vectors`).Scan(&count)
	return count, err
}

// idScore tracks a candidate during the scan phase of Query.
type idScore struct {
	ID    int64
	Score float32
}

// Query embeds the text and returns the IDs of the topK most similar
// products, best match first.
func (ix *Index) Query(ctx context.Context, text string, topK int) ([]int64, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	queryNorm := norm(vec)
	if queryNorm == 0 {
		return nil, nil
	}

	rows, err := ix.db.QueryContext(ctx, `SELECT product_id, embedding FROM product_vectors`)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &idScoreHeap{}
	heap.Init(h)

	// Reusable buffer so the scan does not allocate per row.
	var buf []float32

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for product %d: %w", id, err)
		}

		score := cosine(vec, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, idScore{ID: id, Score: score})
		} else if score > (*h)[0].Score {
			(*h)[0] = idScore{ID: id, Score: score}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	// Pop the min-heap into the result back to front for descending order.
	ids := make([]int64, h.Len())
	for i := len(ids) - 1; i >= 0; i-- {
		ids[i] = heap.Pop(h).(idScore).ID
	}
	return ids, nil
}

// IndexedIDs returns every product ID currently in the index. Used by the
// reindex command to detect stale vectors.
func (ix *Index) IndexedIDs(ctx context.Context) ([]int64, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT product_id FROM product_vectors ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("listing indexed products: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes dot(a,b) / (aNorm * bNorm), with aNorm precomputed.
func cosine(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// idScoreHeap is a min-heap of idScore ordered by Score, used to keep the
// current top-K during the scan.
type idScoreHeap []idScore

func (h idScoreHeap) Len() int           { return len(h) }
func (h idScoreHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h idScoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *idScoreHeap) Push(x any)        { *h = append(*h, x.(idScore)) }
func (h *idScoreHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
