package keyword

import (
	"context"
	"reflect"
	"testing"

	"github.com/thanhph/mobistore/internal/catalog"
	"github.com/thanhph/mobistore/internal/storage"
)

func newTestMatcher(t *testing.T) (*Matcher, *catalog.Store) {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	store := catalog.NewStore(s.DB())
	return New(store), store
}

func seed(t *testing.T, store *catalog.Store, products ...catalog.Product) {
	t.Helper()
	ctx := context.Background()
	for i := range products {
		if err := store.Upsert(ctx, &products[i]); err != nil {
			t.Fatalf("seeding product %q: %v", products[i].Name, err)
		}
	}
}

func names(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestTokenize(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"pin trâu", []string{"pin", "trau"}},
		{"ốp lưng", []string{"op", "lung"}},
		{"a b pin", []string{"pin"}},
		{"", nil},
		{"x", nil},
	}
	for _, tc := range cases {
		if got := Tokenize(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Tokenize(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMatch_StrictTierWins(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "iPhone 15 Pro Max", Brand: "Apple", Category: catalog.CategoryPhone, Price: 30_000_000, IsActive: true},
		catalog.Product{Name: "iPhone 15", Brand: "Apple", Category: catalog.CategoryPhone, Price: 20_000_000, IsActive: true,
			Description: "phiên bản pro max thu gọn"},
	)

	got, err := m.Match(context.Background(), "pro max", catalog.Filter{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []string{"iPhone 15 Pro Max"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("strict tier = %v, want %v", names(got), want)
	}
}

func TestMatch_FallsBackToLooseTier(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "Galaxy M55", Brand: "Samsung", Category: catalog.CategoryPhone, Price: 8_000_000, IsActive: true,
			Description: "pin 6000mAh dùng hai ngày"},
		catalog.Product{Name: "Galaxy A15", Brand: "Samsung", Category: catalog.CategoryPhone, Price: 5_000_000, IsActive: true,
			Description: "màn hình AMOLED"},
	)

	// No product name contains "pin", so the description tier fires.
	got, err := m.Match(context.Background(), "pin trâu", catalog.Filter{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []string{"Galaxy M55"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("loose tier = %v, want %v", names(got), want)
	}
}

func TestMatch_FoldsDiacritics(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "Sạc nhanh 25W", Brand: "Samsung", Category: catalog.CategoryAccessory, Price: 300_000, IsActive: true},
	)

	for _, q := range []string{"sạc", "sac"} {
		got, err := m.Match(context.Background(), q, catalog.Filter{})
		if err != nil {
			t.Fatalf("Match(%q): %v", q, err)
		}
		if len(got) != 1 {
			t.Errorf("Match(%q) found %d products, want 1", q, len(got))
		}
	}
}

func TestMatch_RespectsBaseFilter(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "Sạc nhanh Samsung", Brand: "Samsung", Category: catalog.CategoryAccessory, Price: 300_000, IsActive: true},
		catalog.Product{Name: "Sạc nhanh Apple", Brand: "Apple", Category: catalog.CategoryAccessory, Price: 500_000, IsActive: true},
	)

	got, err := m.Match(context.Background(), "sạc", catalog.Filter{Brand: "Apple"})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []string{"Sạc nhanh Apple"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("filtered match = %v, want %v", names(got), want)
	}
}

func TestMatch_EmptyKeyword(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "Galaxy M55", Brand: "Samsung", Category: catalog.CategoryPhone, Price: 8_000_000, IsActive: true},
	)

	got, err := m.Match(context.Background(), "  ", catalog.Filter{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty keyword matched %d products, want 0", len(got))
	}
}

func TestMatch_StrictSubsetOfLoose(t *testing.T) {
	m, store := newTestMatcher(t)
	seed(t, store,
		catalog.Product{Name: "Pin dự phòng 10000mAh", Brand: "Xiaomi", Category: catalog.CategoryAccessory, Price: 400_000, IsActive: true},
		catalog.Product{Name: "Cáp sạc", Brand: "Xiaomi", Category: catalog.CategoryAccessory, Price: 100_000, IsActive: true,
			Description: "dùng kèm pin dự phòng"},
	)

	// Strict tier has a hit, so loose-only matches must be excluded.
	got, err := m.Match(context.Background(), "pin", catalog.Filter{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if want := []string{"Pin dự phòng 10000mAh"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("Match = %v, want %v", names(got), want)
	}
}
