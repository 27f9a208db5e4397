package intent

import (
	"testing"

	"github.com/thanhph/mobistore/internal/catalog"
)

func int64p(v int64) *int64 { return &v }

func TestExtractLocal(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Intent
	}{
		{
			name:  "vietnamese phone under five million",
			query: "điện thoại dưới 5 triệu",
			want:  Intent{Category: catalog.CategoryPhone, MaxPrice: int64p(5_000_000)},
		},
		{
			name:  "accessory with brand",
			query: "ốp lưng iphone",
			want:  Intent{Brand: "Apple", Category: catalog.CategoryAccessory},
		},
		{
			name:  "english price marker",
			query: "samsung under 5 million",
			want:  Intent{Brand: "Samsung", MaxPrice: int64p(5_000_000)},
		},
		{
			name:  "slang currency unit",
			query: "tìm điện thoại trên 2 củ",
			want:  Intent{Category: catalog.CategoryPhone, MinPrice: int64p(2_000_000)},
		},
		{
			name:  "hundred-thousand unit",
			query: "sạc dưới 3 trăm",
			want:  Intent{Category: catalog.CategoryAccessory, MaxPrice: int64p(300_000)},
		},
		{
			name:  "both bounds",
			query: "điện thoại trên 5 triệu dưới 10 triệu",
			want:  Intent{Category: catalog.CategoryPhone, MinPrice: int64p(5_000_000), MaxPrice: int64p(10_000_000)},
		},
		{
			name:  "galaxy alias maps to samsung",
			query: "galaxy s24",
			want:  Intent{Brand: "Samsung", Keyword: "s24"},
		},
		{
			name:  "accessory noun beats phone noun",
			query: "ốp lưng điện thoại xiaomi",
			want:  Intent{Brand: "Xiaomi", Category: catalog.CategoryAccessory},
		},
		{
			name:  "residual keyword survives with diacritics",
			query: "điện thoại pin trâu",
			want:  Intent{Category: catalog.CategoryPhone, Keyword: "pin trâu"},
		},
		{
			name:  "empty query",
			query: "",
			want:  Intent{},
		},
		{
			name:  "nonsense stays total",
			query: "xyzzy quux",
			want:  Intent{Keyword: "xyzzy quux"},
		},
		{
			name:  "plain model number",
			query: "iphone 15",
			want:  Intent{Brand: "Apple"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractLocal(tc.query)
			assertIntentEqual(t, got, tc.want)
		})
	}
}

func TestExtractLocal_NeverSetsSort(t *testing.T) {
	for _, q := range []string{"điện thoại rẻ nhất", "phone price_asc", "samsung đắt nhất"} {
		if got := ExtractLocal(q); got.Sort != SortNone {
			t.Errorf("ExtractLocal(%q).Sort = %q, want none", q, got.Sort)
		}
	}
}

func TestContainsToken(t *testing.T) {
	cases := []struct {
		haystack, needle string
		want             bool
	}{
		{"may tinh", "may", true},
		{"maybe later", "may", false},
		{"tim may", "may", true},
		{"dismay", "may", false},
		{"may", "may", true},
	}
	for _, tc := range cases {
		if got := containsToken(tc.haystack, tc.needle); got != tc.want {
			t.Errorf("containsToken(%q, %q) = %v, want %v", tc.haystack, tc.needle, got, tc.want)
		}
	}
}

func TestParseSort(t *testing.T) {
	cases := map[string]Sort{
		"price_asc":  SortPriceAsc,
		"PRICE_DESC": SortPriceDesc,
		" price_asc": SortPriceAsc,
		"random":     SortNone,
		"":           SortNone,
	}
	for in, want := range cases {
		if got := ParseSort(in); got != want {
			t.Errorf("ParseSort(%q) = %q, want %q", in, got, want)
		}
	}
}

func assertIntentEqual(t *testing.T, got, want Intent) {
	t.Helper()
	if got.Brand != want.Brand {
		t.Errorf("Brand = %q, want %q", got.Brand, want.Brand)
	}
	if got.Category != want.Category {
		t.Errorf("Category = %q, want %q", got.Category, want.Category)
	}
	if got.Keyword != want.Keyword {
		t.Errorf("Keyword = %q, want %q", got.Keyword, want.Keyword)
	}
	if got.Sort != want.Sort {
		t.Errorf("Sort = %q, want %q", got.Sort, want.Sort)
	}
	assertPriceEqual(t, "MinPrice", got.MinPrice, want.MinPrice)
	assertPriceEqual(t, "MaxPrice", got.MaxPrice, want.MaxPrice)
}

func assertPriceEqual(t *testing.T, field string, got, want *int64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil:
		t.Errorf("%s = nil, want %d", field, *want)
	case want == nil:
		t.Errorf("%s = %d, want nil", field, *got)
	case *got != *want:
		t.Errorf("%s = %d, want %d", field, *got, *want)
	}
}
