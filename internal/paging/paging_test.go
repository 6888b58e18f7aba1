package paging

import "testing"

func TestWindow(t *testing.T) {
	cases := []struct {
		name               string
		total, page, limit int
		start, end         int
		want               Pagination
	}{
		{"first page", 25, 1, 10, 0, 10, Pagination{1, 3, 25, true, false}},
		{"last partial page", 25, 3, 10, 20, 25, Pagination{3, 3, 25, false, true}},
		{"past the end", 25, 9, 10, 25, 25, Pagination{9, 3, 25, false, true}},
		{"defaults", 4, 0, 0, 0, 4, Pagination{1, 1, 4, false, false}},
		{"limit clamped", 120, 1, 500, 0, 50, Pagination{1, 3, 120, true, false}},
		{"empty", 0, 1, 10, 0, 0, Pagination{1, 0, 0, false, false}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end, p := Window(tc.total, tc.page, tc.limit, 10)
			if start != tc.start || end != tc.end {
				t.Fatalf("bounds = [%d,%d), want [%d,%d)", start, end, tc.start, tc.end)
			}
			if p != tc.want {
				t.Fatalf("pagination = %+v, want %+v", p, tc.want)
			}
		})
	}
}
