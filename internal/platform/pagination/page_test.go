package pagination

import "testing"

func TestClampPageSize(t *testing.T) {
	cfg := PageSizeConfig{Default: 20, Max: 100}
	tests := []struct {
		name  string
		value int
		want  int
	}{
		{name: "zero uses default", value: 0, want: 20},
		{name: "negative uses default", value: -5, want: 20},
		{name: "within range", value: 7, want: 7},
		{name: "above max clamps", value: 500, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampPageSize(tt.value, cfg); got != tt.want {
				t.Fatalf("ClampPageSize(%d) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestClampPageSizeFallsBackToOne(t *testing.T) {
	if got := ClampPageSize(0, PageSizeConfig{}); got != 1 {
		t.Fatalf("ClampPageSize = %d, want 1", got)
	}
}

func TestNormalize(t *testing.T) {
	req, err := Normalize(0, 0, DefaultConfig)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Page != 1 || req.Size != DefaultPageSize {
		t.Fatalf("request = %+v, want page 1 size %d", req, DefaultPageSize)
	}
	if req.Offset() != 0 {
		t.Fatalf("offset = %d, want 0", req.Offset())
	}

	req, err = Normalize(3, 10, DefaultConfig)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if req.Offset() != 20 {
		t.Fatalf("offset = %d, want 20", req.Offset())
	}
}

func TestNormalizeRejectsNegatives(t *testing.T) {
	if _, err := Normalize(-1, 10, DefaultConfig); err == nil {
		t.Fatal("expected error for negative page")
	}
	if _, err := Normalize(1, -3, DefaultConfig); err == nil {
		t.Fatal("expected error for negative size")
	}
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		total, size, want int
	}{
		{0, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{35, 10, 4},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := TotalPages(tt.total, tt.size); got != tt.want {
			t.Fatalf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.size, got, tt.want)
		}
	}
}
