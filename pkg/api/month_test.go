package api

import "testing"

func TestParseMonth(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"2025-01", false},
		{"1999-12", false},
		{"2025-00", true},
		{"2025-13", true},
		{"2025-1", true},
		{"202501", true},
		{"", true},
	}
	for _, tt := range tests {
		_, err := ParseMonth(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMonth(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
	}
}

func TestMinusMonths(t *testing.T) {
	tests := []struct {
		in   Month
		n    int
		want Month
	}{
		{"2025-06", 1, "2025-05"},
		{"2025-01", 1, "2024-12"},
		{"2025-03", 12, "2024-03"},
		{"2025-01", 13, "2023-12"},
		{"2024-12", -1, "2025-01"},
	}
	for _, tt := range tests {
		if got := tt.in.MinusMonths(tt.n); got != tt.want {
			t.Errorf("%s.MinusMonths(%d) = %s, want %s", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestMonthRange(t *testing.T) {
	got := MonthRange("2024-11", "2025-02")
	want := []Month{"2024-11", "2024-12", "2025-01", "2025-02"}
	if len(got) != len(want) {
		t.Fatalf("MonthRange: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MonthRange[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if r := MonthRange("2025-02", "2025-01"); r != nil {
		t.Errorf("reversed range: got %v, want nil", r)
	}
}

func TestFlagForCoverage(t *testing.T) {
	tests := []struct {
		cov  float64
		want QualityFlag
	}{
		{1.0, FlagPass},
		{0.95, FlagPass},
		{0.94, FlagCaution},
		{0.85, FlagCaution},
		{0.75, FlagWeakSignal},
		{0.70, FlagWeakSignal},
		{0.69, FlagError},
		{0, FlagError},
	}
	for _, tt := range tests {
		if got := FlagForCoverage(tt.cov); got != tt.want {
			t.Errorf("FlagForCoverage(%v) = %s, want %s", tt.cov, got, tt.want)
		}
	}
}
