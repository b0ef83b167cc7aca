package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"12.34", "12.34", false},
		{"12,34", "12.34", false},
		{"42.5", "42.50", false},
		{"12.345", "12.35", false},
		{"12.344", "12.34", false},
		{" 7 ", "7.00", false},
		{"", "", true},
		{"0", "", true},
		{"0.001", "", true},
		{"-3", "", true},
		{"+3", "", true},
		{"1.2.3", "", true},
		{"12a", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) expected error, got %s", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			}
			if FormatAmount(got) != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, FormatAmount(got), tt.want)
			}
		})
	}
}

func TestSum(t *testing.T) {
	got := Sum(decimal.RequireFromString("1.10"), decimal.RequireFromString("2.20"), decimal.RequireFromString("0.05"))
	if FormatAmount(got) != "3.35" {
		t.Errorf("Sum = %s, want 3.35", FormatAmount(got))
	}
	if !Sum().IsZero() {
		t.Error("Sum of nothing should be zero")
	}
}
