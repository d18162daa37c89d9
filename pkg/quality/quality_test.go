package quality

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		factor float64
		want   float64
	}{
		{"Default", 0.8, 0.8},
		{"Max", 1, 1},
		{"Tiny", 0.001, 0.001},
		{"Zero", 0, Default},
		{"Negative", -0.5, Default},
		{"Above one", 1.5, Default},
		{"NaN", math.NaN(), Default},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.factor); got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.factor, got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		factor float64
		want   int
	}{
		{0.8, 80},
		{1, 100},
		{0.5, 50},
		{0.004, 1},
		{0.756, 76},
		{0, 80},
		{2, 80},
	}

	for _, tt := range tests {
		if got := Percent(tt.factor); got != tt.want {
			t.Errorf("Percent(%v) = %d, want %d", tt.factor, got, tt.want)
		}
	}
}

func BenchmarkPercent(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Percent(0.8)
	}
}
