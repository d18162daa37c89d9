package optimizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDimensions(t *testing.T) {
	opts := DefaultOptions()

	tests := []struct {
		name          string
		width, height int
		want          Plan
	}{
		{"Fits both bounds", 800, 600, Plan{800, 600}},
		{"Exactly at bounds", 1920, 1080, Plan{1920, 1080}},
		{"Tall but narrow fits width", 1000, 1080, Plan{1000, 1080}},
		{"Width bound only", 4000, 500, Plan{1920, 240}},
		{"Both stages", 3000, 3000, Plan{1080, 1080}},
		{"Landscape photo", 3000, 2000, Plan{1620, 1080}},
		{"Height bound only", 1000, 2000, Plan{540, 1080}},
		{"Extreme panorama clamps height", 10000, 1, Plan{1920, 1}},
		{"Extreme portrait clamps width", 1, 10000, Plan{1, 1080}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanDimensions(tt.width, tt.height, opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.True(t, got.Fits(opts.MaxWidth, opts.MaxHeight))
		})
	}
}

func TestPlanDimensions_StageRounding(t *testing.T) {
	// Stage one yields 2161*1920/3840 = 1080.5, rounded up to 1081, which
	// trips stage two. A single min-ratio pass would give 1919x1080.
	got, err := PlanDimensions(3840, 2161, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, Plan{Width: 1918, Height: 1080}, got)
}

func TestPlanDimensions_Identity(t *testing.T) {
	opts := DefaultOptions()
	for w := 1; w <= opts.MaxWidth; w += 97 {
		for h := 1; h <= opts.MaxHeight; h += 89 {
			got, err := PlanDimensions(w, h, opts)
			require.NoError(t, err)
			if got.Width != w || got.Height != h {
				t.Fatalf("PlanDimensions(%d, %d) = %+v, want unchanged", w, h, got)
			}
		}
	}
}

func TestPlanDimensions_Idempotent(t *testing.T) {
	opts := DefaultOptions()
	inputs := [][2]int{{4000, 500}, {3000, 3000}, {3840, 2161}, {12345, 6789}, {640, 9999}, {20000, 3}}

	for _, in := range inputs {
		first, err := PlanDimensions(in[0], in[1], opts)
		require.NoError(t, err)
		second, err := PlanDimensions(first.Width, first.Height, opts)
		require.NoError(t, err)
		assert.Equal(t, first, second, "input %v", in)
	}
}

func TestPlanDimensions_WidthStageUsesOriginalRatio(t *testing.T) {
	for _, in := range [][2]int{{4000, 500}, {2500, 1000}, {1921, 1080}} {
		got, err := PlanDimensions(in[0], in[1], DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, 1920, got.Width)
		assert.Equal(t, roundHalfUp(float64(in[1])*1920/float64(in[0])), got.Height)
	}
}

func TestPlanDimensions_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		opts          Options
	}{
		{"Zero width", 0, 100, DefaultOptions()},
		{"Zero height", 100, 0, DefaultOptions()},
		{"Negative", -5, 100, DefaultOptions()},
		{"Zero max width", 100, 100, Options{MaxWidth: 0, MaxHeight: 100}},
		{"Negative max height", 100, 100, Options{MaxWidth: 100, MaxHeight: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanDimensions(tt.width, tt.height, tt.opts)
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.ErrorIs(t, err, ErrInvalidDimensions)
		})
	}
}

func TestPlanDimensions_CustomBounds(t *testing.T) {
	opts := Options{MaxWidth: 800, MaxHeight: 800}
	got, err := PlanDimensions(1600, 1200, opts)
	require.NoError(t, err)
	assert.Equal(t, Plan{800, 600}, got)
}
