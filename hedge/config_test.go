package hedge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantErr   bool
		wantField string
	}{
		{
			name:   "given default config, then valid",
			config: DefaultConfig(),
		},
		{
			name:   "given percentile config, then valid",
			config: PercentileConfig(time.Second, 0.5, 0.75, 0.95),
		},
		{
			name: "given hedge at exactly one, then valid",
			config: Config{
				TargetSLO: time.Second,
				HedgeAt:   1.0,
				MaxHedges: 1,
			},
		},
		{
			name: "given zero max hedges, then valid",
			config: Config{
				TargetSLO: time.Second,
				HedgeAt:   0.95,
				MaxHedges: 0,
			},
		},
		{
			name: "given zero target SLO, then invalid",
			config: Config{
				HedgeAt:   0.95,
				MaxHedges: 1,
			},
			wantErr:   true,
			wantField: "TargetSLO",
		},
		{
			name: "given negative target SLO, then invalid",
			config: Config{
				TargetSLO: -time.Second,
				HedgeAt:   0.95,
				MaxHedges: 1,
			},
			wantErr:   true,
			wantField: "TargetSLO",
		},
		{
			name: "given negative max hedges, then invalid",
			config: Config{
				TargetSLO: time.Second,
				HedgeAt:   0.95,
				MaxHedges: -1,
			},
			wantErr:   true,
			wantField: "MaxHedges",
		},
		{
			name: "given hedge at above one, then invalid",
			config: Config{
				TargetSLO: time.Second,
				HedgeAt:   1.5,
				MaxHedges: 1,
			},
			wantErr:   true,
			wantField: "HedgeAt",
		},
		{
			name: "given zero hedge at without points, then invalid",
			config: Config{
				TargetSLO: time.Second,
				MaxHedges: 1,
			},
			wantErr:   true,
			wantField: "HedgeAt",
		},
		{
			name: "given both hedge at and points, then invalid",
			config: Config{
				TargetSLO:   time.Second,
				HedgeAt:     0.95,
				HedgePoints: []float64{0.5, 0.75},
				MaxHedges:   2,
			},
			wantErr:   true,
			wantField: "HedgeAt",
		},
		{
			name: "given unsorted hedge points, then invalid",
			config: Config{
				TargetSLO:   time.Second,
				HedgePoints: []float64{0.75, 0.5},
				MaxHedges:   2,
			},
			wantErr:   true,
			wantField: "HedgePoints",
		},
		{
			name: "given hedge point above one, then invalid",
			config: Config{
				TargetSLO:   time.Second,
				HedgePoints: []float64{0.5, 1.5},
				MaxHedges:   2,
			},
			wantErr:   true,
			wantField: "HedgePoints",
		},
		{
			name: "given zero hedge point, then invalid",
			config: Config{
				TargetSLO:   time.Second,
				HedgePoints: []float64{0, 0.5},
				MaxHedges:   2,
			},
			wantErr:   true,
			wantField: "HedgePoints",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()

			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.wantField, cfgErr.Field)
		})
	}
}

func TestConfig_hedgeSlots(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   int
	}{
		{
			name:   "given single point mode, then slots equal max hedges",
			config: Config{TargetSLO: time.Second, HedgeAt: 0.95, MaxHedges: 3},
			want:   3,
		},
		{
			name:   "given percentile mode with fewer points than max, then slots equal points",
			config: Config{TargetSLO: time.Second, HedgePoints: []float64{0.5, 0.9}, MaxHedges: 5},
			want:   2,
		},
		{
			name:   "given percentile mode capped by max hedges, then slots equal max",
			config: Config{TargetSLO: time.Second, HedgePoints: []float64{0.5, 0.75, 0.95}, MaxHedges: 2},
			want:   2,
		},
		{
			name:   "given zero max hedges, then no slots",
			config: Config{TargetSLO: time.Second, HedgeAt: 0.95, MaxHedges: 0},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.hedgeSlots())
		})
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	racer, err := New(Config{TargetSLO: time.Second, HedgeAt: 2, MaxHedges: 1})

	require.Error(t, err)
	assert.Nil(t, racer)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
