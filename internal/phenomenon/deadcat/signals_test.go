package deadcat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOutcomeProbability(t *testing.T) {
	ev := NewSignalEvaluator(DefaultConfig().Probability)

	tests := []struct {
		name    string
		signals Signals
		want    float64
		names   []string
	}{
		{name: "no signals", want: 0.30},
		{
			name:    "half retracement",
			signals: Signals{Retracement: 0.55},
			want:    0.50,
			names:   []string{"retracement_50"},
		},
		{
			name:    "golden ratio supersedes half",
			signals: Signals{Retracement: 0.62},
			want:    0.60,
			names:   []string{"retracement_61.8"},
		},
		{
			name:    "cluster buy supersedes insider buying",
			signals: Signals{InsiderBuying: true, ClusterBuy: true},
			want:    0.55,
			names:   []string{"insider_cluster_buy"},
		},
		{
			name:    "streak below threshold",
			signals: Signals{ConsecutiveUpDays: 2, HigherLow: true},
			want:    0.40,
			names:   []string{"higher_low"},
		},
		{
			name: "everything is capped",
			signals: Signals{
				Retracement:       0.7,
				VolumeTrend:       VolumeIncreasing,
				ConsecutiveUpDays: 3,
				ClusterBuy:        true,
			},
			want:  0.85,
			names: []string{"retracement_61.8", "rising_volume", "three_day_rule", "insider_cluster_buy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ev.ComputeOutcomeProbability(tt.signals)
			assert.InDelta(t, tt.want, got.Probability, 1e-9)
			var names []string
			for _, s := range got.Signals {
				names = append(names, s.Name)
			}
			assert.Equal(t, tt.names, names)
		})
	}
}

func TestProbabilityNeverCertain(t *testing.T) {
	cfg := DefaultConfig().Probability
	cfg.Max = 5
	ev := NewSignalEvaluator(cfg)
	got := ev.ComputeOutcomeProbability(Signals{
		Retracement: 0.9, VolumeTrend: VolumeIncreasing, HigherLow: true,
		ConsecutiveUpDays: 9, ClusterBuy: true,
	})
	assert.Less(t, got.Probability, 1.0)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Probability.Max = 1
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CrashDays = DayRange{Min: 1, Max: 3}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.SubsequentDrops = nil
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	assert.Equal(t, 0.25, cfg.subsequentDrop(7))
	assert.Equal(t, 0.15, cfg.subsequentDrop(-1))
}
