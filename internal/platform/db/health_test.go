package db

import (
	"encoding/json"
	"testing"
)

func TestPoolStats_HealthyFlag(t *testing.T) {
	tests := []struct {
		name    string
		stats   PoolStats
		healthy bool
	}{
		{
			name: "open connections",
			stats: PoolStats{
				TotalConns: 4,
				IdleConns:  2,
				MaxConns:   20,
				Healthy:    true,
			},
			healthy: true,
		},
		{
			name: "no connections",
			stats: PoolStats{
				TotalConns: 0,
				MaxConns:   20,
				Healthy:    false,
			},
			healthy: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.stats.Healthy != tt.healthy {
				t.Errorf("Healthy = %v, want %v", tt.stats.Healthy, tt.healthy)
			}
		})
	}
}

func TestPoolStats_JSONShape(t *testing.T) {
	stats := PoolStats{
		TotalConns:      3,
		IdleConns:       1,
		AcquiredConns:   2,
		MaxConns:        10,
		AcquireCount:    57,
		AcquireDuration: "250ms",
		Healthy:         true,
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	for _, key := range []string{
		"total_conns", "idle_conns", "acquired_conns",
		"max_conns", "acquire_count", "acquire_duration", "healthy",
	} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing %q in health payload", key)
		}
	}
	if decoded["acquire_duration"] != "250ms" {
		t.Errorf("acquire_duration = %v", decoded["acquire_duration"])
	}
}
