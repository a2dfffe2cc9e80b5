package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emergent/jobqueue/internal/config"
)

func TestPolicyBackoff(t *testing.T) {
	p := Policy{BackoffBase: time.Minute}

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{"first failure", 0, time.Minute},
		{"second failure", 1, 2 * time.Minute},
		{"third failure", 2, 4 * time.Minute},
		{"fourth failure", 3, 8 * time.Minute},
		{"fifth failure", 4, 16 * time.Minute},
		{"negative clamps to base", -1, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Backoff(tt.attempt))
		})
	}
}

func TestPolicyBackoffCap(t *testing.T) {
	p := Policy{BackoffBase: time.Minute, BackoffCap: 5 * time.Minute}

	assert.Equal(t, time.Minute, p.Backoff(0))
	assert.Equal(t, 2*time.Minute, p.Backoff(1))
	assert.Equal(t, 4*time.Minute, p.Backoff(2))
	assert.Equal(t, 5*time.Minute, p.Backoff(3))
	assert.Equal(t, 5*time.Minute, p.Backoff(30), "large attempts never overflow past the cap")
}

func TestPolicyFromConfig(t *testing.T) {
	pc := config.PolicyConfig{
		MaxAttempts:    5,
		BackoffBase:    30 * time.Second,
		BackoffCap:     10 * time.Minute,
		StaleThreshold: 20 * time.Minute,
		WorkerBatch:    25,
		WorkerInterval: 2 * time.Second,
	}

	p := PolicyFromConfig(pc)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 30*time.Second, p.BackoffBase)
	assert.Equal(t, 10*time.Minute, p.BackoffCap)
	assert.Equal(t, 20*time.Minute, p.StaleThreshold)
	assert.Equal(t, 25, p.WorkerBatch)
	assert.Equal(t, 2*time.Second, p.WorkerInterval)
}
