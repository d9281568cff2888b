package pipeline

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"

	"github.com/campuseats/preptime/internal/config"
)

func contextCfg() config.ContextConfig {
	return config.ContextConfig{
		VelocityWindowMinutes: 15,
		DefaultQueueDepth:     3,
		DefaultVelocity:       10,
	}
}

func TestContextProvider_NilStore(t *testing.T) {
	cp := NewContextProvider(nil, contextCfg())

	vc := cp.Fetch(context.Background(), "vendor-1")

	assert.Equal(t, 3, vc.QueueDepth)
	assert.Equal(t, 10, vc.RecentVelocity)
}

func TestContextProvider_StoreValues(t *testing.T) {
	st := &mockStore{queueDepth: 6, velocity: 14}
	cp := NewContextProvider(st, contextCfg())

	vc := cp.Fetch(context.Background(), "vendor-1")

	assert.Equal(t, 6, vc.QueueDepth)
	assert.Equal(t, 14, vc.RecentVelocity)
}

func TestContextProvider_ZeroCountsKept(t *testing.T) {
	st := &mockStore{queueDepth: 0, velocity: 0}
	cp := NewContextProvider(st, contextCfg())

	vc := cp.Fetch(context.Background(), "vendor-1")

	// A real zero from the store must not be replaced with the default.
	assert.Equal(t, 0, vc.QueueDepth)
	assert.Equal(t, 0, vc.RecentVelocity)
}

func TestContextProvider_QueueErrorFallsBack(t *testing.T) {
	st := &mockStore{countErr: eris.New("connection refused"), velocity: 9}
	cp := NewContextProvider(st, contextCfg())

	vc := cp.Fetch(context.Background(), "vendor-1")

	assert.Equal(t, 3, vc.QueueDepth)
	assert.Equal(t, 9, vc.RecentVelocity)
}

func TestContextProvider_VelocityErrorFallsBack(t *testing.T) {
	st := &mockStore{queueDepth: 5, velocityErr: eris.New("timeout")}
	cp := NewContextProvider(st, contextCfg())

	vc := cp.Fetch(context.Background(), "vendor-1")

	assert.Equal(t, 5, vc.QueueDepth)
	assert.Equal(t, 10, vc.RecentVelocity)
}
