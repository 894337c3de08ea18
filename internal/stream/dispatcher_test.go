package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-monitor/geofence/internal/domain"
)

func TestDispatcherFanOut(t *testing.T) {
	d := NewDispatcher(4)
	a := d.Subscribe()
	b := d.Subscribe()

	src := make(chan []domain.VehiclePosition, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx, src)
		close(done)
	}()

	snap := []domain.VehiclePosition{{VehicleID: "v1"}}
	src <- snap
	close(src)

	for _, ch := range []<-chan []domain.VehiclePosition{a, b} {
		select {
		case got := <-ch:
			require.Len(t, got, 1)
			assert.Equal(t, "v1", got[0].VehicleID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the snapshot")
		}
	}

	// Source closed; all subscriber channels close too.
	<-done
	_, open := <-a
	assert.False(t, open)
	_, open = <-b
	assert.False(t, open)
}

func TestDispatcherDropsOldestForLaggingSubscriber(t *testing.T) {
	d := NewDispatcher(1)
	sub := d.Subscribe()

	// Nobody is reading: the second dispatch must displace the first
	// instead of blocking.
	d.dispatch([]domain.VehiclePosition{{VehicleID: "old"}})
	d.dispatch([]domain.VehiclePosition{{VehicleID: "new"}})

	got := <-sub
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].VehicleID)

	select {
	case extra := <-sub:
		t.Fatalf("stale snapshot retained: %v", extra)
	default:
	}
}
