package stream

import (
	"context"

	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/metrics"
)

// Dispatcher fans one snapshot stream out to several consumers without
// ever blocking the producer: a full subscriber loses its oldest pending
// snapshot, keeping only the newest view.
type Dispatcher struct {
	bufSize int
	subs    []chan []domain.VehiclePosition
}

func NewDispatcher(bufSize int) *Dispatcher {
	return &Dispatcher{bufSize: bufSize}
}

// Subscribe registers a consumer. All subscriptions must happen before Run
// starts.
func (d *Dispatcher) Subscribe() <-chan []domain.VehiclePosition {
	ch := make(chan []domain.VehiclePosition, d.bufSize)
	d.subs = append(d.subs, ch)
	return ch
}

func (d *Dispatcher) Run(ctx context.Context, src <-chan []domain.VehiclePosition) {
	defer func() {
		for _, ch := range d.subs {
			close(ch)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-src:
			if !ok {
				return
			}
			d.dispatch(snap)
		}
	}
}

func (d *Dispatcher) dispatch(snap []domain.VehiclePosition) {
	for _, ch := range d.subs {
		for {
			select {
			case ch <- snap:
			default:
				select {
				case <-ch:
					metrics.SnapshotDrops.Add(1)
				default:
				}
				continue
			}
			break
		}
	}
}
