package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	MessagesReceived   atomic.Int64
	RecordsRejected    atomic.Int64
	RecordsStale       atomic.Int64
	RecordsAccepted    atomic.Int64
	SnapshotDrops      atomic.Int64
	Reconnects         atomic.Int64
	GeofencesSkipped   atomic.Int64
	ViolationsDetected atomic.Int64
	NotificationsShown atomic.Int64
	Reshows            atomic.Int64
	GatewayFailures    atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "geofence_messages_received_total %d\n", MessagesReceived.Load())
	fmt.Fprintf(w, "geofence_records_rejected_total %d\n", RecordsRejected.Load())
	fmt.Fprintf(w, "geofence_records_stale_total %d\n", RecordsStale.Load())
	fmt.Fprintf(w, "geofence_records_accepted_total %d\n", RecordsAccepted.Load())
	fmt.Fprintf(w, "geofence_snapshot_drops_total %d\n", SnapshotDrops.Load())
	fmt.Fprintf(w, "geofence_reconnects_total %d\n", Reconnects.Load())
	fmt.Fprintf(w, "geofence_geofences_skipped_total %d\n", GeofencesSkipped.Load())
	fmt.Fprintf(w, "geofence_violations_detected_total %d\n", ViolationsDetected.Load())
	fmt.Fprintf(w, "geofence_notifications_shown_total %d\n", NotificationsShown.Load())
	fmt.Fprintf(w, "geofence_notification_reshows_total %d\n", Reshows.Load())
	fmt.Fprintf(w, "geofence_gateway_failures_total %d\n", GatewayFailures.Load())
}
