// Package notify owns the notification lifecycle: the single visible
// alert, per-violation dedup, auto-expiry, conditional reshow and the
// manual-dismiss suppression set. All mutation happens on the Run
// goroutine; external calls post closures into its mailbox.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/metrics"
)

// Gateway persists violation records. Two logically separate records are
// written per new violation; each failure is tolerated independently.
type Gateway interface {
	SaveGeofenceEvent(ctx context.Context, event domain.GeofenceEvent) error
	SaveAlert(ctx context.Context, notification domain.Notification) error
}

// AlertSink fans a new violation out to the live dashboard channel.
// Optional; a nil sink disables it.
type AlertSink interface {
	PublishAlert(ctx context.Context, notification domain.Notification) error
}

type Manager struct {
	cfg     *config.Config
	gateway Gateway
	sink    AlertSink

	commands chan func()

	// Owned by the Run goroutine.
	active        map[domain.ViolationKey]domain.GeofenceEvent
	dismissed     map[domain.ViolationKey]struct{}
	reshowTimers  map[domain.ViolationKey]*time.Timer
	expiryTimer   *time.Timer
	visibleLocked domain.Notification
	hasVisible    bool

	// mu guards the read-side copy of the visible notification.
	mu      sync.RWMutex
	updates chan []domain.Notification

	wg sync.WaitGroup
}

func NewManager(cfg *config.Config, gateway Gateway, sink AlertSink) *Manager {
	return &Manager{
		cfg:          cfg,
		gateway:      gateway,
		sink:         sink,
		commands:     make(chan func(), 256),
		active:       make(map[domain.ViolationKey]domain.GeofenceEvent),
		dismissed:    make(map[domain.ViolationKey]struct{}),
		reshowTimers: make(map[domain.ViolationKey]*time.Timer),
		updates:      make(chan []domain.Notification, 16),
	}
}

// Run consumes geofence events until the channel closes or ctx is
// cancelled. It is the single writer of all lifecycle state.
func (m *Manager) Run(ctx context.Context, events <-chan domain.GeofenceEvent) {
	defer m.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.commands:
			cmd()
		case ev, ok := <-events:
			if !ok {
				return
			}
			m.handleEvent(ev)
		}
	}
}

// Visible returns the current visible notification set: zero or one entry.
func (m *Manager) Visible() []domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasVisible {
		return nil
	}
	return []domain.Notification{m.visibleLocked}
}

// Updates publishes the visible set after every change. Non-blocking for
// the lifecycle loop; a lagging consumer sees only the newest state.
func (m *Manager) Updates() <-chan []domain.Notification {
	return m.updates
}

// Dismiss suppresses the violation behind the visible notification until
// its containment status changes. Asynchronous; the suppression takes
// effect on the lifecycle goroutine.
func (m *Manager) Dismiss(notificationID string) {
	m.post(func() { m.dismiss(notificationID) })
}

func (m *Manager) post(cmd func()) {
	select {
	case m.commands <- cmd:
	default:
		log.Error().Msg("Notification command mailbox full, dropping command")
	}
}

func (m *Manager) handleEvent(ev domain.GeofenceEvent) {
	switch ev.Type {
	case domain.EventViolationEnter, domain.EventViolationExit:
		m.handleViolation(ev)
	case domain.EventExit:
		// Leaving a FORBIDDEN area resolves its entry violation and
		// re-arms detection for that key.
		m.clearKey(domain.ViolationKey{
			VehicleID:  ev.VehicleID,
			GeofenceID: ev.GeofenceID,
			EventType:  domain.EventViolationEnter,
		})
	case domain.EventEnter:
		// Returning into a STAY_IN area resolves its exit violation.
		m.clearKey(domain.ViolationKey{
			VehicleID:  ev.VehicleID,
			GeofenceID: ev.GeofenceID,
			EventType:  domain.EventViolationExit,
		})
	}
}

func (m *Manager) handleViolation(ev domain.GeofenceEvent) {
	key := ev.Key()

	if _, dismissed := m.dismissed[key]; dismissed {
		log.Debug().Str("key", key.String()).Msg("Violation suppressed by manual dismissal")
		return
	}

	// A violation that is already active is a re-detection, not a new
	// incident: it reshows without persisting.
	_, alreadyActive := m.active[key]
	m.active[key] = ev

	m.show(ev, alreadyActive)

	if alreadyActive {
		return
	}

	// Fan-out and persistence run off the lifecycle goroutine, bounded by
	// the gateway timeout, so a slow collaborator cannot stall the
	// notification path.
	notification := m.buildNotification(ev, false)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persist(ev, notification)
	}()
}

func (m *Manager) show(ev domain.GeofenceEvent, isReshow bool) {
	key := ev.Key()
	notification := m.buildNotification(ev, isReshow)

	// The visible set holds at most one entry: evict the previous
	// notification and cancel its timers before installing the new one.
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
	if t, ok := m.reshowTimers[key]; ok {
		t.Stop()
		delete(m.reshowTimers, key)
	}

	m.setVisible(notification, true)
	metrics.NotificationsShown.Add(1)
	if isReshow {
		metrics.Reshows.Add(1)
	}

	if m.cfg.AutoExpiry > 0 {
		id := notification.ID
		m.expiryTimer = time.AfterFunc(m.cfg.AutoExpiry, func() {
			m.post(func() { m.expire(id, key) })
		})
	}

	log.Info().
		Str("key", key.String()).
		Str("vehicle", notification.VehicleName).
		Str("geofence", notification.GeofenceName).
		Bool("reshow", isReshow).
		Msg("Violation notification visible")
}

func (m *Manager) buildNotification(ev domain.GeofenceEvent, isReshow bool) domain.Notification {
	return domain.Notification{
		ID:           uuid.NewString(),
		VehicleID:    ev.VehicleID,
		VehicleName:  ev.VehicleName,
		GeofenceID:   ev.GeofenceID,
		GeofenceName: ev.GeofenceName,
		EventType:    ev.Type,
		Timestamp:    ev.Timestamp,
		Location:     domain.FormatLocation(ev.Position.Latitude, ev.Position.Longitude),
		AlertMessage: domain.AlertMessage(ev.Type, ev.VehicleName, ev.GeofenceName, ev.RuleType),
		IsNew:        !isReshow,
		IsReshow:     isReshow,
	}
}

// expire removes the notification after its display window. While the
// violation stays active and undismissed, one reshow is scheduled per
// expiry cycle.
func (m *Manager) expire(notificationID string, key domain.ViolationKey) {
	m.mu.RLock()
	current := m.hasVisible && m.visibleLocked.ID == notificationID
	m.mu.RUnlock()
	if !current {
		return
	}

	m.setVisible(domain.Notification{}, false)
	m.expiryTimer = nil

	ev, stillActive := m.active[key]
	if _, dismissed := m.dismissed[key]; !stillActive || dismissed {
		return
	}

	if t, ok := m.reshowTimers[key]; ok {
		t.Stop()
	}
	m.reshowTimers[key] = time.AfterFunc(m.cfg.ReshowDelay, func() {
		m.post(func() { m.reshow(key, ev) })
	})
}

func (m *Manager) reshow(key domain.ViolationKey, ev domain.GeofenceEvent) {
	delete(m.reshowTimers, key)

	if _, stillActive := m.active[key]; !stillActive {
		return
	}
	if _, dismissed := m.dismissed[key]; dismissed {
		return
	}

	// Reshow never touches the persistence gateway.
	m.show(ev, true)
}

func (m *Manager) dismiss(notificationID string) {
	m.mu.RLock()
	match := m.hasVisible && m.visibleLocked.ID == notificationID
	key := m.visibleLocked.Key()
	m.mu.RUnlock()
	if !match {
		return
	}

	m.dismissed[key] = struct{}{}
	delete(m.active, key)

	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
	if t, ok := m.reshowTimers[key]; ok {
		t.Stop()
		delete(m.reshowTimers, key)
	}

	m.setVisible(domain.Notification{}, false)
	log.Info().Str("key", key.String()).Msg("Notification dismissed, violation suppressed")
}

// clearKey resolves a violation: the containment status moved away from
// the violating state, so the active entry goes and a manual dismissal no
// longer applies.
func (m *Manager) clearKey(key domain.ViolationKey) {
	_, wasActive := m.active[key]
	_, wasDismissed := m.dismissed[key]
	if !wasActive && !wasDismissed {
		return
	}

	delete(m.active, key)
	delete(m.dismissed, key)
	if t, ok := m.reshowTimers[key]; ok {
		t.Stop()
		delete(m.reshowTimers, key)
	}
	log.Info().Str("key", key.String()).Msg("Violation cleared")
}

func (m *Manager) persist(ev domain.GeofenceEvent, notification domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.GatewayTimeout)
	defer cancel()

	if m.sink != nil {
		if err := m.sink.PublishAlert(ctx, notification); err != nil {
			log.Warn().Err(err).Str("key", ev.Key().String()).Msg("Failed to publish alert to live channel")
		}
	}

	// Both records are written independently; a partial failure keeps the
	// in-memory notification.
	if err := m.gateway.SaveGeofenceEvent(ctx, ev); err != nil {
		metrics.GatewayFailures.Add(1)
		log.Error().Err(err).Str("key", ev.Key().String()).Msg("Failed to persist geofence event")
	}
	if err := m.gateway.SaveAlert(ctx, notification); err != nil {
		metrics.GatewayFailures.Add(1)
		log.Error().Err(err).Str("key", ev.Key().String()).Msg("Failed to persist alert")
	}
}

func (m *Manager) setVisible(n domain.Notification, has bool) {
	m.mu.Lock()
	m.visibleLocked = n
	m.hasVisible = has
	m.mu.Unlock()

	var visible []domain.Notification
	if has {
		visible = []domain.Notification{n}
	}
	for {
		select {
		case m.updates <- visible:
			return
		default:
			select {
			case <-m.updates:
			default:
			}
		}
	}
}

func (m *Manager) stopTimers() {
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
	}
	for _, t := range m.reshowTimers {
		t.Stop()
	}
	m.wg.Wait()
}
