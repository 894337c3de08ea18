// Package stream owns the persistent feed connection and the
// latest-position table. It is the single writer of that table; every
// accepted mutation is republished to consumers as an immutable snapshot.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"fleet-monitor/geofence/internal/config"
	"fleet-monitor/geofence/internal/domain"
	"fleet-monitor/geofence/internal/metrics"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateClosed       State = "closed"
)

// Status is the connectivity picture exposed to the operator banner.
type Status struct {
	State             State `json:"state"`
	ReconnectAttempts int   `json:"reconnect_attempts"`
	Terminal          bool  `json:"terminal"`
	Vehicles          int   `json:"vehicles"`
}

type Client struct {
	cfg   *config.Config
	table *latestTable

	snapshots chan []domain.VehiclePosition
	fatal     chan error

	mu       sync.Mutex
	conn     *websocket.Conn
	state    State
	attempts int
	terminal bool
	closed   bool

	reconnectReq chan struct{}

	// bo is owned by the Run goroutine, which also calls runConnection.
	bo *backoff.ExponentialBackOff

	// now is swappable in tests.
	now func() time.Time
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		cfg:          cfg,
		table:        newLatestTable(cfg.StalenessWindow),
		snapshots:    make(chan []domain.VehiclePosition, cfg.SnapshotChannelSize),
		fatal:        make(chan error, 1),
		state:        StateDisconnected,
		reconnectReq: make(chan struct{}, 1),
		now:          time.Now,
	}
	c.bo = c.newBackoff()
	return c
}

// Snapshots delivers an immutable copy of the latest-position table after
// every accepted mutation. Publishing never blocks the read loop; when the
// consumer lags, older pending snapshots are discarded in favour of the
// newest one.
func (c *Client) Snapshots() <-chan []domain.VehiclePosition {
	return c.snapshots
}

// Fatal fires once when the reconnect budget is exhausted. The stream is
// permanently down until Reconnect is called.
func (c *Client) Fatal() <-chan error {
	return c.fatal
}

func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:             c.state,
		ReconnectAttempts: c.attempts,
		Terminal:          c.terminal,
		Vehicles:          c.table.size(),
	}
}

// Reconnect resets the attempt counter and forces a new connection cycle.
// It is the only way out of the terminal state.
func (c *Client) Reconnect() {
	c.mu.Lock()
	c.attempts = 0
	c.terminal = false
	c.mu.Unlock()

	select {
	case c.reconnectReq <- struct{}{}:
	default:
	}
}

// Close shuts the transport down with a normal-closure code so the
// reconnect path stays quiet.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		deadline := c.now().Add(time.Second)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"), deadline)
		conn.Close()
	}
}

// Run drives the connection state machine until ctx is cancelled or the
// retry budget runs out. After exhaustion it parks, waiting for a manual
// Reconnect.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil || c.isClosed() {
			c.setState(StateClosed)
			return
		}

		c.setState(StateConnecting)
		err := c.runConnection(ctx)

		if ctx.Err() != nil || c.isClosed() || err == nil {
			c.setState(StateClosed)
			return
		}

		c.mu.Lock()
		c.attempts++
		attempts := c.attempts
		c.mu.Unlock()
		metrics.Reconnects.Add(1)

		if attempts >= c.cfg.ReconnectMaxAttempts {
			log.Error().Err(err).Int("attempts", attempts).Msg("Reconnect attempts exhausted, stream is down")
			c.mu.Lock()
			c.terminal = true
			c.state = StateClosed
			c.mu.Unlock()

			select {
			case c.fatal <- domain.ErrRetriesExhausted:
			default:
			}

			// Park until a manual reconnect or shutdown.
			select {
			case <-ctx.Done():
				return
			case <-c.reconnectReq:
				c.bo.Reset()
				continue
			}
		}

		delay := c.bo.NextBackOff()
		log.Warn().Err(err).Int("attempt", attempts).Dur("retry_in", delay).Msg("Feed connection lost, retrying")
		c.setState(StateDisconnected)

		// A manual reconnect cancels the pending backoff wait.
		select {
		case <-ctx.Done():
			return
		case <-c.reconnectReq:
			c.bo.Reset()
		case <-time.After(delay):
		}
	}
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectBase
	bo.Multiplier = c.cfg.ReconnectMultiplier
	bo.MaxInterval = c.cfg.ReconnectMaxInterval
	bo.MaxElapsedTime = 0
	return bo
}

// runConnection dials, subscribes and consumes until the transport fails.
// A nil return means the peer closed normally or we are shutting down.
func (c *Client) runConnection(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.FeedURL, nil)
	if err != nil {
		return &domain.TransportError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil
	}
	c.conn = conn
	c.state = StateSubscribed
	c.attempts = 0
	c.mu.Unlock()

	// A successful handshake restarts the retry budget; the delay schedule
	// must restart with it, back at the base interval.
	c.bo.Reset()

	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	sub := subscribeMessage{
		Type:       "subscribe",
		Collection: c.cfg.FeedCollection,
		Query: subscribeQuery{
			Limit: c.cfg.FeedSubscribeLimit,
			Sort:  c.cfg.FeedSubscribeSort,
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return &domain.TransportError{Op: "subscribe", Err: err}
	}
	log.Info().Str("collection", c.cfg.FeedCollection).Msg("Subscribed to position feed")

	// Heartbeat writer. The read loop below is the only other user of the
	// connection, so writes stay single-threaded.
	hbCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeat(hbCtx, conn)

	// Unblock ReadMessage on shutdown.
	go func() {
		<-hbCtx.Done()
		conn.SetReadDeadline(c.now())
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Info().Msg("Feed closed normally")
				return nil
			}
			return &domain.TransportError{Op: "read", Err: err}
		}

		metrics.MessagesReceived.Add(1)
		c.handleMessage(payload)
	}
}

func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteJSON(pingMessage{Type: "ping"}); err != nil {
				// The read loop will observe the same failure; nothing to
				// do here.
				return
			}
		}
	}
}

// handleMessage classifies one inbound frame. Per-message failures are
// logged and dropped; they never abort the read loop.
func (c *Client) handleMessage(payload []byte) {
	var msg envelope
	if err := json.Unmarshal(payload, &msg); err != nil {
		metrics.RecordsRejected.Add(1)
		log.Warn().Err(err).Msg("Dropping unparseable feed message")
		return
	}

	now := c.now()

	switch msg.Type {
	case "pong":
		// Heartbeat echo, no business meaning.

	case "subscription":
		var records []positionRecord
		if err := json.Unmarshal(msg.Data, &records); err != nil {
			metrics.RecordsRejected.Add(1)
			log.Warn().Err(err).Str("event", msg.Event).Msg("Dropping malformed subscription data")
			return
		}
		switch msg.Event {
		case "init":
			c.applyInit(records, now)
		case "create", "update":
			for _, r := range records {
				c.applyRecord(r, domain.PositionSource(msg.Event), now)
			}
		default:
			log.Debug().Str("event", msg.Event).Msg("Ignoring subscription event")
		}

	case "":
		// Bare record without an envelope.
		c.applyRecord(msg.positionRecord, domain.SourceDirect, now)

	default:
		log.Debug().Str("type", msg.Type).Msg("Ignoring feed message")
	}
}

func (c *Client) applyInit(records []positionRecord, now time.Time) {
	batch := make([]domain.VehiclePosition, 0, len(records))
	for _, r := range records {
		pos, err := r.toPosition(domain.SourceInit, now)
		if err != nil {
			metrics.RecordsRejected.Add(1)
			log.Warn().Err(err).Msg("Dropping invalid init record")
			continue
		}
		batch = append(batch, pos)
	}

	accepted := c.table.rebuild(batch, now)
	log.Info().Int("records", len(records)).Int("vehicles", c.table.size()).Int("accepted", accepted).
		Msg("Rebuilt position table from init snapshot")
	c.publishSnapshot()
}

func (c *Client) applyRecord(r positionRecord, source domain.PositionSource, now time.Time) {
	pos, err := r.toPosition(source, now)
	if err != nil {
		metrics.RecordsRejected.Add(1)
		log.Warn().Err(err).Msg("Dropping invalid feed record")
		return
	}

	switch c.table.apply(pos, now) {
	case applyAccepted:
		metrics.RecordsAccepted.Add(1)
		c.publishSnapshot()
	case applyRejectedFuture:
		metrics.RecordsRejected.Add(1)
		log.Warn().Str("vehicle_id", pos.VehicleID).Time("timestamp", pos.Timestamp).
			Msg("Dropping record with future timestamp")
	case applyRejectedStale:
		metrics.RecordsStale.Add(1)
		log.Debug().Str("vehicle_id", pos.VehicleID).Time("timestamp", pos.Timestamp).
			Msg("Dropping record outside staleness window")
	case applyRejectedOld:
		// A late out-of-order arrival. Dropped silently.
		metrics.RecordsStale.Add(1)
	}
}

// publishSnapshot is fire-and-forget relative to the read loop: when the
// buffer is full the oldest pending snapshot is discarded, since only the
// newest view matters.
func (c *Client) publishSnapshot() {
	snap := c.table.snapshot()
	for {
		select {
		case c.snapshots <- snap:
			return
		default:
			select {
			case <-c.snapshots:
				metrics.SnapshotDrops.Add(1)
			default:
			}
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
