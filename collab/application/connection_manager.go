package application

import (
	"fmt"
	"sync"
	"time"

	"github.com/AzielCF/az-collab/collab/domain/channel"
	"github.com/AzielCF/az-collab/collab/domain/envelope"
	"github.com/AzielCF/az-collab/pkg/clock"
	pkgError "github.com/AzielCF/az-collab/pkg/error"
	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"
)

// ReconnectPolicy bounds automatic recovery after a transport fault.
type ReconnectPolicy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		MaxAttempts: 5,
	}
}

// Delay returns min(BaseDelay * 2^attempt, MaxDelay).
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	b := &backoff.Backoff{
		Min:    p.BaseDelay,
		Max:    p.MaxDelay,
		Factor: 2,
		Jitter: false,
	}
	return b.ForAttempt(float64(attempt))
}

// ConnectionStatus is a snapshot of the connection state machine.
type ConnectionStatus struct {
	Room        envelope.Room     `json:"room"`
	State       channel.ConnState `json:"state"`
	Attempt     int               `json:"attempt"`
	NextRetryAt time.Time         `json:"nextRetryAt,omitempty"`
	Exhausted   bool              `json:"exhausted"`
	LastError   string            `json:"lastError,omitempty"`
}

// ConnectionManager keeps exactly one logical channel open for a room
// subscription and hides transient failures behind reconnection.
type ConnectionManager struct {
	room    envelope.Room
	selfID  string
	channel channel.Channel
	clock   clock.Clock
	policy  ReconnectPolicy

	mu          sync.Mutex
	state       channel.ConnState
	attempt     int
	generation  uint64
	retryTimer  clock.Timer
	nextRetryAt time.Time
	exhausted   bool
	lastErr     error

	systemHandler  func(envelope.Envelope)
	observers      []func(envelope.Envelope)
	stateObservers []func(ConnectionStatus)
}

func NewConnectionManager(room envelope.Room, selfID string, ch channel.Channel, clk clock.Clock, policy ReconnectPolicy) *ConnectionManager {
	if clk == nil {
		clk = clock.Real()
	}
	if policy.MaxAttempts <= 0 || policy.BaseDelay <= 0 {
		policy = DefaultReconnectPolicy()
	}
	return &ConnectionManager{
		room:    room,
		selfID:  selfID,
		channel: ch,
		clock:   clk,
		policy:  policy,
		state:   channel.StateDisconnected,
	}
}

// OnSystem sets the consumer of user_joined, user_left, roster_snapshot and
// user_typing envelopes.
func (cm *ConnectionManager) OnSystem(fn func(envelope.Envelope)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.systemHandler = fn
}

// Subscribe registers an observer for every non-system envelope.
func (cm *ConnectionManager) Subscribe(fn func(envelope.Envelope)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.observers = append(cm.observers, fn)
}

// OnStateChange registers an observer for every state transition.
func (cm *ConnectionManager) OnStateChange(fn func(ConnectionStatus)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.stateObservers = append(cm.stateObservers, fn)
}

func (cm *ConnectionManager) Room() envelope.Room {
	return cm.room
}

func (cm *ConnectionManager) State() channel.ConnState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}

func (cm *ConnectionManager) Status() ConnectionStatus {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.statusLocked()
}

// Open starts connecting. It is a no-op while connecting, connected or
// waiting for a scheduled reconnect. After a terminal disconnect it starts
// over with a fresh retry budget.
func (cm *ConnectionManager) Open() {
	cm.mu.Lock()
	switch cm.state {
	case channel.StateConnecting, channel.StateConnected, channel.StateError:
		cm.mu.Unlock()
		return
	}
	cm.attempt = 0
	cm.exhausted = false
	cm.lastErr = nil
	gen, status := cm.beginAttemptLocked()
	observers := cm.stateObservers
	cm.mu.Unlock()

	cm.emitState(observers, status)
	cm.dial(gen)
}

// Send writes env if the channel is connected. A false return means "not
// delivered"; it is never a reason to abort.
func (cm *ConnectionManager) Send(env envelope.Envelope) bool {
	cm.mu.Lock()
	connected := cm.state == channel.StateConnected
	cm.mu.Unlock()
	if !connected {
		return false
	}

	data, err := envelope.Encode(env)
	if err != nil {
		logrus.WithError(err).Warn("[CONN] Refusing to send unencodable envelope")
		return false
	}
	if err := cm.channel.Send(data); err != nil {
		logrus.WithError(err).WithField("room", cm.room.String()).Debug("[CONN] Send failed")
		return false
	}
	return true
}

// Emit builds an envelope from the local identity and sends it.
func (cm *ConnectionManager) Emit(kind envelope.Kind, payload any) bool {
	env, err := envelope.New(kind, cm.room, cm.selfID, payload, cm.clock.Now())
	if err != nil {
		logrus.WithError(err).Warn("[CONN] Failed to build envelope")
		return false
	}
	return cm.Send(env)
}

// Close tears the subscription down: the pending reconnect is cancelled and
// the channel released. Callbacks of the closed connection are ignored.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	prev := cm.state
	if cm.retryTimer != nil {
		cm.retryTimer.Stop()
		cm.retryTimer = nil
	}
	cm.generation++
	cm.state = channel.StateDisconnected
	cm.nextRetryAt = time.Time{}
	status := cm.statusLocked()
	observers := cm.stateObservers
	cm.mu.Unlock()

	if prev == channel.StateDisconnected {
		return
	}
	if prev == channel.StateConnected {
		if env, err := envelope.New(envelope.KindLeaveRoom, cm.room, cm.selfID, nil, cm.clock.Now()); err == nil {
			if data, err := envelope.Encode(env); err == nil {
				_ = cm.channel.Send(data)
			}
		}
	}
	if err := cm.channel.Close(); err != nil {
		logrus.WithError(err).WithField("room", cm.room.String()).Debug("[CONN] Channel close returned an error")
	}
	logrus.WithField("room", cm.room.String()).Info("[CONN] Room connection closed")
	cm.emitState(observers, status)
}

func (cm *ConnectionManager) beginAttemptLocked() (uint64, ConnectionStatus) {
	cm.generation++
	cm.state = channel.StateConnecting
	cm.nextRetryAt = time.Time{}
	cm.retryTimer = nil
	return cm.generation, cm.statusLocked()
}

func (cm *ConnectionManager) dial(gen uint64) {
	logrus.WithFields(logrus.Fields{
		"room":    cm.room.String(),
		"user_id": cm.selfID,
	}).Debug("[CONN] Connecting")

	cm.channel.Open(cm.room, cm.selfID, &attemptListener{cm: cm, generation: gen})

	// Close may have run while Open was in flight.
	cm.mu.Lock()
	stale := cm.generation != gen && cm.state == channel.StateDisconnected
	cm.mu.Unlock()
	if stale {
		_ = cm.channel.Close()
	}
}

func (cm *ConnectionManager) handleOpen(gen uint64) {
	cm.mu.Lock()
	if gen != cm.generation || cm.state != channel.StateConnecting {
		cm.mu.Unlock()
		return
	}
	cm.state = channel.StateConnected
	cm.attempt = 0
	cm.exhausted = false
	cm.lastErr = nil
	status := cm.statusLocked()
	observers := cm.stateObservers
	cm.mu.Unlock()

	logrus.WithField("room", cm.room.String()).Info("[CONN] Connected")
	cm.emitState(observers, status)

	if !cm.Emit(envelope.KindJoinRoom, nil) {
		logrus.WithField("room", cm.room.String()).Warn("[CONN] Failed to send join_room")
	}
}

func (cm *ConnectionManager) handleFrame(gen uint64, data []byte) {
	cm.mu.Lock()
	if gen != cm.generation || cm.state != channel.StateConnected {
		cm.mu.Unlock()
		return
	}
	system := cm.systemHandler
	observers := cm.observers
	cm.mu.Unlock()

	env, err := envelope.Decode(data)
	if err != nil {
		logrus.WithError(err).WithField("room", cm.room.String()).Warn("[CONN] Dropping malformed envelope")
		return
	}
	if env.Room() != cm.room {
		logrus.WithFields(logrus.Fields{
			"room":  cm.room.String(),
			"other": env.Room().String(),
		}).Warn("[CONN] Dropping envelope addressed to another room")
		return
	}
	if env.Kind.IsControl() {
		return
	}

	if env.Kind.IsSystem() {
		if system != nil {
			system(env)
		}
		return
	}
	for _, fn := range observers {
		fn(env)
	}
}

func (cm *ConnectionManager) handleClose(gen uint64, cause error) {
	cm.mu.Lock()
	if gen != cm.generation || cm.state == channel.StateDisconnected {
		cm.mu.Unlock()
		return
	}

	var statuses []ConnectionStatus
	if cause == nil {
		cm.generation++
		cm.state = channel.StateDisconnected
		statuses = append(statuses, cm.statusLocked())
		observers := cm.stateObservers
		cm.mu.Unlock()

		logrus.WithField("room", cm.room.String()).Info("[CONN] Channel closed cleanly")
		cm.emitState(observers, statuses...)
		return
	}

	cm.lastErr = pkgError.TransportError(cause.Error())
	cm.state = channel.StateError
	statuses = append(statuses, cm.statusLocked())

	if cm.attempt >= cm.policy.MaxAttempts {
		cm.generation++
		cm.state = channel.StateDisconnected
		cm.exhausted = true
		cm.lastErr = pkgError.RetryExhaustedError(fmt.Sprintf("gave up reconnecting to %s after %d attempts: %v", cm.room, cm.attempt, cause))
		statuses = append(statuses, cm.statusLocked())
		observers := cm.stateObservers
		cm.mu.Unlock()

		logrus.WithError(cm.Err()).WithField("room", cm.room.String()).Error("[CONN] Disconnected, action required")
		cm.emitState(observers, statuses...)
		return
	}

	delay := cm.policy.Delay(cm.attempt)
	cm.attempt++
	cm.nextRetryAt = cm.clock.Now().Add(delay)
	retryGen := cm.generation
	cm.retryTimer = cm.clock.AfterFunc(delay, func() { cm.retry(retryGen) })
	statuses[0] = cm.statusLocked()
	observers := cm.stateObservers
	attempt := cm.attempt
	cm.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room":    cm.room.String(),
		"attempt": attempt,
		"delay":   delay.String(),
	}).WithError(cause).Warn("[CONN] Transport fault, reconnect scheduled")
	cm.emitState(observers, statuses...)
}

func (cm *ConnectionManager) retry(gen uint64) {
	cm.mu.Lock()
	if gen != cm.generation || cm.state != channel.StateError {
		cm.mu.Unlock()
		return
	}
	next, status := cm.beginAttemptLocked()
	observers := cm.stateObservers
	cm.mu.Unlock()

	cm.emitState(observers, status)
	cm.dial(next)
}

// Err returns the last fault, a RetryExhaustedError once recovery gave up.
func (cm *ConnectionManager) Err() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.lastErr
}

func (cm *ConnectionManager) statusLocked() ConnectionStatus {
	s := ConnectionStatus{
		Room:        cm.room,
		State:       cm.state,
		Attempt:     cm.attempt,
		NextRetryAt: cm.nextRetryAt,
		Exhausted:   cm.exhausted,
	}
	if cm.lastErr != nil {
		s.LastError = cm.lastErr.Error()
	}
	return s
}

func (cm *ConnectionManager) emitState(observers []func(ConnectionStatus), statuses ...ConnectionStatus) {
	for _, s := range statuses {
		for _, fn := range observers {
			fn(s)
		}
	}
}

// attemptListener binds channel callbacks to one connection attempt.
type attemptListener struct {
	cm         *ConnectionManager
	generation uint64
}

func (l *attemptListener) OnOpen() {
	l.cm.handleOpen(l.generation)
}

func (l *attemptListener) OnMessage(data []byte) {
	l.cm.handleFrame(l.generation, data)
}

func (l *attemptListener) OnClose(err error) {
	l.cm.handleClose(l.generation, err)
}
