package eventstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallnest/chanx"
	"go.uber.org/zap"
)

// Snapshot is a point-in-time copy of a connection's observable fields.
type Snapshot struct {
	State             ConnectionState
	Err               error
	LastEventID       string
	ReconnectAttempts int
}

// IsConnected reports whether the snapshot was taken while connected.
func (s Snapshot) IsConnected() bool { return s.State == StateConnected }

type loopKind int

const (
	evOpened loopKind = iota
	evOpenFailed
	evMessage
	evDropped
	evTimer
	cmdStart
	cmdDisconnect
	cmdReconnect
	cmdSetEnabled
	cmdClose
)

type loopEvent struct {
	kind    loopKind
	gen     uint64
	stream  EventStream
	raw     RawEvent
	err     error
	enabled bool
	done    chan struct{}
}

// Connection owns one logical subscription to an endpoint and keeps it
// alive across transport failures.
//
// All state is owned by a single loop goroutine; transport results, messages
// and timer expiries reach it through an unbounded queue tagged with the
// attempt generation, and anything tagged with an older generation is
// dropped. Callbacks run in order on a separate goroutine, so they may call
// Reconnect or Disconnect.
type Connection struct {
	endpoint string
	opts     *Options
	policy   BackoffPolicy
	logger   *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	events    *chanx.UnboundedChan[loopEvent]
	callbacks *chanx.UnboundedChan[func()]
	loopDone  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu   sync.RWMutex
	snap Snapshot

	// Loop-owned.
	state         ConnectionState
	err           error
	lastEventID   string
	attempts      int
	enabled       bool
	intentional   bool
	reported      bool
	gen           uint64
	stream        EventStream
	attemptCancel context.CancelFunc
	timer         *time.Timer
}

// Open creates a connection for endpoint. An empty endpoint or enabled=false
// yields an inert handle that stays disconnected until SetEnabled(true).
// Open returns after the first attempt has been started, so State reports
// connecting for an enabled stream.
func Open(endpoint string, enabled bool, opts *Options) *Connection {
	o := opts.clone()
	o.defaults(endpoint)

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		endpoint: endpoint,
		opts:     o,
		policy:   o.Policy(),
		logger:   o.Logger.With(zap.String("endpoint", endpoint)),
		ctx:      ctx,
		cancel:   cancel,
		events:   chanx.NewUnboundedChan[loopEvent](ctx, 16),
		loopDone: make(chan struct{}),
		state:    StateDisconnected,
		snap:     Snapshot{State: StateDisconnected},
	}

	cbCtx, cbCancel := context.WithCancel(context.Background())
	c.callbacks = chanx.NewUnboundedChan[func()](cbCtx, 16)
	go func() {
		defer cbCancel()
		for fn := range c.callbacks.Out {
			if fn == nil {
				return
			}
			fn()
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()

	c.command(loopEvent{kind: cmdStart, enabled: enabled})
	return c
}

// Endpoint returns the endpoint the connection subscribes to.
func (c *Connection) Endpoint() string { return c.endpoint }

// Snapshot returns the current observable fields.
func (c *Connection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// State returns the current connection state.
func (c *Connection) State() ConnectionState { return c.Snapshot().State }

// IsConnected reports whether the stream is currently open.
func (c *Connection) IsConnected() bool { return c.Snapshot().IsConnected() }

// Err returns the current error, nil when healthy. Failures are a *StreamError.
func (c *Connection) Err() error { return c.Snapshot().Err }

// LastEventID returns the id of the last delivered message carrying one.
func (c *Connection) LastEventID() string { return c.Snapshot().LastEventID }

// ReconnectAttempts returns the number of retries since the last healthy message.
func (c *Connection) ReconnectAttempts() int { return c.Snapshot().ReconnectAttempts }

// Disconnect closes the stream on purpose. On return no timer is pending and
// no automatic reconnect will happen until Reconnect is called.
func (c *Connection) Disconnect() {
	c.command(loopEvent{kind: cmdDisconnect})
}

// Reconnect resets the attempt counter, clears the error and starts a fresh
// attempt, whatever the current state.
func (c *Connection) Reconnect() {
	c.command(loopEvent{kind: cmdReconnect})
}

// SetEnabled enables or disables the subscription. Disabling is an
// intentional close and removes the registry row.
func (c *Connection) SetEnabled(enabled bool) {
	c.command(loopEvent{kind: cmdSetEnabled, enabled: enabled})
}

// Close disables the subscription and stops the connection's goroutines.
// Callbacks already queued still run; Close does not wait for them.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.command(loopEvent{kind: cmdClose})
		c.cancel()
		c.wg.Wait()
		c.callbacks.In <- nil
	})
}

func (c *Connection) post(ev loopEvent) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.events.In <- ev:
		return true
	case <-c.ctx.Done():
		return false
	}
}

// command posts ev and waits until the loop handled it.
func (c *Connection) command(ev loopEvent) {
	ev.done = make(chan struct{})
	if !c.post(ev) {
		return
	}
	select {
	case <-ev.done:
	case <-c.loopDone:
	}
}

func (c *Connection) run() {
	defer close(c.loopDone)
	for {
		select {
		case <-c.ctx.Done():
			c.halt()
			return
		case ev, ok := <-c.events.Out:
			if !ok {
				c.halt()
				return
			}
			stop := c.handle(ev)
			if ev.done != nil {
				close(ev.done)
			}
			if stop {
				return
			}
		}
	}
}

func (c *Connection) handle(ev loopEvent) (stop bool) {
	switch ev.kind {
	case cmdStart:
		c.enabled = ev.enabled
		c.start()
	case cmdSetEnabled:
		if ev.enabled == c.enabled {
			return false
		}
		c.enabled = ev.enabled
		if ev.enabled {
			c.start()
		} else {
			c.disable()
		}
	case cmdDisconnect:
		c.halt()
		c.apply(Event{Kind: EventDisconnect})
	case cmdReconnect:
		c.reconnect()
	case cmdClose:
		c.disable()
		return true
	case evOpened:
		c.opened(ev)
	case evOpenFailed, evDropped:
		if ev.gen != c.gen || c.intentional {
			return false
		}
		c.failed(ev.err)
	case evMessage:
		if ev.gen != c.gen || c.state != StateConnected {
			return false
		}
		c.deliver(ev.raw)
	case evTimer:
		if ev.gen != c.gen || c.intentional || c.state != StateReconnecting {
			return false
		}
		c.timer = nil
		c.logger.Debug("retrying stream", zap.Int("attempt", c.attempts))
		c.attempt()
	}
	return false
}

func (c *Connection) inert() bool {
	return !c.enabled || c.endpoint == ""
}

func (c *Connection) start() {
	if c.inert() || c.state != StateDisconnected {
		return
	}
	c.intentional = false
	c.apply(Event{Kind: EventStart})
	c.attempt()
}

func (c *Connection) reconnect() {
	c.halt()
	c.attempts = 0
	c.err = nil
	c.reported = false
	if c.inert() {
		c.publish()
		return
	}
	c.intentional = false
	c.apply(Event{Kind: EventReconnect})
	c.attempt()
}

func (c *Connection) disable() {
	c.halt()
	c.apply(Event{Kind: EventDisconnect})
	if c.opts.Registry != nil {
		c.opts.Registry.Remove(c.opts.StreamID)
	}
}

// halt marks the close as intentional, cancels the pending timer and closes
// the live transport. Bumping the generation invalidates anything in flight.
func (c *Connection) halt() {
	c.intentional = true
	c.gen++
	c.stopTimer()
	c.closeStream()
}

func (c *Connection) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Connection) closeStream() {
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Debug("closing stream", zap.Error(err))
		}
		c.stream = nil
	}
}

// attempt opens the transport for the current generation. The previous
// transport is always closed first.
func (c *Connection) attempt() {
	c.closeStream()
	c.gen++
	gen := c.gen

	u, err := ResolveEndpoint(c.opts.BaseURL, c.endpoint, c.lastEventID)
	if err != nil {
		c.constructionFailed(err)
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.attemptCancel = cancel
	req := Request{
		URL:         u,
		LastEventID: c.lastEventID,
		Header:      c.opts.header(),
		HTTPClient:  c.opts.HTTPClient,
	}
	c.logger.Debug("opening stream", zap.String("url", u.String()), zap.String("state", c.state.String()))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		stream, err := c.opts.Transport.Open(ctx, req)
		if err != nil {
			c.post(loopEvent{kind: evOpenFailed, gen: gen, err: err})
			return
		}
		if !c.post(loopEvent{kind: evOpened, gen: gen, stream: stream}) {
			stream.Close()
			return
		}
		c.read(ctx, gen, stream)
	}()
}

func (c *Connection) read(ctx context.Context, gen uint64, stream EventStream) {
	for {
		raw, err := stream.Next(ctx)
		if err != nil {
			c.post(loopEvent{kind: evDropped, gen: gen, err: err})
			return
		}
		if !c.post(loopEvent{kind: evMessage, gen: gen, raw: raw}) {
			return
		}
	}
}

func (c *Connection) opened(ev loopEvent) {
	if ev.gen != c.gen || c.intentional {
		ev.stream.Close()
		return
	}
	c.stream = ev.stream
	c.logger.Debug("stream opened")
	c.apply(Event{Kind: EventOpened})
}

func (c *Connection) deliver(raw RawEvent) {
	msg, err := parseMessage(raw)
	if err != nil {
		c.logger.Warn("delivering unparsed payload", zap.String("id", raw.ID), zap.Error(err))
	}
	if msg.ID != "" {
		c.lastEventID = msg.ID
	}
	c.attempts = 0
	c.err = nil
	c.reported = false
	c.publish()
	if fn := c.opts.OnMessage; fn != nil {
		c.dispatch(func() { fn(msg) })
	}
}

func (c *Connection) failed(cause error) {
	if errors.Is(cause, ErrInvalidEndpoint) {
		c.constructionFailed(cause)
		return
	}
	c.closeStream()

	if c.policy.Unlimited() || c.attempts < c.policy.MaxAttempts {
		delay := Delay(c.attempts, c.policy, c.opts.Jitter)
		c.attempts++
		c.logger.Warn("stream failed, scheduling reconnect",
			zap.Error(cause), zap.Int("attempt", c.attempts), zap.Duration("delay", delay))
		c.report(newStreamError(KindTransport, msgConnectionLost, cause))
		c.apply(Event{Kind: EventFailed, Retry: true})

		gen := c.gen
		c.timer = time.AfterFunc(delay, func() {
			c.post(loopEvent{kind: evTimer, gen: gen})
		})
		return
	}

	c.logger.Warn("stream failed, attempts exhausted", zap.Error(cause), zap.Int("attempts", c.attempts))
	c.report(newStreamError(KindExhausted, msgExhausted, cause))
	c.apply(Event{Kind: EventFailed, Retry: false})
}

// constructionFailed settles at disconnected without consuming an attempt.
func (c *Connection) constructionFailed(cause error) {
	c.closeStream()
	c.logger.Warn("cannot create stream", zap.Error(cause))
	c.report(newStreamError(KindConstruction, msgConstruction, cause))
	c.apply(Event{Kind: EventFailed, Retry: false})
}

// report records err and fires OnError once per failure episode.
func (c *Connection) report(err *StreamError) {
	c.err = err
	if c.reported {
		return
	}
	c.reported = true
	if fn := c.opts.OnError; fn != nil {
		msg := err.Message
		c.dispatch(func() { fn(msg) })
	}
}

// apply runs ev through the state machine and publishes the result.
func (c *Connection) apply(ev Event) {
	next, err := Transition(c.state, ev)
	if err != nil {
		c.logger.Debug("ignoring event", zap.Error(err))
		c.publish()
		return
	}
	if next != c.state {
		c.logger.Debug("state change", zap.String("from", c.state.String()), zap.String("to", next.String()))
		c.state = next
		if fn := c.opts.OnStateChange; fn != nil {
			c.dispatch(func() { fn(next) })
		}
	}
	c.publish()
}

func (c *Connection) publish() {
	snap := Snapshot{
		State:             c.state,
		Err:               c.err,
		LastEventID:       c.lastEventID,
		ReconnectAttempts: c.attempts,
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	if c.opts.Registry != nil && !c.inert() {
		c.opts.Registry.Update(c.opts.StreamID, c.opts.StreamName, snap.IsConnected(), snap.Err)
	}
}

func (c *Connection) dispatch(fn func()) {
	c.callbacks.In <- fn
}
