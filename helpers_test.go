package eventstream

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"
)

var errBoom = errors.New("boom")

// fakeTransport records every request and answers with script.
type fakeTransport struct {
	mu       sync.Mutex
	requests []Request
	script   func(n int, ctx context.Context, req Request) (EventStream, error)
}

func newFakeTransport(script func(n int, ctx context.Context, req Request) (EventStream, error)) *fakeTransport {
	return &fakeTransport{script: script}
}

func (f *fakeTransport) Open(ctx context.Context, req Request) (EventStream, error) {
	f.mu.Lock()
	n := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.script(n, ctx, req)
}

func (f *fakeTransport) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) Request(i int) Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func alwaysFail(int, context.Context, Request) (EventStream, error) {
	return nil, errBoom
}

// blockUntilCanceled models a server that never answers.
func blockUntilCanceled(ctx context.Context) (EventStream, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// fakeStream is an EventStream fed by the test.
type fakeStream struct {
	events chan RawEvent
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan RawEvent, 16),
		errs:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (s *fakeStream) Next(ctx context.Context) (RawEvent, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return RawEvent{}, err
	case <-s.closed:
		return RawEvent{}, io.EOF
	case <-ctx.Done():
		return RawEvent{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) send(id, data string) {
	s.events <- RawEvent{ID: id, Data: []byte(data)}
}

func (s *fakeStream) drop(err error) {
	s.errs <- err
}

// recorder collects callback invocations.
type recorder struct {
	mu       sync.Mutex
	states   []ConnectionState
	errors   []string
	messages []Message
}

func (r *recorder) options(t Transport) *Options {
	return &Options{
		Transport:      t,
		OnStateChange:  r.onState,
		OnError:        r.onError,
		OnMessage:      r.onMessage,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Jitter:         func() float64 { return 0 },
	}
}

func (r *recorder) onState(s ConnectionState) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) onError(msg string) {
	r.mu.Lock()
	r.errors = append(r.errors, msg)
	r.mu.Unlock()
}

func (r *recorder) onMessage(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

func (r *recorder) States() []ConnectionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ConnectionState(nil), r.states...)
}

func (r *recorder) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.errors...)
}

func (r *recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)
