package eventstream

import (
	"sync"
	"time"
)

// Entry is one registry row.
type Entry struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Connected   bool      `json:"isConnected"`
	Err         error     `json:"-"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Summary is the aggregate view published to subscribers.
type Summary struct {
	State      ConnectionState `json:"state"`
	Label      string          `json:"label"`
	Connected  int             `json:"connectedCount"`
	Total      int             `json:"totalCount"`
	HasErrors  bool            `json:"hasErrors"`
	FirstError string          `json:"firstError,omitempty"`
	Streams    []EntryView     `json:"streams,omitempty"`
}

// EntryView is the JSON form of an Entry.
type EntryView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Connected   bool      `json:"isConnected"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Registry tracks the health of every open stream in the process and
// aggregates it for a single health indicator. Rows are keyed by stream id;
// each id must be owned by one connection at a time.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
	now     func() time.Time

	subMu  sync.Mutex
	subs   map[int]func(Summary)
	nextID int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
		subs:    make(map[int]func(Summary)),
	}
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// ResetDefaultRegistry replaces the process-wide registry with an empty one.
func ResetDefaultRegistry() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry()
}

// Update upserts the row for id with the current time. The last write wins.
func (r *Registry) Update(id, name string, connected bool, err error) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &Entry{ID: id}
		r.entries[id] = e
		r.order = append(r.order, id)
	}
	e.Name = name
	e.Connected = connected
	e.Err = err
	e.LastUpdated = r.now()
	r.mu.Unlock()

	r.notify()
}

// Remove deletes the row for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	if _, ok := r.entries[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.notify()
}

// Get returns a copy of the row for id.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Entries returns copies of all rows in insertion order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id])
	}
	return out
}

// OverallState aggregates the rows:
//   - no rows: disconnected
//   - all connected: connected
//   - some connected: reconnecting
//   - none connected, any error: disconnected
//   - none connected, no errors: connecting
func (r *Registry) OverallState() ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.overallLocked()
}

func (r *Registry) overallLocked() ConnectionState {
	total := len(r.entries)
	if total == 0 {
		return StateDisconnected
	}
	connected, errored := 0, 0
	for _, e := range r.entries {
		if e.Connected {
			connected++
		} else if e.Err != nil {
			errored++
		}
	}
	switch {
	case connected == total:
		return StateConnected
	case connected > 0:
		return StateReconnecting
	case errored > 0:
		return StateDisconnected
	default:
		return StateConnecting
	}
}

// ConnectedCount returns the number of connected rows.
func (r *Registry) ConnectedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.entries {
		if e.Connected {
			n++
		}
	}
	return n
}

// TotalCount returns the number of rows.
func (r *Registry) TotalCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// HasErrors reports whether any row carries an error.
func (r *Registry) HasErrors() bool {
	return r.FirstError() != nil
}

// FirstError returns the error of the earliest inserted row that has one.
func (r *Registry) FirstError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		if err := r.entries[id].Err; err != nil {
			return err
		}
	}
	return nil
}

// Summary returns the aggregate view.
func (r *Registry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := r.overallLocked()
	s := Summary{
		State:   state,
		Label:   Label(state),
		Total:   len(r.entries),
		Streams: make([]EntryView, 0, len(r.order)),
	}
	for _, id := range r.order {
		e := r.entries[id]
		if e.Connected {
			s.Connected++
		}
		v := EntryView{ID: e.ID, Name: e.Name, Connected: e.Connected, LastUpdated: e.LastUpdated}
		if e.Err != nil {
			v.Error = ErrorMessage(e.Err)
			if !s.HasErrors {
				s.HasErrors = true
				s.FirstError = v.Error
			}
		}
		s.Streams = append(s.Streams, v)
	}
	return s
}

// Subscribe calls fn with a fresh Summary after every mutation. fn runs on the
// mutating goroutine, which is usually a connection's event loop. It must not
// call Update or Remove, nor Disconnect, Reconnect, SetEnabled or Close on any
// Connection reporting to r: those wait for the loop fn is blocking. Hand such
// work to another goroutine.
func (r *Registry) Subscribe(fn func(Summary)) (cancel func()) {
	r.subMu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = fn
	r.subMu.Unlock()

	return func() {
		r.subMu.Lock()
		delete(r.subs, id)
		r.subMu.Unlock()
	}
}

func (r *Registry) notify() {
	r.subMu.Lock()
	if len(r.subs) == 0 {
		r.subMu.Unlock()
		return
	}
	subs := make([]func(Summary), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	s := r.Summary()
	for _, fn := range subs {
		fn(s)
	}
}
