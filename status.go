package eventstream

var stateLabels = map[ConnectionState]string{
	StateConnected:    "Connected",
	StateConnecting:   "Connecting...",
	StateReconnecting: "Reconnecting...",
	StateDisconnected: "Disconnected",
}

// Label returns the fixed human label for a state.
func Label(s ConnectionState) string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return "Unknown"
}

// Status is a UI-facing view of a connection. It holds no state of its own;
// take a new one whenever the connection changes.
type Status struct {
	Snapshot

	Label          string
	IsHealthy      bool
	IsConnecting   bool
	IsDisconnected bool

	conn *Connection
}

// StatusOf derives the current status of c.
func StatusOf(c *Connection) Status {
	st := DeriveStatus(c.Snapshot())
	st.conn = c
	return st
}

// DeriveStatus maps a snapshot to labels and convenience flags.
func DeriveStatus(s Snapshot) Status {
	return Status{
		Snapshot:       s,
		Label:          Label(s.State),
		IsHealthy:      s.State == StateConnected,
		IsConnecting:   s.State == StateConnecting || s.State == StateReconnecting,
		IsDisconnected: s.State == StateDisconnected,
	}
}

// ErrorMessage returns the human-readable error, "" when healthy.
func (s Status) ErrorMessage() string { return ErrorMessage(s.Err) }

// Reconnect passes through to the underlying connection.
func (s Status) Reconnect() {
	if s.conn != nil {
		s.conn.Reconnect()
	}
}

// Disconnect passes through to the underlying connection.
func (s Status) Disconnect() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
}
