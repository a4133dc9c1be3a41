package session

import (
	"log/slog"
	"sync"
	"time"
)

// Manager owns the controllers of all live sessions, keyed by visitor and session id.
type Manager struct {
	mu       sync.RWMutex
	active   map[string]map[string]*Controller
	base     Options
	onCreate []func(*Controller)
	onClose  []func(*Controller)
	logger   *slog.Logger
}

// NewManager creates a manager. Every controller is built from base with the
// visitor and session ids filled in.
func NewManager(base Options) *Manager {
	if base.Logger == nil {
		base.Logger = slog.Default()
	}
	return &Manager{
		active: make(map[string]map[string]*Controller),
		base:   base,
		logger: base.Logger,
	}
}

// OnCreate registers a hook run for each new controller before it starts.
// Hooks run under the manager lock.
func (m *Manager) OnCreate(fn func(*Controller)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onCreate = append(m.onCreate, fn)
}

// OnClose registers a hook run after a controller is closed and removed. The
// same visitor and session may already map to a new controller by then.
func (m *Manager) OnClose(fn func(*Controller)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = append(m.onClose, fn)
}

// Get returns the controller for a visitor and session, or nil.
func (m *Manager) Get(visitorID, sessionID string) *Controller {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[visitorID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// GetOrCreate returns the existing controller or creates and starts a new one.
// The boolean reports whether a controller was created.
func (m *Manager) GetOrCreate(visitorID, sessionID string) (*Controller, bool) {
	if c := m.Get(visitorID, sessionID); c != nil {
		return c, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[visitorID]; !exists {
		m.active[visitorID] = make(map[string]*Controller)
	}
	if c, exists := m.active[visitorID][sessionID]; exists {
		return c, false
	}

	opts := m.base
	opts.VisitorID = visitorID
	opts.SessionID = sessionID
	c := NewController(opts)
	for _, fn := range m.onCreate {
		fn(c)
	}
	c.Start()

	m.active[visitorID][sessionID] = c
	m.reportCount()
	m.logger.Info("Widget session registered", "visitor_id", visitorID, "session_id", sessionID)
	return c, true
}

// Remove closes and forgets one session.
func (m *Manager) Remove(visitorID, sessionID string) {
	m.mu.Lock()
	c := m.detach(visitorID, sessionID)
	hooks := m.onClose
	m.mu.Unlock()

	if c == nil {
		return
	}
	c.Close()
	m.closed(c, hooks)
}

// removeIfIdle removes a session only if it is still idle since cutoff. The
// check and the detach happen under both locks, so a submit that lands after
// the idle scan keeps the session alive.
func (m *Manager) removeIfIdle(visitorID, sessionID string, cutoff time.Time) bool {
	m.mu.Lock()
	c := m.active[visitorID][sessionID]
	if c == nil || !c.retireIfIdle(cutoff) {
		m.mu.Unlock()
		return false
	}
	m.detach(visitorID, sessionID)
	hooks := m.onClose
	m.mu.Unlock()

	c.drain()
	m.closed(c, hooks)
	return true
}

func (m *Manager) closed(c *Controller, hooks []func(*Controller)) {
	for _, fn := range hooks {
		fn(c)
	}
	m.logger.Info("Widget session unregistered", "visitor_id", c.VisitorID(), "session_id", c.SessionID())
}

// CloseVisitor closes every session of a visitor.
func (m *Manager) CloseVisitor(visitorID string) {
	m.mu.RLock()
	var ids []string
	for sid := range m.active[visitorID] {
		ids = append(ids, sid)
	}
	m.mu.RUnlock()

	for _, sid := range ids {
		m.Remove(visitorID, sid)
	}
}

// CloseAll closes every session.
func (m *Manager) CloseAll() {
	for _, key := range m.keys() {
		m.Remove(key.visitorID, key.sessionID)
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked()
}

type sessionKey struct {
	visitorID string
	sessionID string
}

// idleSince lists sessions with no activity since cutoff and no outstanding
// exchange. The result is a snapshot; removeIfIdle checks again.
func (m *Manager) idleSince(cutoff time.Time) []sessionKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []sessionKey
	for vid, sessions := range m.active {
		for sid, c := range sessions {
			if c.LastActive().Before(cutoff) && !c.Busy() {
				out = append(out, sessionKey{visitorID: vid, sessionID: sid})
			}
		}
	}
	return out
}

func (m *Manager) keys() []sessionKey {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []sessionKey
	for vid, sessions := range m.active {
		for sid := range sessions {
			out = append(out, sessionKey{visitorID: vid, sessionID: sid})
		}
	}
	return out
}

// detach must be called with mu held.
func (m *Manager) detach(visitorID, sessionID string) *Controller {
	sessions, ok := m.active[visitorID]
	if !ok {
		return nil
	}
	c, exists := sessions[sessionID]
	if !exists {
		return nil
	}
	delete(sessions, sessionID)
	if len(sessions) == 0 {
		delete(m.active, visitorID)
	}
	m.reportCount()
	return c
}

func (m *Manager) countLocked() int {
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

func (m *Manager) reportCount() {
	if m.base.Recorder != nil {
		m.base.Recorder.SessionsActive(m.countLocked())
	}
}
