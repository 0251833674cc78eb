// Package notify keeps the transient alerts shown at the top of the dashboard.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the severity of a notification
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// Default display durations per kind
const (
	SuccessDuration = 3000 * time.Millisecond
	ErrorDuration   = 5000 * time.Millisecond
	WarningDuration = 4000 * time.Millisecond
	InfoDuration    = 3000 * time.Millisecond
)

// Icon returns the icon name rendered next to a notification of this kind
func (k Kind) Icon() string {
	switch k {
	case Success:
		return "check-circle"
	case Error:
		return "alert-circle"
	case Warning:
		return "alert-triangle"
	default:
		return "info"
	}
}

// AlertClass returns the CSS alert class for the kind
func (k Kind) AlertClass() string {
	if k == Error {
		return "alert-danger"
	}
	return "alert-" + string(k)
}

// Valid reports whether k is one of the known kinds
func (k Kind) Valid() bool {
	switch k {
	case Success, Error, Warning, Info:
		return true
	}
	return false
}

// Notification is one visible alert
type Notification struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Message   string        `json:"message"`
	Icon      string        `json:"icon"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

type entry struct {
	Notification
	timer *time.Timer
}

// Manager holds at most one active notification per kind
type Manager struct {
	mu     sync.Mutex
	active map[Kind]*entry
	now    func() time.Time
}

// New creates an empty notification manager
func New() *Manager {
	return &Manager{
		active: make(map[Kind]*entry),
		now:    time.Now,
	}
}

// Notify shows a notification, replacing any active one of the same kind.
// It is removed automatically after duration; a non-positive duration uses the kind default.
func (m *Manager) Notify(kind Kind, message string, duration time.Duration) Notification {
	if !kind.Valid() {
		kind = Info
	}
	if duration <= 0 {
		duration = DefaultDuration(kind)
	}

	n := Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Message:   message,
		Icon:      kind.Icon(),
		CreatedAt: m.now(),
		Duration:  duration,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.active[kind]; ok {
		old.timer.Stop()
	}

	id := n.ID
	m.active[kind] = &entry{
		Notification: n,
		timer:        time.AfterFunc(duration, func() { m.Remove(id) }),
	}
	return n
}

// Success shows a success notification for the default duration
func (m *Manager) Success(message string) Notification {
	return m.Notify(Success, message, SuccessDuration)
}

// Error shows an error notification for the default duration
func (m *Manager) Error(message string) Notification {
	return m.Notify(Error, message, ErrorDuration)
}

// Warning shows a warning notification for the default duration
func (m *Manager) Warning(message string) Notification {
	return m.Notify(Warning, message, WarningDuration)
}

// Info shows an informational notification for the default duration
func (m *Manager) Info(message string) Notification {
	return m.Notify(Info, message, InfoDuration)
}

// Remove dismisses the notification with the given id. Removing an id that is
// no longer active is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, e := range m.active {
		if e.ID == id {
			e.timer.Stop()
			delete(m.active, kind)
			return
		}
	}
}

// Clear dismisses every active notification
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for kind, e := range m.active {
		e.timer.Stop()
		delete(m.active, kind)
	}
}

// Active returns the visible notifications, oldest first
func (m *Manager) Active() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Notification, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e.Notification)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Get returns the active notification of a kind
func (m *Manager) Get(kind Kind) (Notification, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.active[kind]
	if !ok {
		return Notification{}, false
	}
	return e.Notification, true
}

// DefaultDuration returns how long a notification of kind stays visible by default
func DefaultDuration(kind Kind) time.Duration {
	switch kind {
	case Error:
		return ErrorDuration
	case Warning:
		return WarningDuration
	case Success:
		return SuccessDuration
	default:
		return InfoDuration
	}
}
