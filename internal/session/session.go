// Package session tracks signed-in users and the batch result each one
// holds. Sessions live in memory and expire after a period of inactivity.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/sells-group/churn-cli/internal/model"
	"github.com/sells-group/churn-cli/internal/predict"
)

// CookieName is the HTTP cookie carrying the session ID.
const CookieName = "churn_session"

// Session is one signed-in user. Its result artifact is replaced only by
// a successful batch run and is never shared with other sessions.
type Session struct {
	ID        string
	User      model.UserIdentity
	CreatedAt time.Time

	mu     sync.RWMutex
	result *predict.ResultArtifact
}

// SetResult replaces the held artifact.
func (s *Session) SetResult(r *predict.ResultArtifact) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

// Result returns the held artifact, or nil.
func (s *Session) Result() *predict.ResultArtifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Manager is a bounded, expiring session table. mu serializes the
// lookup-and-refresh in Get against Destroy so a logged-out session
// cannot be re-added by a request already in flight.
type Manager struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Session]
}

// NewManager returns a manager holding at most size sessions, each idle
// for no longer than ttl.
func NewManager(size int, ttl time.Duration) *Manager {
	onEvict := func(id string, s *Session) {
		zap.L().Debug("session: evicted", zap.String("session_id", id), zap.String("username", s.User.Username))
	}
	return &Manager{cache: expirable.NewLRU[string, *Session](size, onEvict, ttl)}
}

// Create starts a session for user.
func (m *Manager) Create(user model.UserIdentity) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		User:      user,
		CreatedAt: time.Now().UTC(),
	}
	m.cache.Add(s.ID, s)
	return s
}

// Get looks up a live session and extends its lifetime.
func (m *Manager) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.cache.Get(id)
	if !ok {
		return nil, false
	}
	m.cache.Add(id, s)
	return s, true
}

// Destroy ends a session and drops its artifact.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	m.cache.Remove(id)
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.cache.Len()
}
