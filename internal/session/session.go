// Package session holds the logged-in user of one chat and the permission guards.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"salas/internal/events"
	"salas/internal/metrics"
	"salas/internal/model"
	"salas/internal/view"
)

// Guard messages.
const (
	MsgLoginRequired = "Debe iniciar sesión"
	MsgAdminRequired = "Requiere permisos de administrador"
)

// DefaultAdminRoles are the participant types granted admin access when no flag decides.
var DefaultAdminRoles = []string{"administrativo", "docente"}

// Policy derives the admin privilege from a user record.
type Policy struct {
	adminRoles map[string]struct{}
}

// NewPolicy builds a policy from an allow-list of participant types.
// An empty list falls back to DefaultAdminRoles.
func NewPolicy(roles []string) Policy {
	if len(roles) == 0 {
		roles = DefaultAdminRoles
	}
	p := Policy{adminRoles: make(map[string]struct{}, len(roles))}
	for _, r := range roles {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			p.adminRoles[r] = struct{}{}
		}
	}
	return p
}

// ComputeIsAdmin applies the priority chain: an explicit boolean es_admin is final,
// then a truthy is_admin, then the lower-cased participant type in the allow-list.
func (p Policy) ComputeIsAdmin(u model.User) bool {
	if u.EsAdmin.Kind == model.FlagBool {
		return u.EsAdmin.Bool
	}
	if u.IsAdmin.Truthy() {
		return true
	}
	_, ok := p.adminRoles[strings.ToLower(strings.TrimSpace(u.Type))]
	return ok
}

// DeniedError is returned by a guard that stopped the operation.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	return e.Reason
}

// IsDenied checks if err is a guard rejection.
func IsDenied(err error) bool {
	var de *DeniedError
	return errors.As(err, &de)
}

// Session is the current user of one application context. It starts cleared.
type Session struct {
	mu     sync.RWMutex
	user   *model.User
	admin  bool
	policy Policy
	bus    *events.Bus
	logger zerolog.Logger
}

// New creates an empty session. bus may be nil.
func New(policy Policy, bus *events.Bus, logger zerolog.Logger) *Session {
	if policy.adminRoles == nil {
		policy = NewPolicy(nil)
	}
	return &Session{
		policy: policy,
		bus:    bus,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Save stores an enriched copy of u (es_admin set to the computed privilege),
// publishes session.changed and returns the stored copy.
func (s *Session) Save(u model.User) model.User {
	admin := s.policy.ComputeIsAdmin(u)
	u.EsAdmin = model.BoolFlag(admin)

	s.mu.Lock()
	wasLoggedIn := s.user != nil
	s.user = &u
	s.admin = admin
	s.mu.Unlock()

	if !wasLoggedIn {
		metrics.SessionOpened()
	}
	s.logger.Info().Str("ci", u.CI).Bool("admin", admin).Msg("session saved")
	s.bus.Publish(events.SessionChanged, u)
	return u
}

// Clear removes the current user and publishes session.changed.
func (s *Session) Clear() {
	s.mu.Lock()
	wasLoggedIn := s.user != nil
	s.user = nil
	s.admin = false
	s.mu.Unlock()

	if wasLoggedIn {
		metrics.SessionClosed()
		s.logger.Info().Msg("session cleared")
	}
	s.bus.Publish(events.SessionChanged, nil)
}

// User returns the current user, if any.
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// LoggedIn reports whether a user is stored.
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// IsAdmin returns the cached derived privilege.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// CI returns the national ID of the current user or "".
func (s *Session) CI() string {
	u, _ := s.User()
	return u.CI
}

// RequireSession stops the caller when nobody is logged in.
func (s *Session) RequireSession(status view.Status) error {
	if s.LoggedIn() {
		return nil
	}
	return deny(status, "session", MsgLoginRequired)
}

// RequireAdmin stops the caller unless the session is an admin one.
func (s *Session) RequireAdmin(status view.Status) error {
	if err := s.RequireSession(status); err != nil {
		return err
	}
	if s.IsAdmin() {
		return nil
	}
	return deny(status, "admin", MsgAdminRequired)
}

func deny(status view.Status, guard, reason string) error {
	metrics.IncGuardDenied(guard)
	if status != nil {
		status.SetStatus(view.StatusError, reason)
	}
	return &DeniedError{Reason: reason}
}
