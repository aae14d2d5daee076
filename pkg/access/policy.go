package access

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/orneryd/nornicrdf/pkg/rdf"
)

// Errors for access control operations.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrPrincipalExists    = errors.New("principal already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPasswordTooShort   = errors.New("password does not meet minimum length requirement")
	ErrInvalidRole        = errors.New("invalid role")
)

// MinPasswordLength is the shortest password AddPrincipal accepts.
const MinPasswordLength = 8

// Role represents a principal role with associated permissions.
type Role string

const (
	RoleAdmin  Role = "admin"  // read/write on every graph
	RoleEditor Role = "editor" // read/write
	RoleViewer Role = "viewer" // read only
	RoleNone   Role = "none"   // no access
)

// Permission represents an action on a graph.
type Permission string

const (
	PermRead  Permission = "read"
	PermWrite Permission = "write"
)

// RolePermissions maps roles to their allowed permissions.
var RolePermissions = map[Role][]Permission{
	RoleAdmin:  {PermRead, PermWrite},
	RoleEditor: {PermRead, PermWrite},
	RoleViewer: {PermRead},
	RoleNone:   {},
}

// ValidRole reports whether r is one of the predefined roles.
func ValidRole(r Role) bool {
	_, ok := RolePermissions[r]
	return ok
}

// DeniedError describes a failed permission check.
type DeniedError struct {
	Principal  string
	Graph      rdf.IRI
	Permission Permission
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %q lacks %s permission on %s", e.Principal, e.Permission, e.Graph)
}

func (e *DeniedError) Is(target error) bool { return target == ErrAccessDenied }

// Principal is a named account. Grants override DefaultRole per graph.
type Principal struct {
	Name         string
	PasswordHash string
	DefaultRole  Role
	Grants       map[rdf.IRI]Role
}

func (p *Principal) role(graph rdf.IRI) Role {
	if r, ok := p.Grants[graph]; ok {
		return r
	}
	return p.DefaultRole
}

func (p *Principal) has(graph rdf.IRI, perm Permission) bool {
	for _, allowed := range RolePermissions[p.role(graph)] {
		if allowed == perm {
			return true
		}
	}
	return false
}

// Policy holds principals and their graph grants.
//
// Passwords are hashed with bcrypt and never stored in plain text.
//
// Thread Safety:
//
//	All methods are thread-safe. Grants changed after a Session was created
//	apply to that session's next check.
type Policy struct {
	mu         sync.RWMutex
	principals map[string]*Principal
	cost       int
}

// NewPolicy creates an empty policy. A bcryptCost of zero uses bcrypt.DefaultCost.
func NewPolicy(bcryptCost int) *Policy {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Policy{
		principals: make(map[string]*Principal),
		cost:       bcryptCost,
	}
}

// AddPrincipal creates a principal with a plain text password.
func (p *Policy) AddPrincipal(name, password string, defaultRole Role) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return p.AddPrincipalHash(name, string(hash), defaultRole)
}

// AddPrincipalHash creates a principal from an existing bcrypt hash, as found
// in configuration files.
func (p *Policy) AddPrincipalHash(name, passwordHash string, defaultRole Role) error {
	if defaultRole == "" {
		defaultRole = RoleViewer
	}
	if !ValidRole(defaultRole) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, defaultRole)
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("principal %q: %w", name, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.principals[name]; ok {
		return ErrPrincipalExists
	}
	p.principals[name] = &Principal{
		Name:         name,
		PasswordHash: passwordHash,
		DefaultRole:  defaultRole,
		Grants:       make(map[rdf.IRI]Role),
	}
	return nil
}

// Grant sets the role of a principal on one graph.
func (p *Policy) Grant(name string, graph rdf.IRI, role Role) error {
	if !ValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	principal, ok := p.principals[name]
	if !ok {
		return ErrPrincipalNotFound
	}
	principal.Grants[graph] = role
	return nil
}

// Authenticate verifies credentials and returns a session for the principal.
func (p *Policy) Authenticate(name, password string) (*Session, error) {
	p.mu.RLock()
	principal, ok := p.principals[name]
	var hash string
	if ok {
		hash = principal.PasswordHash
	}
	p.mu.RUnlock()

	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &Session{policy: p, principal: name}, nil
}

// Session returns a session for a principal without checking credentials.
// It is meant for trusted embedding code.
func (p *Policy) Session(name string) (*Session, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.principals[name]; !ok {
		return nil, ErrPrincipalNotFound
	}
	return &Session{policy: p, principal: name}, nil
}

func (p *Policy) allowed(name string, graph rdf.IRI, perms ...Permission) (Permission, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	principal, ok := p.principals[name]
	for _, perm := range perms {
		if !ok || !principal.has(graph, perm) {
			return perm, false
		}
	}
	return "", true
}

// Session is an authenticated principal. It implements Controller.
type Session struct {
	policy    *Policy
	principal string
}

// Principal returns the name of the session's principal.
func (s *Session) Principal() string { return s.principal }

// CheckRead requires read permission on the graph.
func (s *Session) CheckRead(graph rdf.IRI) error {
	if perm, ok := s.policy.allowed(s.principal, graph, PermRead); !ok {
		return &DeniedError{Principal: s.principal, Graph: graph, Permission: perm}
	}
	return nil
}

// CheckReadWrite requires read and write permission on the graph.
func (s *Session) CheckReadWrite(graph rdf.IRI) error {
	if perm, ok := s.policy.allowed(s.principal, graph, PermRead, PermWrite); !ok {
		return &DeniedError{Principal: s.principal, Graph: graph, Permission: perm}
	}
	return nil
}

var _ Controller = (*Session)(nil)
