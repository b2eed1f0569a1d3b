package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"

	"github.com/bher20/avoidedcost/internal/storage"
)

// Roles.
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleViewer  = "viewer"
)

var Roles = []string{RoleAdmin, RoleAnalyst, RoleViewer}

// Objects and actions checked by the API.
const (
	ObjResults    = "results"
	ObjLoadShapes = "load-shapes"
	ObjUtilities  = "utilities"

	ActRead  = "read"
	ActWrite = "write"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrUnknownRole  = errors.New("unknown role")
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
}

// NewService loads the stored policy. An empty policy table is seeded with
// the default roles: admin may do anything, analysts may run calculations,
// viewers may read.
func NewService(ctx context.Context, s storage.Storage) (*Service, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}

	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}

	rules, err := s.LoadCasbinRules(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		slog.Info("auth: seeding default policies")
		for _, p := range [][]string{
			{RoleAdmin, "*", "*"},
			{RoleAnalyst, ObjResults, ActWrite},
			{RoleViewer, ObjResults, ActRead},
			{RoleViewer, ObjLoadShapes, ActRead},
			{RoleViewer, ObjUtilities, ActRead},
		} {
			if _, err := e.AddPolicy(p[0], p[1], p[2]); err != nil {
				return nil, fmt.Errorf("seed policy %v: %w", p, err)
			}
		}
		if _, err := e.AddGroupingPolicy(RoleAnalyst, RoleViewer); err != nil {
			return nil, fmt.Errorf("seed role %s: %w", RoleAnalyst, err)
		}
	}

	return &Service{storage: s, enforcer: e}, nil
}

func validRole(role string) bool {
	for _, r := range Roles {
		if r == role {
			return true
		}
	}
	return false
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// CreateToken stores a new token and returns it with its raw value, which is
// only available here.
func (s *Service) CreateToken(ctx context.Context, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	if !validRole(role) {
		return nil, "", fmt.Errorf("%w %q", ErrUnknownRole, role)
	}
	rawToken := uuid.New().String() + uuid.New().String()

	t := storage.Token{
		ID:        uuid.New().String(),
		Name:      name,
		TokenHash: hashToken(rawToken),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}
	return &t, rawToken, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	t, err := s.storage.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrInvalidToken
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	if err := s.storage.UpdateTokenLastUsed(ctx, t.ID); err != nil {
		slog.Warn("auth: update token last used", "id", t.ID, "error", err)
	}
	return t, nil
}

func (s *Service) ListTokens(ctx context.Context) ([]storage.Token, error) {
	return s.storage.ListTokens(ctx)
}

func (s *Service) RevokeToken(ctx context.Context, id string) error {
	return s.storage.DeleteToken(ctx, id)
}

// Enforce reports whether role may perform act on obj.
func (s *Service) Enforce(role, obj, act string) (bool, error) {
	return s.enforcer.Enforce(role, obj, act)
}

// Grant adds a policy for a role and persists it.
func (s *Service) Grant(role, obj, act string) error {
	_, err := s.enforcer.AddPolicy(role, obj, act)
	return err
}

// Revoke removes a policy for a role.
func (s *Service) Revoke(role, obj, act string) error {
	_, err := s.enforcer.RemovePolicy(role, obj, act)
	return err
}
