package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/avoidedcost/internal/storage"
)

func newService(t *testing.T) (*Service, storage.Storage) {
	t.Helper()
	st := storage.NewMemory()
	svc, err := NewService(context.Background(), st)
	require.NoError(t, err)
	return svc, st
}

func TestDefaultPolicies(t *testing.T) {
	svc, _ := newService(t)

	cases := []struct {
		role, obj, act string
		want           bool
	}{
		{RoleAdmin, ObjResults, ActWrite, true},
		{RoleAdmin, "anything", "delete", true},
		{RoleAnalyst, ObjResults, ActWrite, true},
		{RoleAnalyst, ObjResults, ActRead, true},
		{RoleAnalyst, ObjLoadShapes, ActRead, true},
		{RoleViewer, ObjResults, ActRead, true},
		{RoleViewer, ObjResults, ActWrite, false},
		{RoleViewer, ObjUtilities, ActRead, true},
		{"nobody", ObjResults, ActRead, false},
	}
	for _, c := range cases {
		ok, err := svc.Enforce(c.role, c.obj, c.act)
		require.NoError(t, err)
		assert.Equal(t, c.want, ok, "%s %s %s", c.role, c.obj, c.act)
	}
}

func TestPoliciesPersistAndSeedOnce(t *testing.T) {
	svc, st := newService(t)
	rules, err := st.LoadCasbinRules(context.Background())
	require.NoError(t, err)
	seeded := len(rules)
	assert.Equal(t, 6, seeded)

	require.NoError(t, svc.Grant(RoleViewer, "runs", ActRead))

	again, err := NewService(context.Background(), st)
	require.NoError(t, err)
	ok, err := again.Enforce(RoleViewer, "runs", ActRead)
	require.NoError(t, err)
	assert.True(t, ok)

	rules, err = st.LoadCasbinRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, seeded+1)

	require.NoError(t, again.Revoke(RoleViewer, "runs", ActRead))
	ok, err = again.Enforce(RoleViewer, "runs", ActRead)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoveFilteredPolicy(t *testing.T) {
	_, st := newService(t)
	a := NewAdapter(st)

	require.NoError(t, a.RemoveFilteredPolicy("p", "p", 0, RoleViewer))
	rules, err := st.LoadCasbinRules(context.Background())
	require.NoError(t, err)
	for _, r := range rules {
		if r.PType == "p" {
			assert.NotEqual(t, RoleViewer, r.V0)
		}
	}

	require.NoError(t, a.RemoveFilteredPolicy("p", "p", 1, "", "*"))
	rules, err = st.LoadCasbinRules(context.Background())
	require.NoError(t, err)
	for _, r := range rules {
		assert.NotEqual(t, RoleAdmin, r.V0)
	}
}

func TestTokenLifecycle(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tok, raw, err := svc.CreateToken(ctx, "ci", RoleAnalyst, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, raw, tok.TokenHash)

	got, err := svc.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, tok.ID, got.ID)
	assert.Equal(t, RoleAnalyst, got.Role)

	_, err = svc.ValidateToken(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	list, err := svc.ListTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.RevokeToken(ctx, tok.ID))
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiredAndUnknownRole(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, raw, err := svc.CreateToken(ctx, "old", RoleViewer, &past)
	require.NoError(t, err)
	_, err = svc.ValidateToken(ctx, raw)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, _, err = svc.CreateToken(ctx, "x", "superuser", nil)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestMiddleware(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, viewer, err := svc.CreateToken(ctx, "v", RoleViewer, nil)
	require.NoError(t, err)
	_, analyst, err := svc.CreateToken(ctx, "a", RoleAnalyst, nil)
	require.NoError(t, err)

	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := svc.Middleware(svc.RequirePermission(ObjResults, ActWrite, ok))

	do := func(header string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/results", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do(""))
	assert.Equal(t, http.StatusUnauthorized, do("Basic abc"))
	assert.Equal(t, http.StatusUnauthorized, do("Bearer nope"))
	assert.Equal(t, http.StatusForbidden, do("Bearer "+viewer))
	assert.Equal(t, http.StatusNoContent, do("Bearer "+analyst))
}

func TestParseExpirationDuration(t *testing.T) {
	exp, err := ParseExpirationDuration("never")
	require.NoError(t, err)
	assert.Nil(t, exp)

	exp, err = ParseExpirationDuration("2d")
	require.NoError(t, err)
	require.NotNil(t, exp)
	assert.WithinDuration(t, time.Now().Add(48*time.Hour), *exp, time.Minute)

	_, err = ParseExpirationDuration("soon")
	assert.Error(t, err)
}
