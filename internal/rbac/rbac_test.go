package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := NewChecker(nil)
	assert.True(t, c.Has("admin", PermEncoderReload))
	assert.True(t, c.Has("analyst", PermPredictionsView))
	assert.False(t, c.Has("analyst", PermEncoderReload))
	assert.False(t, c.Has("guest", PermPredictionsView))
}

func TestChecker_PrefixPattern(t *testing.T) {
	c := NewChecker(map[string][]string{"ops": {"encoder:*"}})
	assert.True(t, c.Has("ops", PermEncoderReload))
	assert.False(t, c.Has("ops", PermEventsView))
}

func TestPrincipal(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), Principal{Subject: "ops", Role: "analyst"})
	p, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ops", p.Subject)
	assert.Equal(t, "analyst", p.Role)
}

func TestRequire(t *testing.T) {
	c := NewChecker(nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	serve := func(h http.Handler, role string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			req = req.WithContext(WithPrincipal(context.Background(), Principal{Subject: role, Role: role}))
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	reload := c.Require(PermEncoderReload)(ok)
	assert.Equal(t, http.StatusNoContent, serve(reload, "admin"))
	assert.Equal(t, http.StatusForbidden, serve(reload, "analyst"))
	assert.Equal(t, http.StatusUnauthorized, serve(reload, ""))

	read := c.Require(PermPredictionsView)(ok)
	assert.Equal(t, http.StatusNoContent, serve(read, "analyst"))
}
