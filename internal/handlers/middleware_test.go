package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"controlling_hottub/internal/service"

	"github.com/gin-gonic/gin"
)

// secureRouter mounts only the bearer middleware in front of one endpoint.
func secureRouter(auth *mockAuth) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(&service.Service{Authorization: auth}, nil)
	r.GET("/secure", h.userIdMiddleware, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "userId": c.GetInt(ctxUserID)})
	})
	return r
}

func callSecure(r *gin.Engine, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestUserIDMiddleware_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		parseErr error
		wantMsg  string
	}{
		{name: "no header", wantMsg: "missing Authorization header"},
		{name: "other scheme", header: "Token abc", wantMsg: "invalid Authorization header format"},
		{name: "lowercase scheme", header: "bearer abc", wantMsg: "invalid Authorization header format"},
		{name: "scheme only", header: "Bearer", wantMsg: "invalid Authorization header format"},
		{name: "blank token", header: "Bearer   ", wantMsg: "invalid Authorization header format"},
		{name: "token refused", header: "Bearer stale", parseErr: errors.New("expired"), wantMsg: "invalid or expired token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			auth := &mockAuth{parseErr: tc.parseErr}
			w := callSecure(secureRouter(auth), tc.header)

			expectCode(t, w, http.StatusUnauthorized)
			var out struct {
				Error string `json:"error"`
			}
			decode(t, w, &out)
			if out.Error != tc.wantMsg {
				t.Fatalf("error=%q, want %q", out.Error, tc.wantMsg)
			}
			if tc.parseErr == nil && auth.lastParseToken != "" {
				t.Fatalf("token %q reached the parser", auth.lastParseToken)
			}
		})
	}
}

func TestUserIDMiddleware_TrimsTokenAndSetsUser(t *testing.T) {
	auth := &mockAuth{parseID: 123}
	w := callSecure(secureRouter(auth), "Bearer  good-token ")

	expectCode(t, w, http.StatusOK)
	var resp struct {
		OK     bool `json:"ok"`
		UserID int  `json:"userId"`
	}
	decode(t, w, &resp)
	if !resp.OK || resp.UserID != 123 {
		t.Fatalf("resp=%+v", resp)
	}
	if auth.lastParseToken != "good-token" {
		t.Fatalf("parsed token=%q, want %q", auth.lastParseToken, "good-token")
	}
}

func TestUserIDMiddleware_GuardsAPIRoutes(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseErr: errors.New("bad signature")}})
	w := do(t, r, http.MethodGet, "/api/v1/jobs", "")
	expectCode(t, w, http.StatusUnauthorized)
}
