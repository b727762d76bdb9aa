package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"surf_clock/internal/service"
)

func TestBearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		header      string
		wantToken   string
		wantPresent bool
		wantErr     error
	}{
		{"", "", false, errNoAuthHeader},
		{"   ", "", false, errNoAuthHeader},
		{"Bearer abc", "abc", true, nil},
		{"bearer   abc ", "abc", true, nil},
		{"Bearer", "", true, errBadAuthHeader},
		{"Bearer  ", "", true, errBadAuthHeader},
		{"Token abc", "", true, errBadAuthHeader},
	}
	for _, tc := range cases {
		t.Run(tc.header, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			token, present, err := bearerToken(c)
			if token != tc.wantToken || present != tc.wantPresent || err != tc.wantErr {
				t.Fatalf("got (%q, %v, %v) want (%q, %v, %v)",
					token, present, err, tc.wantToken, tc.wantPresent, tc.wantErr)
			}
		})
	}
}

func TestUserIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		header   string
		auth     *mockAuth
		wantCode int
		wantUser float64
	}{
		{"no header", "", &mockAuth{parseID: 5}, http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic Zm9v", &mockAuth{parseID: 5}, http.StatusUnauthorized, 0},
		{"token rejected", "Bearer old", &mockAuth{parseErr: service.ErrInvalidToken}, http.StatusUnauthorized, 0},
		{"token accepted", "Bearer fresh", &mockAuth{parseID: 5}, http.StatusOK, 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(&service.Service{Authorization: tc.auth}, nil)
			r := gin.New()
			r.GET("/guarded", h.userIdMiddleware, func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"user": c.MustGet(ctxUserID)})
			})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			var out map[string]any
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if tc.wantCode == http.StatusOK && out["user"] != tc.wantUser {
				t.Fatalf("user=%v want %v", out["user"], tc.wantUser)
			}
			if tc.wantCode != http.StatusOK && out["error"] == nil {
				t.Fatalf("expected error body, got %s", w.Body.String())
			}
		})
	}
}

func TestUserIDMiddleware_OnlyParsesWellFormedTokens(t *testing.T) {
	auth := &mockAuth{parseID: 1}
	r := newTestRouter(&service.Service{Authorization: auth, Monitoring: &mockMonitoring{}})

	for _, header := range []string{"", "Bearer", "Bearer good-token"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/clock/state", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	if len(auth.parsedTokens) != 1 || auth.parsedTokens[0] != "good-token" {
		t.Fatalf("parsed tokens %v", auth.parsedTokens)
	}
}
