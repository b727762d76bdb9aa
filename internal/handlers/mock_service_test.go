package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"surf_clock/internal/models"
	"surf_clock/internal/service"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID  int
	signUpErr error
	token     string
	tokenErr  error
	parseID   int
	parseErr  error

	signUps      []signUpCall
	signInUser   string
	parsedTokens []string
}

type signUpCall struct {
	username, password string
	invited            bool
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string, invited bool) (int, error) {
	m.signUps = append(m.signUps, signUpCall{username, password, invited})
	return m.signUpID, m.signUpErr
}

func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.signInUser = username
	return m.token, m.tokenErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.parsedTokens = append(m.parsedTokens, token)
	return m.parseID, m.parseErr
}

type mockClock struct {
	pauseErr     error
	resumeErr    error
	refreshErr   error
	pauseCalls   int
	resumeCalls  int
	refreshCalls int
}

func (m *mockClock) Pause(ctx context.Context) error {
	m.pauseCalls++
	return m.pauseErr
}
func (m *mockClock) Resume(ctx context.Context) error {
	m.resumeCalls++
	return m.resumeErr
}
func (m *mockClock) Refresh(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

// mockMonitoring returns states in order and then repeats the last one.
type mockMonitoring struct {
	mu     sync.Mutex
	states []models.ClockState
	err    error
	calls  int
}

func (m *mockMonitoring) GetState(ctx context.Context) (models.ClockState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil || len(m.states) == 0 {
		return models.ClockState{}, m.err
	}
	return m.states[min(m.calls, len(m.states))-1], nil
}

type mockEventLog struct {
	resp      []models.CycleEvent
	err       error
	lastFrom  time.Time
	lastTo    time.Time
	lastType  string
	lastLimit int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.CycleEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastLimit = f.Limit
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func authed(req *http.Request) *http.Request {
	for k, vv := range authHeader("valid") {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	return req
}
