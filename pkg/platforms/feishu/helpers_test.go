package feishu

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kart-io/clawprobe/pkg/config"
	"github.com/kart-io/clawprobe/pkg/errors"
	"github.com/kart-io/clawprobe/pkg/logger"
)

const (
	testAppID     = "cli_test_app"
	testAppSecret = "test_secret"
	testToken     = "t-test-token"
)

// mockLogger implements logger.Logger for testing
type mockLogger struct {
	mu   sync.Mutex
	logs []string
}

func newMockLogger() *mockLogger {
	return &mockLogger{logs: make([]string, 0)}
}

func (m *mockLogger) add(level, msg string, args []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, fmt.Sprintf("%s: %s %v", level, msg, args))
}

func (m *mockLogger) LogMode(logger.LogLevel) logger.Logger { return m }
func (m *mockLogger) Debug(msg string, args ...any)         { m.add("DEBUG", msg, args) }
func (m *mockLogger) Info(msg string, args ...any)          { m.add("INFO", msg, args) }
func (m *mockLogger) Warn(msg string, args ...any)          { m.add("WARN", msg, args) }
func (m *mockLogger) Error(msg string, args ...any)         { m.add("ERROR", msg, args) }

func (m *mockLogger) contains(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

// fakeFeishu is an httptest stand-in for the open API
type fakeFeishu struct {
	server *httptest.Server

	tokenCalls    int32
	botCalls      int32
	tokenFailures int32

	mu          sync.Mutex
	tokenStatus int
	tokenBody   string
	botStatus   int
	botBody     string
	lastAuth    string
	lastMethod  string
	lastBody    []byte
}

func newFakeFeishu(t *testing.T) *fakeFeishu {
	t.Helper()

	f := &fakeFeishu{
		tokenStatus: http.StatusOK,
		botStatus:   http.StatusOK,
		botBody:     `{"code":0,"msg":"ok","bot":{"bot_name":"Claw","open_id":"ou_123"}}`,
	}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tenantAccessTokenPath:
			f.handleToken(w, r)
		case botInfoPath:
			f.handleBotInfo(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeFeishu) handleToken(w http.ResponseWriter, r *http.Request) {
	n := atomic.AddInt32(&f.tokenCalls, 1)
	if n <= atomic.LoadInt32(&f.tokenFailures) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	f.mu.Lock()
	status, body := f.tokenStatus, f.tokenBody
	f.mu.Unlock()

	if body == "" {
		var req tenantAccessTokenRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.Method != http.MethodPost || req.AppID != testAppID || req.AppSecret != testAppSecret {
			body = `{"code":10014,"msg":"app secret invalid"}`
		} else {
			body = fmt.Sprintf(`{"code":0,"msg":"ok","tenant_access_token":%q,"expire":7200}`, testToken)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeFeishu) handleBotInfo(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.botCalls, 1)

	data, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	f.lastMethod = r.Method
	f.lastBody = data
	status, body := f.botStatus, f.botBody
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeFeishu) setToken(status int, body string) {
	f.mu.Lock()
	f.tokenStatus, f.tokenBody = status, body
	f.mu.Unlock()
}

// failTokens makes the next n token requests fail with 503
func (f *fakeFeishu) failTokens(n int) {
	atomic.StoreInt32(&f.tokenFailures, atomic.LoadInt32(&f.tokenCalls)+int32(n))
}

func (f *fakeFeishu) setBot(status int, body string) {
	f.mu.Lock()
	f.botStatus, f.botBody = status, body
	f.mu.Unlock()
}

func (f *fakeFeishu) TokenCalls() int { return int(atomic.LoadInt32(&f.tokenCalls)) }
func (f *fakeFeishu) BotCalls() int   { return int(atomic.LoadInt32(&f.botCalls)) }

func (f *fakeFeishu) config() *config.FeishuConfig {
	cfg := DefaultConfig()
	cfg.BaseURL = f.server.URL
	cfg.Timeout = 2 * time.Second
	return cfg
}

// fastRetry keeps retry tests quick
func fastRetry(attempts int) errors.RetryPolicy {
	return errors.NewExponentialBackoffPolicy(time.Millisecond, 5*time.Millisecond, attempts)
}

func (f *fakeFeishu) newClient(t *testing.T, opts ...ClientOption) *Client {
	t.Helper()

	all := append([]ClientOption{WithConfig(f.config()), WithRetryPolicy(fastRetry(3))}, opts...)
	c, err := NewClient(Credentials{AppID: testAppID, AppSecret: testAppSecret}, all...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}
