package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/output"
	"github.com/mudamudi/mmdesk/internal/session"
)

const (
	testUsername = "budi"
	testPassword = "rahasia"
)

// fakeServer is an in-memory membership API.
type fakeServer struct {
	*httptest.Server

	mu            sync.Mutex
	user          map[string]any
	permissions   session.Permissions
	areas         session.Areas
	accessToken   string
	verifyValid   bool
	refreshOK     bool
	failPerms     bool
	logins        int
	verifies      int
	refreshes     int
	lastDevice    string
	refreshIssued int
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	s := &fakeServer{
		user: map[string]any{
			"id":        7,
			"username":  testUsername,
			"role":      "admin_desa",
			"full_name": "Budi Santoso",
		},
		permissions: session.Permissions{
			"Dashboard":            {CanView: true},
			"Input Data Muda-Mudi": {CanView: true, CanCreate: true, CanEdit: true},
			"Laporan":              {CanView: true},
		},
		areas: session.Areas{
			Desa:     []string{"Desa A"},
			Kelompok: []string{"Kelompok 1"},
		},
		verifyValid: true,
		refreshOK:   true,
	}
	s.accessToken = signedToken(t, time.Now().Add(time.Hour))

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// signedToken returns an HS256 JWT with the given expiry.
func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   testUsername,
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch r.URL.Path {
	case "/api/auth/login":
		s.logins++
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		s.lastDevice = req["device_type"] + "/" + req["device_info"]
		if req["username"] != testUsername || req["password"] != testPassword {
			reply(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Username atau password salah"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"access_token":  s.accessToken,
			"refresh_token": "refresh-token",
			"user":          s.user,
		}})

	case "/api/auth/verify":
		s.verifies++
		if !s.verifyValid || bearer != s.accessToken {
			reply(w, http.StatusUnauthorized, map[string]any{"valid": false})
			return
		}
		reply(w, http.StatusOK, map[string]any{"valid": true})

	case "/api/auth/refresh":
		s.refreshes++
		if !s.refreshOK {
			reply(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Refresh token expired"})
			return
		}
		s.refreshIssued++
		s.accessToken = "refreshed-" + strings.Repeat("x", s.refreshIssued)
		s.verifyValid = true
		reply(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"access_token": s.accessToken,
			"user":         s.user,
		}})

	case "/api/user/permissions":
		if s.failPerms {
			reply(w, http.StatusInternalServerError, map[string]any{"success": false})
			return
		}
		reply(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{
			"permissions":      s.permissions,
			"accessible_areas": s.areas,
		}})

	default:
		http.NotFound(w, r)
	}
}

func (s *fakeServer) set(fn func(s *fakeServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *fakeServer) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *fakeServer) Verifies() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifies
}

func (s *fakeServer) Refreshes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes
}

func (s *fakeServer) LastDevice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDevice
}

// setupTestEnv points the CLI globals at srv with a temporary home and
// restores everything on cleanup. Tests using it must not run in parallel.
func setupTestEnv(t *testing.T, srv *fakeServer) string {
	t.Helper()

	origCfg, origLogger, origFormatter := cfg, logger, formatter
	origHome, origOutput, origVerbose := homeDir, outputFormat, verbose
	origUser, origStdin := loginUsername, loginPasswordStdin
	origAction, origSQL := canAction, scopeSQL
	origDesa, origKelompok := participantDesa, participantKelompok
	origForce := configForce
	origPromptPW, origPromptUser := promptPasswordFn, promptUsernameFn

	t.Cleanup(func() {
		cfg, logger, formatter = origCfg, origLogger, origFormatter
		homeDir, outputFormat, verbose = origHome, origOutput, origVerbose
		loginUsername, loginPasswordStdin = origUser, origStdin
		canAction, scopeSQL = origAction, origSQL
		participantDesa, participantKelompok = origDesa, origKelompok
		configForce = origForce
		promptPasswordFn, promptUsernameFn = origPromptPW, origPromptUser
	})

	home := t.TempDir()
	testCfg := config.Defaults()
	testCfg.Home = home
	testCfg.Output.Color = "never"
	testCfg.Logging.Level = "off"
	testCfg.Catalog.Desa = []string{"Desa A", "Desa B", "Desa C"}
	testCfg.Catalog.Kelompok = []string{"Kelompok 1", "Kelompok 2"}
	if srv != nil {
		testCfg.API.BaseURL = srv.URL
	}
	testCfg.API.TimeoutSeconds = 5
	testCfg.API.RatePerSecond = 1000
	testCfg.API.RateBurst = 1000
	testCfg.API.Limits = nil

	cfg = testCfg
	logger = config.NullLogger()
	formatter = output.NewFormatter(output.FormatText, io.Discard)

	loginUsername, loginPasswordStdin = "", false
	canAction, scopeSQL = string(session.ActionView), false
	participantDesa, participantKelompok = "", ""
	configForce = false
	promptPasswordFn = func(string) (string, error) {
		t.Fatal("unexpected password prompt")
		return "", nil
	}
	promptUsernameFn = func(string) (string, error) {
		t.Fatal("unexpected username prompt")
		return "", nil
	}

	return home
}

// useJSON switches the global formatter to JSON.
func useJSON() {
	formatter = output.NewFormatter(output.FormatJSON, io.Discard)
}

// newTestCmd returns a command whose output streams are captured.
func newTestCmd() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := &cobra.Command{}
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	return cmd, &stdout, &stderr
}

// login signs in through the login command with --password-stdin.
func login(t *testing.T) {
	t.Helper()

	loginUsername, loginPasswordStdin = testUsername, true
	defer func() { loginUsername, loginPasswordStdin = "", false }()

	cmd, _, _ := newTestCmd()
	cmd.SetIn(strings.NewReader(testPassword + "\n"))
	require.NoError(t, runLogin(cmd, nil))
}

// decodeJSON unmarshals buf into a value of type T.
func decodeJSON[T any](t *testing.T, buf *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v), buf.String())
	return v
}

