package identity

import (
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/infrastructure/config"
	"github.com/poyrazK/dyndns/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = domain.Identity{SubjectID: "sub-alice", Email: "alice@example.com", Roles: []string{"user"}}

func TestSessions_IssueVerify(t *testing.T) {
	s := NewSessions("secret", time.Hour)

	token, err := s.Issue(alice)
	require.NoError(t, err)

	id, err := s.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, alice, *id)
}

func TestSessions_RejectsForeignAndExpired(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	token, err := s.Issue(alice)
	require.NoError(t, err)

	_, err = NewSessions("other", time.Hour).Verify(token)
	assert.Error(t, err)

	later := NewSessions("secret", time.Hour)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = later.Verify(token)
	assert.Error(t, err)
}

func TestSessions_IssueRequiresSubject(t *testing.T) {
	_, err := NewSessions("secret", time.Hour).Issue(domain.Identity{Email: "x@example.com"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestSessions_Identify(t *testing.T) {
	s := NewSessions("secret", time.Hour)
	token, _ := s.Issue(alice)

	cookieReq := httptest.NewRequest(http.MethodGet, "/", nil)
	cookieReq.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	id, err := s.Identify(cookieReq)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "sub-alice", id.SubjectID)

	bearerReq := httptest.NewRequest(http.MethodGet, "/", nil)
	bearerReq.Header.Set("Authorization", "bearer "+token)
	id, err = s.Identify(bearerReq)
	require.NoError(t, err)
	require.NotNil(t, id)

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.Header.Set("Authorization", "Bearer not-a-jwt")
	id, err = s.Identify(garbage)
	assert.NoError(t, err)
	assert.Nil(t, id)

	id, err = s.Identify(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestHeaderPrincipal(t *testing.T) {
	h := NewHeaderPrincipal("X-MS-CLIENT-PRINCIPAL")
	payload := `{"userId":"u1","userDetails":"bob@example.com","userRoles":["anonymous","authenticated"]}`

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-MS-CLIENT-PRINCIPAL", base64.StdEncoding.EncodeToString([]byte(payload)))
	id, err := h.Identify(req)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "u1", id.SubjectID)
	assert.Equal(t, "bob@example.com", id.Email)
	assert.Len(t, id.Roles, 2)

	bad := httptest.NewRequest(http.MethodGet, "/", nil)
	bad.Header.Set("X-MS-CLIENT-PRINCIPAL", "%%%")
	_, err = h.Identify(bad)
	assert.Error(t, err)

	none := httptest.NewRequest(http.MethodGet, "/", nil)
	id, err = h.Identify(none)
	assert.NoError(t, err)
	assert.Nil(t, id)
}

func TestChain(t *testing.T) {
	boom := errors.New("boom")
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	c := Chain{testutil.StaticIdentity{Err: boom}, nil, testutil.StaticIdentity{Identity: &alice}}
	id, err := c.Identify(req)
	require.NoError(t, err)
	assert.Equal(t, "sub-alice", id.SubjectID)

	id, err = Chain{testutil.StaticIdentity{Err: boom}, testutil.StaticIdentity{}}.Identify(req)
	assert.Nil(t, id)
	assert.ErrorIs(t, err, boom)

	id, err = Chain{testutil.StaticIdentity{}}.Identify(req)
	assert.Nil(t, id)
	assert.NoError(t, err)
}

func TestSafeRedirect(t *testing.T) {
	tests := map[string]string{
		"/manage/home.dyn.example.com": "/manage/home.dyn.example.com",
		"":                             "/",
		"https://evil.example":         "/",
		"//evil.example":               "/",
		"/\\evil.example":              "/",
	}
	for in, want := range tests {
		if got := SafeRedirect(in); got != want {
			t.Errorf("SafeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewLogin_Unconfigured(t *testing.T) {
	l := NewLogin(config.OIDCConfig{}, NewSessions("s", time.Hour), false)
	assert.Nil(t, l)

	rr := httptest.NewRecorder()
	l.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	l.HandleCallback(rr, httptest.NewRequest(http.MethodGet, "/auth/callback", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func newProvider(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer"}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"sub-alice","email":"alice@example.com"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestLogin_Flow(t *testing.T) {
	provider := newProvider(t)
	sessions := NewSessions("secret", time.Hour)
	l := NewLogin(config.OIDCConfig{
		ClientID:     "client",
		ClientSecret: "shh",
		RedirectURL:  "http://localhost/auth/callback",
		AuthURL:      provider.URL + "/authorize",
		TokenURL:     provider.URL + "/token",
		UserInfoURL:  provider.URL + "/userinfo",
	}, sessions, false)
	require.NotNil(t, l)

	rr := httptest.NewRecorder()
	l.HandleLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/login?redirect=/manage/home.dyn.example.com", nil))
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), provider.URL+"/authorize"))
	assert.Equal(t, "client", loc.Query().Get("client_id"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cb := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	for _, c := range rr.Result().Cookies() {
		cb.AddCookie(c)
	}
	rr = httptest.NewRecorder()
	l.HandleCallback(rr, cb)
	require.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "/manage/home.dyn.example.com", rr.Header().Get("Location"))

	var session string
	for _, c := range rr.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c.Value
		}
	}
	require.NotEmpty(t, session)
	id, err := sessions.Verify(session)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", id.Email)
}

func TestLogin_CallbackRejectsStateMismatch(t *testing.T) {
	provider := newProvider(t)
	l := NewLogin(config.OIDCConfig{
		ClientID:    "client",
		AuthURL:     provider.URL + "/authorize",
		TokenURL:    provider.URL + "/token",
		UserInfoURL: provider.URL + "/userinfo",
	}, NewSessions("secret", time.Hour), false)

	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: stateCookie, Value: "real"})
	rr := httptest.NewRecorder()
	l.HandleCallback(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleLogout(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleLogout(true)(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
	assert.True(t, cookies[0].Secure)
}
