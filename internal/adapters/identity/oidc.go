package identity

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/poyrazK/dyndns/internal/core/domain"
	"github.com/poyrazK/dyndns/internal/infrastructure/config"
	"github.com/poyrazK/dyndns/internal/infrastructure/logging"
	"golang.org/x/oauth2"
)

const (
	stateCookie    = "ddns_oauth_state"
	redirectCookie = "ddns_oauth_redirect"
	flowCookieTTL  = 600
)

// UserInfo is the subset of the OIDC userinfo document the service reads.
type UserInfo struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// Login runs the authorization code flow against an external OIDC provider
// and mints a session token on success.
type Login struct {
	config      *oauth2.Config
	userInfoURL string
	sessions    *Sessions
	secure      bool
}

// NewLogin returns nil when the provider is not configured; the handlers on a
// nil Login answer 503.
func NewLogin(cfg config.OIDCConfig, sessions *Sessions, secureCookies bool) *Login {
	if !cfg.Configured() {
		return nil
	}
	return &Login{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		userInfoURL: cfg.UserInfoURL,
		sessions:    sessions,
		secure:      secureCookies,
	}
}

func (l *Login) GetConsentURL(state string) string {
	return l.config.AuthCodeURL(state)
}

func (l *Login) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := l.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	client := l.config.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Subject == "" {
		return nil, fmt.Errorf("userinfo without subject: %w", domain.ErrUnauthenticated)
	}
	return &info, nil
}

// HandleLogin stores a random state and the post-login destination in short
// lived cookies, then redirects to the provider.
func (l *Login) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if l == nil {
		http.Error(w, "login is not configured", http.StatusServiceUnavailable)
		return
	}
	state, err := randomState()
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to generate oauth state", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	l.setCookie(w, stateCookie, state, flowCookieTTL)
	l.setCookie(w, redirectCookie, SafeRedirect(r.URL.Query().Get("redirect")), flowCookieTTL)
	http.Redirect(w, r, l.GetConsentURL(state), http.StatusFound)
}

func (l *Login) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if l == nil {
		http.Error(w, "login is not configured", http.StatusServiceUnavailable)
		return
	}
	logger := logging.FromContext(r.Context())

	c, err := r.Cookie(stateCookie)
	state := r.URL.Query().Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(state)) != 1 {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	info, err := l.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Warn("oidc login failed", "error", err)
		http.Error(w, "login failed", http.StatusUnauthorized)
		return
	}
	token, err := l.sessions.Issue(domain.Identity{SubjectID: info.Subject, Email: info.Email})
	if err != nil {
		logger.Error("failed to issue session", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	dest := "/"
	if rc, err := r.Cookie(redirectCookie); err == nil {
		dest = SafeRedirect(rc.Value)
	}
	l.setCookie(w, stateCookie, "", -1)
	l.setCookie(w, redirectCookie, "", -1)
	l.setCookie(w, SessionCookie, token, int(l.sessions.TTL().Seconds()))
	logger.Info("user signed in", "subject", info.Subject)
	http.Redirect(w, r, dest, http.StatusFound)
}

// HandleLogout clears the session cookie. It works without a configured
// provider so header or bearer deployments can still call it.
func HandleLogout(secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		w.WriteHeader(http.StatusNoContent)
	}
}

func (l *Login) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   l.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SafeRedirect keeps only same-origin absolute paths.
func SafeRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return "/"
	}
	return target
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
