package services

import (
	"crypto/subtle"
)

// LegacyAuthenticator accepts one static username/password pair shared by
// every old device. It exists only for migration and is off unless enabled.
type LegacyAuthenticator struct {
	enabled  bool
	username string
	password string
}

func NewLegacyAuthenticator(enabled bool, username, password string) *LegacyAuthenticator {
	return &LegacyAuthenticator{
		enabled:  enabled && username != "" && password != "",
		username: username,
		password: password,
	}
}

func (a *LegacyAuthenticator) Enabled() bool { return a != nil && a.enabled }

func (a *LegacyAuthenticator) Authenticate(username, secret string) bool {
	if !a.Enabled() {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(secret), []byte(a.password)) == 1
	return userOK && passOK
}
