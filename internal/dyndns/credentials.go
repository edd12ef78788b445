package dyndns

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Credentials is a decoded Basic authorization pair.
type Credentials struct {
	Username string
	Secret   string
}

// ParseBasicAuth decodes an Authorization header of the form
// "Basic base64(username:secret)". The secret may itself contain colons.
// A missing or malformed header yields ok == false; it never errors.
func ParseBasicAuth(header string) (Credentials, bool) {
	scheme, payload, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return Credentials{}, false
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Credentials{}, false
	}
	if !utf8.Valid(raw) {
		return Credentials{}, false
	}

	username, secret, found := strings.Cut(string(raw), ":")
	if !found {
		return Credentials{}, false
	}
	return Credentials{Username: username, Secret: secret}, true
}
