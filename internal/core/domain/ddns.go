package domain

import (
	"net/http"
	"time"
)

// ResultCode is a DynDNS2 response token. The token is the whole response body.
type ResultCode string

const (
	ResultGood    ResultCode = "good"
	ResultNoChg   ResultCode = "nochg"
	ResultBadAuth ResultCode = "badauth"
	ResultNotFQDN ResultCode = "notfqdn"
	ResultNoHost  ResultCode = "nohost"
	Result911     ResultCode = "911"
)

// Success reports whether the code counts as a successful check-in.
func (c ResultCode) Success() bool {
	return c == ResultGood || c == ResultNoChg
}

// HTTPStatus maps the code to the status routers expect: 401 for badauth
// and 200 for everything else.
func (c ResultCode) HTTPStatus() int {
	if c == ResultBadAuth {
		return http.StatusUnauthorized
	}
	return http.StatusOK
}

// UpdateHistoryEntry is an append-only audit row for one update attempt.
type UpdateHistoryEntry struct {
	ID             string     `json:"id"`
	Hostname       string     `json:"hostname"`
	Timestamp      time.Time  `json:"timestamp"`
	IPAddress      string     `json:"ip_address"`
	OldIPAddress   string     `json:"old_ip_address,omitempty"`
	Success        bool       `json:"success"`
	ResultCode     ResultCode `json:"result_code"`
	AuthMethod     AuthMethod `json:"auth_method"`
	KeyHashPrefix  string     `json:"key_hash_prefix,omitempty"`
	ResponseTimeMs int64      `json:"response_time_ms"`
}
