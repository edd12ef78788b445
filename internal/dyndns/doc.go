// Package dyndns holds the pure, dependency-free pieces of the DynDNS2
// protocol: decoding Basic credentials, detecting the caller's public IP
// behind proxies and mapping requested FQDNs onto zone-relative record names.
package dyndns
