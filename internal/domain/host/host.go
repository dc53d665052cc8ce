// Package host holds the host document ingested by bulk add-data requests.
package host

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// Field names of the host document schema.
const (
	FieldHostname = "hostname"
	FieldIP       = "ip"
)

var (
	// ErrMissingHostname marks a record without a usable hostname.
	ErrMissingHostname = errors.New("hostname is missing")
	// ErrMissingIP marks a record without any IP value.
	ErrMissingIP = errors.New("ip is missing")
	// ErrInvalidIP marks a record whose first IP does not parse.
	ErrInvalidIP = errors.New("ip is not a valid address")
)

// Host is a validated host document (immutable value object).
type Host struct {
	hostname string
	ip       netip.Addr
}

// New validates hostname and ip and creates a Host.
func New(hostname, ip string) (Host, error) {
	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return Host{}, ErrMissingHostname
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return Host{}, fmt.Errorf("%w: %q", ErrInvalidIP, ip)
	}
	return Host{hostname: hostname, ip: addr}, nil
}

// FromRecord builds a Host from a raw ingest record.
// Lowercase keys win over the capitalized Hostname/Ip variants.
// ip may be a string or a list; only the first element is used.
func FromRecord(rec map[string]any) (Host, error) {
	hostname, _ := lookup(rec, FieldHostname, "Hostname").(string)
	if strings.TrimSpace(hostname) == "" {
		return Host{}, ErrMissingHostname
	}

	ip, ok := firstIP(lookup(rec, FieldIP, "Ip"))
	if !ok {
		return Host{}, ErrMissingIP
	}

	return New(hostname, ip)
}

// IsSkippable reports whether err means the record should be skipped silently
// rather than counted as a failure.
func IsSkippable(err error) bool {
	return errors.Is(err, ErrMissingHostname) || errors.Is(err, ErrMissingIP)
}

// Hostname returns the host name.
func (h Host) Hostname() string { return h.hostname }

// IP returns the host address.
func (h Host) IP() netip.Addr { return h.ip }

// Source returns the document body stored in the backend.
func (h Host) Source() map[string]any {
	return map[string]any{
		FieldHostname: h.hostname,
		FieldIP:       h.ip.String(),
	}
}

func lookup(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstIP(v any) (string, bool) {
	switch ip := v.(type) {
	case string:
		return ip, strings.TrimSpace(ip) != ""
	case []string:
		if len(ip) == 0 {
			return "", false
		}
		return ip[0], strings.TrimSpace(ip[0]) != ""
	case []any:
		if len(ip) == 0 {
			return "", false
		}
		s, ok := ip[0].(string)
		return s, ok && strings.TrimSpace(s) != ""
	default:
		return "", false
	}
}
