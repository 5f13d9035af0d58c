package admission

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the address of the direct peer. Forwarding headers are
// ignored because any client can set them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ProxyResolver derives the client address for requests arriving through
// trusted reverse proxies.
type ProxyResolver struct {
	nets []*net.IPNet
}

// NewProxyResolver parses the trusted proxy ranges. Entries are CIDRs or bare
// IPs; a bare IP trusts that single host.
func NewProxyResolver(cidrs []string) (*ProxyResolver, error) {
	p := &ProxyResolver{}
	for _, raw := range cidrs {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			p.nets = append(p.nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		p.nets = append(p.nets, ipNet)
	}
	return p, nil
}

func (p *ProxyResolver) trusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the peer address unless the peer is a trusted proxy. For
// trusted peers it walks X-Forwarded-For from the right, skipping trusted
// hops, and returns the first untrusted address. X-Real-IP is used when the
// chain holds no such address.
func (p *ProxyResolver) ClientIP(r *http.Request) string {
	peer := ClientIP(r)
	if !p.trusted(net.ParseIP(peer)) {
		return peer
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				// An unparsable hop ends the chain we can vouch for.
				break
			}
			if !p.trusted(ip) {
				return ip.String()
			}
		}
	}

	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return peer
}
