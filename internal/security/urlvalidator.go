package security

import (
	"fmt"
	"net"
	"net/url"
)

var (
	ErrPrivateIP     = fmt.Errorf("URL resolves to private IP address")
	ErrInvalidScheme = fmt.Errorf("only HTTPS URLs are allowed")
)

// ValidateImageURL checks a caller-supplied image URL before the server
// fetches it: HTTPS only, and never a private or reserved address.
func ValidateImageURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	return validateHostIP(parsed.Hostname())
}

func validateHostIP(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
		return nil
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable hosts fail later at fetch time.
		return nil
	}

	for _, ip := range ips {
		if isPrivateIP(ip) {
			return ErrPrivateIP
		}
	}

	return nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		switch {
		case ip4[0] == 0: // 0.0.0.0/8
			return true
		case ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127: // 100.64.0.0/10 (CGNAT)
			return true
		case ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 0: // 192.0.0.0/24
			return true
		case ip4[0] >= 224: // multicast and reserved
			return true
		}
	}

	return false
}
