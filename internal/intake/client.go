package intake

import (
	"net/netip"
	"strings"
)

// AddressHeaders are consulted in order for the client address.
var AddressHeaders = []string{
	"CF-Connecting-IP",
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
}

// ClientAddress returns the first public IP found in the proxy headers,
// then in remote. Comma-separated values use their first element. When no
// candidate is a public IP the raw remote address is returned.
func ClientAddress(header func(name string) string, remote string) string {
	for _, name := range AddressHeaders {
		if ip, ok := publicIP(header(name)); ok {
			return ip
		}
	}
	if ip, ok := publicIP(remote); ok {
		return ip
	}
	return remote
}

func publicIP(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", false
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}

	addr, err := netip.ParseAddr(v)
	if err != nil {
		ap, perr := netip.ParseAddrPort(v)
		if perr != nil {
			return "", false
		}
		addr = ap.Addr()
	}
	addr = addr.Unmap()

	if addr.IsPrivate() || addr.IsLoopback() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return "", false
	}
	return addr.String(), true
}
