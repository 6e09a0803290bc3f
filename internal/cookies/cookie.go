package cookies

import (
	"net/http"
	"net/url"
	"strings"
)

// Lookup returns the decoded value of the first cookie called name in a
// "k=v; k2=v2" header string.
func Lookup(cookieHeader, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(cookieHeader) == "" {
		return "", false
	}
	prefix := name + "="
	for _, part := range strings.Split(cookieHeader, ";") {
		part = strings.TrimSpace(part)
		if !strings.HasPrefix(part, prefix) {
			continue
		}
		raw := part[len(prefix):]
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return raw, true
		}
		return decoded, true
	}
	return "", false
}

// Token reads the named cookie for target from jar. It is meant to be called
// on every mutating request; nothing is cached.
func Token(jar http.CookieJar, target *url.URL, name string) (string, bool) {
	if jar == nil || target == nil {
		return "", false
	}
	return Lookup(Header(jar.Cookies(target)), name)
}

// Header joins cookies the way a browser exposes them to scripts.
func Header(list []*http.Cookie) string {
	parts := make([]string, 0, len(list))
	for _, c := range list {
		if c == nil || c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
