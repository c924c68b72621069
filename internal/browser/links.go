package browser

import (
	"net/url"
	"strings"
)

var trackingParams = map[string]struct{}{
	"gclid":   {},
	"dclid":   {},
	"fbclid":  {},
	"msclkid": {},
	"igshid":  {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref_src": {},
}

// cleanLink lowercases the host, drops default ports, the fragment and
// tracking parameters, so the same story linked twice dedupes.
func cleanLink(u *url.URL) {
	u.Fragment = ""
	host := strings.ToLower(u.Host)
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			host = h
		}
	}
	u.Host = host
	if u.RawQuery == "" {
		return
	}
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, drop := trackingParams[lower]; drop || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
}
