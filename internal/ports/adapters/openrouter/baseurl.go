package openrouter

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/forPelevin/reelcut/internal/types"
)

const defaultBaseURL = "https://openrouter.ai"

var defaultAllowedHosts = map[string]struct{}{
	"openrouter.ai":     {},
	"api.openrouter.ai": {},
}

func normalizeBaseURL(baseURL string) string {
	if baseURL = strings.TrimSpace(baseURL); baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL accepts only absolute https URLs without credentials,
// query or fragment whose host is allow-listed. An empty allow-list means
// the public OpenRouter hosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)
	bad := func(reason string) error {
		return fmt.Errorf("%w: invalid OPENROUTER_BASE_URL %q: %s", types.ErrInputValidation, baseURL, reason)
	}

	u, err := url.Parse(baseURL)
	switch {
	case err != nil:
		return fmt.Errorf("%w: invalid OPENROUTER_BASE_URL: %v", types.ErrInputValidation, err)
	case !u.IsAbs() || u.Hostname() == "":
		return bad("absolute URL with host is required")
	case u.User != nil:
		return bad("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "" || u.ForceQuery:
		return bad("query and fragment are not allowed")
	case !strings.EqualFold(u.Scheme, "https"):
		return bad("https is required")
	}

	host := strings.ToLower(u.Hostname())
	if _, ok := normalizeAllowedHosts(allowedHosts)[host]; !ok {
		return bad(fmt.Sprintf("host %q is not in OPENROUTER_ALLOWED_HOSTS", host))
	}
	return nil
}

// normalizeAllowedHosts reduces entries like "https://proxy:8443/" to a bare
// lowercase host.
func normalizeAllowedHosts(allowedHosts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		v := strings.ToLower(strings.TrimSpace(h))
		for _, p := range []string{"https://", "http://"} {
			v = strings.TrimPrefix(v, p)
		}
		if i := strings.IndexAny(v, ":/"); i >= 0 {
			v = v[:i]
		}
		if v != "" {
			out[v] = struct{}{}
		}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}
