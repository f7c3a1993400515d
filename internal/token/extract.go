package token

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// paramNames are the accepted parameter names, in lookup order. "access" is
// kept for links issued by older auth service versions.
var paramNames = []string{"access_token", "access"}

// fallbackRegex catches tokens the URL parser could not place, e.g. a fragment
// route like "#/chats&access_token=...".
var fallbackRegex = regexp.MustCompile(`[?&#/](access_token|access)=([^&#\s]+)`)

// ExtractAndPersist looks for a token embedded in address and, on the first
// match, persists it and returns the address with the token parameters
// removed. Lookup order is query string, fragment, then a pattern match over
// the whole address. When nothing is found the store is left untouched and
// the address is returned as is, so a token from a previous session survives.
func ExtractAndPersist(ctx context.Context, s Store, address string) (cleaned, token string, found bool, err error) {
	token = Find(address)
	if token == "" {
		return address, "", false, nil
	}
	if err := s.Write(ctx, token); err != nil {
		return address, "", false, err
	}
	return Strip(address), token, true, nil
}

// Find returns the token embedded in address, or "".
func Find(address string) string {
	if u, err := url.Parse(address); err == nil {
		q := u.Query()
		for _, name := range paramNames {
			if v := q.Get(name); v != "" {
				return v
			}
		}

		if frag := fragmentQuery(u.Fragment); frag != "" {
			if fq, err := url.ParseQuery(frag); err == nil {
				for _, name := range paramNames {
					if v := fq.Get(name); v != "" {
						return v
					}
				}
			}
		}
	}

	// Last resort: scan the raw address, preferring access_token.
	matches := fallbackRegex.FindAllStringSubmatch(address, -1)
	for _, name := range paramNames {
		for _, m := range matches {
			if m[1] != name {
				continue
			}
			if v, err := url.QueryUnescape(m[2]); err == nil {
				return v
			}
			return m[2]
		}
	}
	return ""
}

// Strip removes every token parameter from the query and fragment of address,
// keeping the path and the remaining parameters in their original order.
func Strip(address string) string {
	u, err := url.Parse(address)
	if err != nil {
		return fallbackRegex.ReplaceAllString(address, "")
	}

	u.RawQuery = dropParams(u.RawQuery)
	u.ForceQuery = false

	rawFrag := u.EscapedFragment()
	if rawFrag != "" {
		var newFrag string
		if route, params, ok := strings.Cut(rawFrag, "?"); ok {
			newFrag = route
			if kept := dropParams(params); kept != "" {
				newFrag += "?" + kept
			}
		} else if strings.Contains(rawFrag, "=") {
			newFrag = dropParams(rawFrag)
		} else {
			newFrag = rawFrag
		}
		u.Fragment, _ = url.PathUnescape(newFrag)
		u.RawFragment = newFrag
	}

	out := u.String()
	// A fragment reduced to nothing leaves a dangling '#'.
	return strings.TrimSuffix(out, "#")
}

// fragmentQuery returns the parameter part of a fragment: "a=1&b=2" for both
// "#a=1&b=2" and "#/route?a=1&b=2".
func fragmentQuery(fragment string) string {
	if _, params, ok := strings.Cut(fragment, "?"); ok {
		return params
	}
	if strings.Contains(fragment, "=") {
		return fragment
	}
	return ""
}

func dropParams(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		key, _, _ := strings.Cut(p, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if isTokenParam(key) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}

func isTokenParam(name string) bool {
	for _, n := range paramNames {
		if n == name {
			return true
		}
	}
	return false
}
