package appeal

import "strings"

const (
	minIDLength = 5
	maxIDLength = 10
	fullnameTag = "t3_"
)

// ExtractItemID finds the item reference in text: a full link containing /comments/{id}, a short
// link {host}/{id} on one of shortHosts, or a bare id. Links win over bare ids anywhere in the
// text; within each kind the first match wins. A bare id needs the t3_ prefix or must mix letters
// and digits so ordinary words are not mistaken for ids.
func ExtractItemID(text string, shortHosts []string) (string, bool) {
	tokens := make([]string, 0, 8)
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, "<>()[]{}\"'.,;:!?*")
		if token != "" {
			tokens = append(tokens, strings.ToLower(token))
		}
	}

	for _, token := range tokens {
		if id, ok := fromFullLink(token); ok {
			return id, true
		}
		if id, ok := fromShortLink(token, shortHosts); ok {
			return id, true
		}
	}
	for _, token := range tokens {
		if id, ok := fromBareID(token); ok {
			return id, true
		}
	}
	return "", false
}

func fromFullLink(token string) (string, bool) {
	_, rest, ok := strings.Cut(token, "/comments/")
	if !ok {
		return "", false
	}
	return validID(firstSegment(rest))
}

func fromShortLink(token string, hosts []string) (string, bool) {
	t := strings.TrimPrefix(strings.TrimPrefix(token, "https://"), "http://")
	t = strings.TrimPrefix(t, "www.")
	for _, host := range hosts {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(t, host+"/"); ok {
			return validID(firstSegment(rest))
		}
	}
	return "", false
}

func fromBareID(token string) (string, bool) {
	if rest, ok := strings.CutPrefix(token, fullnameTag); ok {
		return validID(rest)
	}
	if strings.ContainsAny(token, "/:") {
		return "", false
	}
	if !strings.ContainsAny(token, "0123456789") || !strings.ContainsAny(token, "abcdefghijklmnopqrstuvwxyz") {
		return "", false
	}
	return validID(token)
}

func firstSegment(s string) string {
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		return s[:i]
	}
	return s
}

// validID accepts 5 to 10 base36 characters, with an optional t3_ prefix.
func validID(s string) (string, bool) {
	s = strings.TrimPrefix(s, fullnameTag)
	if len(s) < minIDLength || len(s) > maxIDLength {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return "", false
		}
	}
	return s, true
}
