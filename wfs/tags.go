package wfs

import "strings"

// safeTag sanitizes an attribute name into a valid XML element local name:
// keep alnum/underscore/hyphen/dot, replace everything else with
// underscore, and prefix an underscore if the result would start with a
// digit (§4.E).
func safeTag(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "field"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
