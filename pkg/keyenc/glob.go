package keyenc

// Match reports whether name matches pattern using glob rules: '*' matches
// any run of bytes (including none), '?' matches exactly one byte, anything
// else must match literally. Matching is case-sensitive and operates on the
// decoded user-key bytes, per spec's match semantics.
func Match(pattern string, name []byte) bool {
	return matchBytes([]byte(pattern), name)
}

func matchBytes(pattern, name []byte) bool {
	p, n := 0, 0
	starP, starN := -1, 0

	for n < len(name) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == name[n]):
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			starP = p
			starN = n
			p++
		case starP != -1:
			p = starP + 1
			starN++
			n = starN
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
