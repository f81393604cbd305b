package collect

// Username rules: 3-16 characters, lowercase alphanumerics and single
// internal dashes; no leading, trailing, or consecutive dashes.
const (
	minUsernameLen = 3
	maxUsernameLen = 16
)

// ValidUsername reports whether name is a well-formed account handle.
func ValidUsername(name string) bool {
	if len(name) < minUsernameLen || len(name) > maxUsernameLen {
		return false
	}
	prevDash := true // forbids a leading dash
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z' || c >= '0' && c <= '9':
			prevDash = false
		case c == '-':
			if prevDash {
				return false
			}
			prevDash = true
		default:
			return false
		}
	}
	return !prevDash // forbids a trailing dash
}
