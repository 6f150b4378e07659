package accounts

import "regexp"

var nameRe = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ValidName enforces Ubuntu-style user/group name requirements: lowercase
// letters/digits/underscore/dash, starting with a letter or underscore.
func ValidName(n string) bool {
	return nameRe.MatchString(n)
}
