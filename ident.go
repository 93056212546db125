package crossthread

import (
	"regexp"
)

// identifierPattern accepts C identifiers, extended with minus signs after
// the first character.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// CheckIdentifier validates that name is usable as an identifier (a C
// identifier, minus signs allowed). Returns an [InvalidIdentifierError]
// otherwise.
func CheckIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return &InvalidIdentifierError{Name: name}
	}
	return nil
}
