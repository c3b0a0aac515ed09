// Package filesystem provides template sources for include and extends:
// an in-memory map, a directory on disk and a database table.
//
// All implementations satisfy liquid.FileSystem.
package filesystem

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned, wrapped, when a template does not exist.
var ErrNotFound = errors.New("template not found")

// ErrInvalidName is returned, wrapped, for names that are not valid template
// names.
var ErrInvalidName = errors.New("illegal template name")

// Template names are relative paths of word characters. They never start
// with a dot or slash, so they cannot escape the root.
var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_/-]*$`)

func validateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w '%s'", ErrInvalidName, name)
	}
	return nil
}

func notFound(name string) error {
	return fmt.Errorf("%w: '%s'", ErrNotFound, name)
}
