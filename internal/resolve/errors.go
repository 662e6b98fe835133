package resolve

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrInvalidLibrary     = errors.New("invalid library")
	ErrInvalidParticle    = errors.New("invalid particle category")
	ErrInvalidThermalName = errors.New("invalid thermal scattering name")
)

// InvalidLibraryError reports an empty library list or an unknown library.
type InvalidLibraryError struct {
	Value string // empty when no library was given
	Valid []string
}

func (e *InvalidLibraryError) Error() string {
	if e.Value == "" {
		return "at least one library must be selected, options are " + strings.Join(e.Valid, ", ")
	}
	return fmt.Sprintf("unknown library %q, options are %s", e.Value, strings.Join(e.Valid, ", "))
}

func (e *InvalidLibraryError) Unwrap() error { return ErrInvalidLibrary }

// InvalidParticleCategoryError reports an empty or unknown particle category.
type InvalidParticleCategoryError struct {
	Value string
	Valid []string
}

func (e *InvalidParticleCategoryError) Error() string {
	if e.Value == "" {
		return "at least one particle type must be selected, options are " + strings.Join(e.Valid, ", ")
	}
	return fmt.Sprintf("unknown particle type %q, options are %s", e.Value, strings.Join(e.Valid, ", "))
}

func (e *InvalidParticleCategoryError) Unwrap() error { return ErrInvalidParticle }

// InvalidThermalScatteringNameError reports an unrecognised S(a,b) name.
type InvalidThermalScatteringNameError struct {
	Value string
	Valid []string
}

func (e *InvalidThermalScatteringNameError) Error() string {
	return fmt.Sprintf("unknown thermal scattering name %q", e.Value)
}

func (e *InvalidThermalScatteringNameError) Unwrap() error { return ErrInvalidThermalName }

// withOptions attaches the valid alternatives as a user-facing hint.
func withOptions(err error, kind string, valid []string) error {
	return errors.WithHintf(err, "valid %s: %s", kind, strings.Join(valid, " "))
}
