package types

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyOrTiny signals that a source is too small to be a real playlist.
	ErrEmptyOrTiny = errors.New("playlist is empty or too small")

	// ErrInterrupted signals a user-initiated cancellation of the run.
	ErrInterrupted = errors.New("run interrupted")

	// ErrNoFrame signals that frame sampling produced no image.
	ErrNoFrame = errors.New("no frame could be sampled from capture")

	// ErrNoLinks signals that the link database holds no playlists.
	ErrNoLinks = errors.New("no links found in the database")
)

// InputError is fatal to the run: the source playlist could not be obtained
// or is not a playlist at all.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("input error: %v", e.Err)
	}
	return fmt.Sprintf("input error (%s): %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// SetupError is fatal at startup: a required external tool is missing.
type SetupError struct {
	Missing []string
	Hint    string
}

func (e *SetupError) Error() string {
	msg := fmt.Sprintf("missing required programs: %v", e.Missing)
	if e.Hint != "" {
		msg += "; " + e.Hint
	}
	return msg
}

// ParseError is returned by the playlist parser.
type ParseError struct {
	Size int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error (%d bytes): %v", e.Size, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewInputError wraps err as an InputError for the given source.
func NewInputError(source string, err error) error {
	return &InputError{Source: source, Err: err}
}

// IsInputError reports whether err is, or wraps, an InputError or a ParseError.
func IsInputError(err error) bool {
	var ie *InputError
	var pe *ParseError
	return errors.As(err, &ie) || errors.As(err, &pe)
}

// IsSetupError reports whether err is, or wraps, a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
