package pipeline

import (
	"errors"
	"fmt"
)

// ErrNotFound means there is nothing to process yet. It ends a run
// cleanly.
var ErrNotFound = errors.New("nothing found")

// ParseError indicates the export could not be read as a call document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("parse error: %v", e.Err)
	}
	return fmt.Sprintf("parse error (%s): %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err (or any error in its chain) is a ParseError.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}

// TemplateError indicates a call could not be rendered.
type TemplateError struct {
	// Reference is empty when the template itself failed to parse.
	Reference string
	Err       error
}

func (e *TemplateError) Error() string {
	if e.Reference == "" {
		return fmt.Sprintf("template error: %v", e.Err)
	}
	return fmt.Sprintf("template error (call %s): %v", e.Reference, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// IsTemplateError reports whether err (or any error in its chain) is a
// TemplateError.
func IsTemplateError(err error) bool {
	var tmplErr *TemplateError
	return errors.As(err, &tmplErr)
}
