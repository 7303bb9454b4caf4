package redpen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsawler/redpen/format"
	"github.com/tsawler/redpen/model"
)

// ErrUnsupportedFormat is returned when the input bytes match none of
// the supported document families. It is the one condition under which
// Annotate produces no artifact at all.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// CodecError reports that a document claiming a supported format could
// not be parsed or serialized. Annotate converts it into a warning and
// returns the fallback artifact instead.
type CodecError struct {
	Format format.Format
	Op     string // "parse" or "serialize"
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("%s codec: %s: %v", e.Format, e.Op, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

// PartialMutationError reports that some located placeholders were
// annotated and others failed. The returned artifact carries the
// successful mutations; the error lists what went wrong.
type PartialMutationError struct {
	Applied int
	Errs    []error
}

func (e *PartialMutationError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("annotation partially applied (%d succeeded): %s",
		e.Applied, strings.Join(msgs, "; "))
}

func (e *PartialMutationError) Unwrap() error {
	if len(e.Errs) > 0 {
		return e.Errs[0]
	}
	return nil
}

// RasterizationError reports that one annotation could not be rendered
// to an image. Annotate skips the affected region and records a
// warning; the rest of the document is still annotated.
type RasterizationError struct {
	Category model.Category
	Err      error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterizing %s annotation: %v", e.Category, e.Err)
}

func (e *RasterizationError) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal issue encountered during annotation: a skipped
// region, a fallback substitution, missing OCR support. The operation
// succeeded but the result may be incomplete.
type Warning struct {
	Message string
}

// FormatWarnings joins warnings into a single printable string.
func FormatWarnings(warnings []Warning) string {
	if len(warnings) == 0 {
		return ""
	}
	msgs := make([]string, len(warnings))
	for i, w := range warnings {
		msgs[i] = w.Message
	}
	return strings.Join(msgs, "; ")
}

func warnf(warnings []Warning, format string, args ...interface{}) []Warning {
	return append(warnings, Warning{Message: fmt.Sprintf(format, args...)})
}
