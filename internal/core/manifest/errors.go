package manifest

import "fmt"

// Kind classifies a failure surfaced by the manifest store.
type Kind string

const (
	KindManifestNotFound      Kind = "manifest_not_found"
	KindManifestParse         Kind = "manifest_parse"
	KindUnitManifestNotFound  Kind = "unit_manifest_not_found"
	KindSecurityViolation     Kind = "security_violation"
	KindUnsupportedReaderKind Kind = "unsupported_reader_kind"
	KindArchiveIO             Kind = "archive_io"
	KindWriteIO               Kind = "write_io"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrManifestNotFound      = &Error{Kind: KindManifestNotFound}
	ErrManifestParse         = &Error{Kind: KindManifestParse}
	ErrUnitManifestNotFound  = &Error{Kind: KindUnitManifestNotFound}
	ErrSecurityViolation     = &Error{Kind: KindSecurityViolation}
	ErrUnsupportedReaderKind = &Error{Kind: KindUnsupportedReaderKind}
	ErrArchiveIO             = &Error{Kind: KindArchiveIO}
	ErrWriteIO               = &Error{Kind: KindWriteIO}
)

// Error is returned by every store operation that fails. Path names the
// offending file, archive member or field.
type Error struct {
	Kind Kind
	Path string
	Msg  string
	Err  error
}

// NewError builds an Error wrapping cause.
func NewError(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Err: cause}
}

// Errorf builds an Error with a formatted message and no cause.
func Errorf(kind Kind, path string, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Path: path, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	detail := e.Msg
	if e.Err != nil {
		if detail != "" {
			detail += ": " + e.Err.Error()
		} else {
			detail = e.Err.Error()
		}
	}
	switch {
	case e.Path != "" && detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Path, detail)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Path)
	case detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, detail)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
