package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDiscover    Phase = "discover"    // bundle discovery
	PhaseParse       Phase = "parse"       // metadata document parsing
	PhaseLoad        Phase = "load"        // binary module loading
	PhaseInstantiate Phase = "instantiate" // plugin instantiation
	PhaseLifecycle   Phase = "lifecycle"   // activate/deactivate/free
	PhaseState       Phase = "state"       // state save/restore
	PhaseQuery       Phase = "query"       // world queries
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidData       Kind = "invalid_data"
	KindNotFound          Kind = "not_found"
	KindModuleLoad        Kind = "module_load"
	KindMissingEntryPoint Kind = "missing_entry_point"
	KindRefused           Kind = "refused"
	KindOutOfBounds       Kind = "out_of_bounds"
	KindInvalidState      Kind = "invalid_state"
	KindMissingFeature    Kind = "missing_feature"
	KindBadKey            Kind = "bad_key"
	KindUnknownType       Kind = "unknown_type"
	KindStateFailure      Kind = "state_failure"
	KindUnsupported       Kind = "unsupported"
	KindInvalidInput      Kind = "invalid_input"
	KindIO                Kind = "io"
)

// Error is the structured error type used throughout the host.
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Subject string
	Detail  string
	Path    string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Subject != "" {
		b.WriteString(" <")
		b.WriteString(e.Subject)
		b.WriteByte('>')
	}

	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target with an empty
// Phase matches any phase, so the Kind sentinels below work across phases.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is.
var (
	ErrDiscovery         = &Error{Phase: PhaseDiscover, Kind: KindInvalidData}
	ErrPluginNotFound    = &Error{Phase: PhaseLoad, Kind: KindNotFound}
	ErrModuleLoad        = &Error{Phase: PhaseLoad, Kind: KindModuleLoad}
	ErrMissingEntryPoint = &Error{Phase: PhaseLoad, Kind: KindMissingEntryPoint}
	ErrRefused           = &Error{Phase: PhaseInstantiate, Kind: KindRefused}
	ErrPortIndex         = &Error{Kind: KindOutOfBounds}
	ErrInvalidState      = &Error{Phase: PhaseLifecycle, Kind: KindInvalidState}
	ErrMissingFeature    = &Error{Phase: PhaseState, Kind: KindMissingFeature}
	ErrBadKey            = &Error{Phase: PhaseState, Kind: KindBadKey}
	ErrUnknownType       = &Error{Phase: PhaseState, Kind: KindUnknownType}
	ErrStateFailure      = &Error{Phase: PhaseState, Kind: KindStateFailure}
	ErrUnsupported       = &Error{Kind: KindUnsupported}
)

// IsLoadError reports whether err means the plugin binary could not serve the
// requested plugin: missing module, unusable module, or no matching descriptor.
func IsLoadError(err error) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Phase == PhaseLoad
}

// IsRefusal reports whether the plugin itself declined to instantiate.
func IsRefusal(err error) bool {
	return Is(err, ErrRefused)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Subject sets the URI the error is about
func (b *Builder) Subject(uri string) *Builder {
	b.err.Subject = uri
	return b
}

// Path sets the file system location involved
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Discovery creates an error for an unreadable or unparsable bundle document.
func Discovery(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseDiscover,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: "cannot load bundle document",
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// PluginNotFound creates the error returned when no descriptor in a module
// matches the requested plugin URI.
func PluginNotFound(uri, path string) *Error {
	return &Error{
		Phase:   PhaseLoad,
		Kind:    KindNotFound,
		Subject: uri,
		Path:    path,
		Detail:  "plugin not found in module",
	}
}

// ModuleLoad creates a module loading error
func ModuleLoad(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindModuleLoad,
		Path:   path,
		Detail: "cannot load module",
		Cause:  cause,
	}
}

// MissingEntryPoint creates an error for a module lacking a mandatory export.
func MissingEntryPoint(path, name string) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindMissingEntryPoint,
		Path:   path,
		Detail: fmt.Sprintf("missing entry point %q", name),
		Value:  name,
	}
}

// Refused creates the error returned when a plugin's instantiate declines.
func Refused(uri string) *Error {
	return &Error{
		Phase:   PhaseInstantiate,
		Kind:    KindRefused,
		Subject: uri,
		Detail:  "plugin refused to instantiate",
	}
}

// PortIndex creates an out of range port error
func PortIndex(phase Phase, uri string, index, count uint32) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOutOfBounds,
		Subject: uri,
		Detail:  fmt.Sprintf("port index %d out of range (plugin has %d ports)", index, count),
		Value:   index,
	}
}

// InvalidState creates an error for a lifecycle call made in the wrong state.
func InvalidState(op, state string) *Error {
	return &Error{
		Phase:  PhaseLifecycle,
		Kind:   KindInvalidState,
		Detail: fmt.Sprintf("%s not allowed in state %s", op, state),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// IO wraps a file system failure.
func IO(phase Phase, path string, cause error) *Error {
	return &Error{
		Phase: phase,
		Kind:  KindIO,
		Path:  path,
		Cause: cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
