package fnerr

import (
	"errors"
	"fmt"
	"strings"
)

// Stage indicates where in the host the error occurred.
type Stage string

const (
	StageValidate    Stage = "validate"    // request preconditions
	StageInspect     Stage = "inspect"     // artifact enumeration
	StageResolve     Stage = "resolve"     // module loading and symbol lookup
	StageInstantiate Stage = "instantiate" // handler construction
	StageInvoke      Stage = "invoke"      // request dispatch
)

// Kind categorizes the error.
type Kind string

const (
	KindArtifactNotFound      Kind = "ArtifactNotFound"
	KindArtifactUnreadable    Kind = "ArtifactUnreadable"
	KindEntryPointMissing     Kind = "EntryPointMissing"
	KindDependencyLoadFailed  Kind = "DependencyLoadFailed"
	KindCapabilityMismatch    Kind = "CapabilityMismatch"
	KindInstantiationFailed   Kind = "InstantiationFailed"
	KindAccessDenied          Kind = "AccessDenied"
	KindNotSpecialized        Kind = "NotSpecialized"
	KindHandlerExecutionError Kind = "HandlerExecutionError"
)

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrArtifactNotFound      = &Error{Kind: KindArtifactNotFound}
	ErrArtifactUnreadable    = &Error{Kind: KindArtifactUnreadable}
	ErrEntryPointMissing     = &Error{Kind: KindEntryPointMissing}
	ErrDependencyLoadFailed  = &Error{Kind: KindDependencyLoadFailed}
	ErrCapabilityMismatch    = &Error{Kind: KindCapabilityMismatch}
	ErrInstantiationFailed   = &Error{Kind: KindInstantiationFailed}
	ErrAccessDenied          = &Error{Kind: KindAccessDenied}
	ErrNotSpecialized        = &Error{Kind: KindNotSpecialized}
	ErrHandlerExecutionError = &Error{Kind: KindHandlerExecutionError}
)

// Error is the structured error returned by the host and its loading stages.
type Error struct {
	Cause  error
	Kind   Kind
	Stage  Stage
	Module string // module or entry point involved, if any
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	if e.Stage != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Stage))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Module != "" {
		b.WriteString(" (")
		b.WriteString(e.Module)
		b.WriteByte(')')
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

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ModuleOf returns the module named by the first *Error in err's chain.
func ModuleOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Module
	}
	return ""
}

// ArtifactNotFound reports a location that does not resolve.
func ArtifactNotFound(location string, cause error) *Error {
	return &Error{
		Kind:   KindArtifactNotFound,
		Stage:  StageInspect,
		Detail: fmt.Sprintf("artifact %q not found", location),
		Cause:  cause,
	}
}

// ArtifactUnreadable reports an artifact that exists but cannot be opened or parsed.
func ArtifactUnreadable(location, detail string, cause error) *Error {
	return &Error{
		Kind:   KindArtifactUnreadable,
		Stage:  StageInspect,
		Detail: fmt.Sprintf("%s: %s", location, detail),
		Cause:  cause,
	}
}

// EntryPointMissing reports an empty entry point or one that names no loaded module.
func EntryPointMissing(stage Stage, entryPoint string) *Error {
	detail := "entry point is required"
	if entryPoint != "" {
		detail = fmt.Sprintf("entry point %q not found in artifact", entryPoint)
	}
	return &Error{
		Kind:   KindEntryPointMissing,
		Stage:  stage,
		Module: entryPoint,
		Detail: detail,
	}
}

// DependencyLoadFailed names the first module that could not be loaded.
func DependencyLoadFailed(module, detail string, cause error) *Error {
	return &Error{
		Kind:   KindDependencyLoadFailed,
		Stage:  StageResolve,
		Module: module,
		Detail: detail,
		Cause:  cause,
	}
}

// CapabilityMismatch reports an entry point without the handler exports.
func CapabilityMismatch(module, detail string) *Error {
	return &Error{
		Kind:   KindCapabilityMismatch,
		Stage:  StageResolve,
		Module: module,
		Detail: detail,
	}
}

// InstantiationFailed wraps an error raised by the entry point's own
// initialization.
func InstantiationFailed(module string, cause error) *Error {
	return &Error{
		Kind:   KindInstantiationFailed,
		Stage:  StageInstantiate,
		Module: module,
		Detail: "instantiate handler",
		Cause:  cause,
	}
}

// AccessDenied reports an entry point that needs a capability the host does
// not grant.
func AccessDenied(module, detail string) *Error {
	return &Error{
		Kind:   KindAccessDenied,
		Stage:  StageInstantiate,
		Module: module,
		Detail: detail,
	}
}

// NotSpecialized reports an invocation with no active handler.
func NotSpecialized() *Error {
	return &Error{
		Kind:   KindNotSpecialized,
		Stage:  StageInvoke,
		Detail: "container not specialized",
	}
}

// HandlerExecution wraps an error raised by the active handler.
func HandlerExecution(module string, cause error) *Error {
	return &Error{
		Kind:   KindHandlerExecutionError,
		Stage:  StageInvoke,
		Module: module,
		Detail: "handler failed",
		Cause:  cause,
	}
}
