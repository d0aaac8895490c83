// Package binderr defines the error taxonomy shared by the binding
// generator packages.
//
// Configuration errors come from descriptors that can never generate
// (unhandled types, ambiguous overloads, bad custodian indexes). Generation
// errors are found lazily, when a particular code path is requested
// (constructing a class that cannot be constructed, a trampoline for a
// class that does not allow subclassing). Both are matched with errors.Is
// against the sentinels below.
package binderr

import (
	"errors"
	"fmt"
)

const Namespace = "bindgen"

var (
	// ErrUnhandledType matches any UnhandledTypeError.
	ErrUnhandledType = errors.New(Namespace + ": unhandled type")
	// ErrConfiguration matches every configuration error, including
	// unhandled types.
	ErrConfiguration = errors.New(Namespace + ": configuration error")
	// ErrCodeGeneration matches every lazily detected generation error.
	ErrCodeGeneration = errors.New(Namespace + ": code generation error")
	// ErrRegistrySealed is returned when the pluggable state of a type
	// registry is changed while a run is emitting.
	ErrRegistrySealed = errors.New(Namespace + ": type registry is sealed during emission")
	// ErrConflictingTransformation is returned when a different rule is
	// registered under a name that is already taken.
	ErrConflictingTransformation = errors.New(Namespace + ": conflicting transformation registration")
)

// Role says where a type is used.
type Role int

const (
	Parameter Role = iota
	Return
)

func (r Role) String() string {
	if r == Return {
		return "return value"
	}
	return "parameter"
}

// UnhandledTypeError reports a signature that no transformation rewrites
// and no handler serves.
type UnhandledTypeError struct {
	CType string
	Role  Role
	// Reason optionally narrows down why the lookup failed.
	Reason string
}

func (e *UnhandledTypeError) Error() string {
	msg := fmt.Sprintf("%s: no %s handler for type %q", Namespace, e.Role, e.CType)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is makes an UnhandledTypeError match both ErrUnhandledType and
// ErrConfiguration.
func (e *UnhandledTypeError) Is(target error) bool {
	return target == ErrUnhandledType || target == ErrConfiguration
}

// ConfigurationError reports a descriptor that cannot be generated as
// configured.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return Namespace + ": " + e.Msg
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// CodeGenerationError reports a code path that was requested but cannot be
// generated.
type CodeGenerationError struct {
	Msg string
}

func (e *CodeGenerationError) Error() string {
	return Namespace + ": " + e.Msg
}

func (e *CodeGenerationError) Is(target error) bool { return target == ErrCodeGeneration }

// Configf builds a ConfigurationError.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Generationf builds a CodeGenerationError.
func Generationf(format string, args ...any) error {
	return &CodeGenerationError{Msg: fmt.Sprintf(format, args...)}
}

// Kind classifies an error for reporting.
type Kind int

const (
	KindOther Kind = iota
	KindConfiguration
	KindGeneration
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindGeneration:
		return "generation"
	default:
		return "other"
	}
}

// KindOf classifies err.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrCodeGeneration):
		return KindGeneration
	default:
		return KindOther
	}
}
