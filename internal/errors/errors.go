package errors

import (
	"errors"
	"strings"
)

// Kind is the closed set of failures the engine reports to its callers.
type Kind int

const (
	Unknown Kind = iota
	ResourceNotFound
	CorruptArchive
	UnsupportedVersion
	EngineInitError
	UseAfterInvalidate
	PipelineError
	InvalidArgument
)

var kindNames = map[Kind]string{
	Unknown:            "Unknown",
	ResourceNotFound:   "ResourceNotFound",
	CorruptArchive:     "CorruptArchive",
	UnsupportedVersion: "UnsupportedVersion",
	EngineInitError:    "EngineInitError",
	UseAfterInvalidate: "UseAfterInvalidate",
	PipelineError:      "PipelineError",
	InvalidArgument:    "InvalidArgument",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// ParseKind maps a kind name back to its Kind. Unrecognized names are Unknown.
func ParseKind(name string) Kind {
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return Unknown
}

// Error carries a Kind plus the operation and resource it happened on.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(e.Kind.String()))
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by Kind so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Path == "" && t.Msg == "" && t.Err == nil
}

func (e *Error) IsUserFacing() {}

func E(kind Kind, op, path, msg string) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Msg: msg}
}

func Wrap(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsResourceNotFound(err error) bool   { return IsKind(err, ResourceNotFound) }
func IsCorruptArchive(err error) bool     { return IsKind(err, CorruptArchive) }
func IsUnsupportedVersion(err error) bool { return IsKind(err, UnsupportedVersion) }
func IsEngineInitError(err error) bool    { return IsKind(err, EngineInitError) }
func IsUseAfterInvalidate(err error) bool { return IsKind(err, UseAfterInvalidate) }
func IsPipelineError(err error) bool      { return IsKind(err, PipelineError) }
func IsInvalidArgument(err error) bool    { return IsKind(err, InvalidArgument) }

type UserFacingError interface {
	IsUserFacing()
}

type Causer interface {
	Cause() error
}

func GetPublicMessage(err error, fallback string) string {
	var uf UserFacingError
	if errors.As(err, &uf) {
		return err.Error()
	}
	return fallback
}

type TaggedError struct {
	msg   string
	cause error
}

func (t *TaggedError) Error() string {
	return t.msg + ": " + t.cause.Error()
}

func (t *TaggedError) Cause() error {
	return t.cause
}

func (t *TaggedError) Unwrap() error {
	return t.cause
}

func Tag(err error, msg string) *TaggedError {
	return &TaggedError{msg: msg, cause: err}
}

func GetCause(err error) error {
	if causer, ok := err.(Causer); ok {
		return GetCause(causer.Cause())
	}
	return err
}

type MergedError struct {
	errors []error
}

func (m *MergedError) Error() string {
	if len(m.errors) == 1 {
		return m.errors[0].Error()
	}
	var b strings.Builder
	b.WriteString("merged: ")
	for i, err := range m.errors {
		if i != 0 {
			b.WriteString(" + ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (m *MergedError) Unwrap() []error {
	return m.errors
}

func (m *MergedError) Add(err error) {
	if err != nil {
		m.errors = append(m.errors, err)
	}
}

func (m *MergedError) Finalize() error {
	if len(m.errors) == 0 {
		return nil
	}
	if len(m.errors) == 1 {
		return m.errors[0]
	}
	return m
}

func Merge(errs ...error) error {
	m := MergedError{}
	for _, err := range errs {
		m.Add(err)
	}
	return m.Finalize()
}

var (
	New = errors.New
	Is  = errors.Is
	As  = errors.As
)
