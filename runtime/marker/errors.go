package marker

import "fmt"

// ErrorCode identifies a specific marker declaration or configuration error
type ErrorCode string

const (
	// ErrCircularReference indicates a marker type appears twice in one
	// meta-marker chain.
	ErrCircularReference ErrorCode = "MRK101"
	// ErrUnknownAliasTarget indicates an alias names a marker type or
	// attribute that does not exist.
	ErrUnknownAliasTarget ErrorCode = "MRK102"
	// ErrSelfAlias indicates an attribute declares itself as its alias target.
	ErrSelfAlias ErrorCode = "MRK103"
	// ErrIncompatibleAlias indicates two aliased attributes have incompatible
	// value types.
	ErrIncompatibleAlias ErrorCode = "MRK104"
	// ErrDivergentAliasValues indicates mutually-aliased attributes carry
	// values that disagree on a bound instance.
	ErrDivergentAliasValues ErrorCode = "MRK105"
	// ErrAttributeIndexOutOfRange indicates an attribute index outside the
	// declared attribute array.
	ErrAttributeIndexOutOfRange ErrorCode = "MRK106"
	// ErrMalformedContainer indicates a repeatable container lacks the single
	// "value" array attribute the convention requires.
	ErrMalformedContainer ErrorCode = "MRK107"

	// ErrInstanceTypeMismatch indicates an instance was bound to a mapping
	// for a different marker type.
	ErrInstanceTypeMismatch ErrorCode = "MRK201"
	// ErrRootFiltered indicates a root marker type is rejected by the filter
	// supplied for its own chain.
	ErrRootFiltered ErrorCode = "MRK202"
	// ErrUnboundAuthority indicates an authoritative attribute sits on an
	// unbound non-root mapping, which only a broken chain can produce.
	ErrUnboundAuthority ErrorCode = "MRK203"
	// ErrUnknownMarkerType indicates a marker type name that is not
	// registered in the schema.
	ErrUnknownMarkerType ErrorCode = "MRK204"
	// ErrDuplicateMarkerType indicates the same marker type was supplied
	// twice when composing an explicit chain.
	ErrDuplicateMarkerType ErrorCode = "MRK205"
	// ErrMissingArgument indicates a construction call was given no marker
	// type or no instances to build from.
	ErrMissingArgument ErrorCode = "MRK206"
)

// Error represents a marker declaration or configuration defect. These are
// static errors in the registered schema or in how the engine was invoked,
// never transient conditions, so they are not retried: a failed construction
// is reported to the triggering caller and nothing is cached.
type Error struct {
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the marker error code from an error, if it carries one.
func CodeOf(err error) (ErrorCode, bool) {
	if me, ok := err.(*Error); ok {
		return me.Code, true
	}
	return "", false
}
