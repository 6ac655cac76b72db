package dane

import "fmt"

// Kind classifies the error conditions a DANE operation can raise. The
// set mirrors the taxonomy of the reference implementation this library
// follows, so callers can switch on Kind without parsing error strings.
type Kind int

const (
	_ Kind = iota
	KindBadUsage
	KindBadSelector
	KindBadDigest
	KindBadDataLength
	KindBadNullData
	KindBadCert
	KindBadCertPKey
	KindBadPKey
	KindNoSignKey
	KindDaneSupport
	KindDaneInit
	KindSctxInit
	KindLibraryInit
	KindAlloc
)

func (k Kind) String() string {
	switch k {
	case KindBadUsage:
		return "bad usage"
	case KindBadSelector:
		return "bad selector"
	case KindBadDigest:
		return "bad digest"
	case KindBadDataLength:
		return "bad data length"
	case KindBadNullData:
		return "null data"
	case KindBadCert:
		return "bad certificate"
	case KindBadCertPKey:
		return "bad certificate public key"
	case KindBadPKey:
		return "bad public key"
	case KindNoSignKey:
		return "no signing key available"
	case KindDaneSupport:
		return "platform lacks DANE-TA support"
	case KindDaneInit:
		return "handle not DANE-initialized"
	case KindSctxInit:
		return "TLS context not initialized"
	case KindLibraryInit:
		return "library not initialized"
	case KindAlloc:
		return "allocation failure"
	default:
		return "unknown"
	}
}

// Error is the error type raised by every exported dane operation that
// can fail. It carries a Kind for programmatic dispatch and an optional
// set of diagnostic fields, in the style of maddy's exterrors package:
// outer context is attached without discarding the wrapped cause.
type Error struct {
	Kind   Kind
	Err    error
	Fields map[string]interface{}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dane: %s: %s", e.Kind, e.Err)
	}
	return fmt.Sprintf("dane: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newErr constructs an *Error, optionally wrapping a cause and attaching
// diagnostic fields. fields must be passed as alternating key/value
// pairs; an odd count is a programmer error and panics.
func newErr(kind Kind, cause error, fields ...interface{}) *Error {
	e := &Error{Kind: kind, Err: cause}
	if len(fields) > 0 {
		if len(fields)%2 != 0 {
			panic("dane: newErr: odd number of field arguments")
		}
		e.Fields = make(map[string]interface{}, len(fields)/2)
		for i := 0; i < len(fields); i += 2 {
			key, ok := fields[i].(string)
			if !ok {
				panic("dane: newErr: field key must be a string")
			}
			e.Fields[key] = fields[i+1]
		}
	}
	return e
}

// IsKind reports whether err is a *Error (possibly wrapped) of the given
// Kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
