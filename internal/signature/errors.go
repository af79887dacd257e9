// file: internal/signature/errors.go

package signature

import (
	"errors"
	"fmt"
)

// ErrCryptoMismatch is returned when a well-formed signature does not verify
// against the payload and key.
var ErrCryptoMismatch = errors.New("signature does not match payload")

// KeyFormatError reports an unusable public key. It is a startup error.
type KeyFormatError struct {
	Reason string
	Err    error
}

func (e *KeyFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid public key: %s: %v", e.Reason, e.Err)
	}
	return "invalid public key: " + e.Reason
}

func (e *KeyFormatError) Unwrap() error { return e.Err }

// SignatureFormatError reports a structurally invalid signature encoding.
// Offset is the byte position where decoding stopped.
type SignatureFormatError struct {
	Offset int
	Reason string
}

func (e *SignatureFormatError) Error() string {
	return fmt.Sprintf("malformed signature at byte %d: %s", e.Offset, e.Reason)
}

// EncodingError reports a signature string that is not valid base64.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("signature is not valid base64: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// InternalError wraps a panic recovered during verification.
type InternalError struct {
	Value interface{}
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal verification failure: %v", e.Value)
}

// Reason maps a verification error to a short, stable label for logs and
// metrics. A nil error maps to "verified".
func Reason(err error) string {
	var (
		keyErr *KeyFormatError
		sigErr *SignatureFormatError
		encErr *EncodingError
		intErr *InternalError
	)
	switch {
	case err == nil:
		return "verified"
	case errors.Is(err, ErrCryptoMismatch):
		return "mismatch"
	case errors.As(err, &sigErr):
		return "malformed_signature"
	case errors.As(err, &encErr):
		return "malformed_encoding"
	case errors.As(err, &keyErr):
		return "bad_key"
	case errors.As(err, &intErr):
		return "internal"
	default:
		return "error"
	}
}
