// file: internal/signature/verifier.go

package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/base64"
	"math/big"
	"strings"
	"time"

	"webhook-gateway/internal/logger"
)

// previewLength bounds how much of a signature is echoed into logs
const previewLength = 16

// Observer receives the outcome of every verification attempt.
type Observer interface {
	ObserveVerification(sender, result string, duration time.Duration)
}

// Result is the internal outcome of a verification attempt. Err is nil only
// when the signature verified.
type Result struct {
	Sender string
	Err    error
}

// Verified reports whether the signature was accepted.
func (r Result) Verified() bool { return r.Err == nil }

// Reason is a short label describing the outcome.
func (r Result) Reason() string { return Reason(r.Err) }

// Verifier checks ECDSA P-256 / SHA-256 signatures for a single sender.
// It holds no mutable state and is safe for concurrent use.
type Verifier struct {
	sender   string
	key      *PublicKey
	encoding Encoding
	logger   *logger.Logger
	observer Observer
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithEncoding sets the wire encoding the sender uses. Default is DER.
func WithEncoding(enc Encoding) Option {
	return func(v *Verifier) { v.encoding = enc }
}

// WithLogger enables debug diagnostics for each attempt.
func WithLogger(l *logger.Logger) Option {
	return func(v *Verifier) { v.logger = l }
}

// WithObserver reports outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(v *Verifier) { v.observer = o }
}

// NewVerifier creates a verifier bound to one sender's key.
func NewVerifier(sender string, key *PublicKey, opts ...Option) (*Verifier, error) {
	if key == nil {
		return nil, &KeyFormatError{Reason: "no key for sender " + sender}
	}
	v := &Verifier{
		sender:   sender,
		key:      key,
		encoding: EncodingDER,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Sender returns the sender name the verifier was built for.
func (v *Verifier) Sender() string { return v.sender }

// Encoding returns the signature encoding the verifier expects.
func (v *Verifier) Encoding() Encoding { return v.encoding }

// Verify reports whether signatureBase64 is a valid signature over payload.
// Every failure, including malformed input, yields false.
func (v *Verifier) Verify(payload []byte, signatureBase64 string) bool {
	switch res := v.Check(payload, signatureBase64); {
	case res.Verified():
		return true
	default:
		return false
	}
}

// Check verifies the signature and returns the detailed result. Callers that
// gate requests should use Verify.
func (v *Verifier) Check(payload []byte, signatureBase64 string) (res Result) {
	start := time.Now()
	res.Sender = v.sender

	defer func() {
		if p := recover(); p != nil {
			res.Err = &InternalError{Value: p}
		}
		v.report(res, len(payload), signatureBase64, time.Since(start))
	}()

	res.Err = check(v.key, v.encoding, payload, signatureBase64)
	return res
}

// Verify checks a base64 DER signature over payload with key.
func Verify(key *PublicKey, payload []byte, signatureBase64 string) bool {
	v := &Verifier{key: key, encoding: EncodingDER}
	return v.Verify(payload, signatureBase64)
}

func check(key *PublicKey, enc Encoding, payload []byte, signatureBase64 string) error {
	if key == nil {
		return &KeyFormatError{Reason: "nil key"}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureBase64))
	if err != nil {
		return &EncodingError{Err: err}
	}

	sig, err := Normalize(raw, enc)
	if err != nil {
		return err
	}

	digest := sha256.Sum256(payload)
	r := new(big.Int).SetBytes(sig[:fieldSize])
	s := new(big.Int).SetBytes(sig[fieldSize:])
	if !ecdsa.Verify(&key.key, digest[:], r, s) {
		return ErrCryptoMismatch
	}
	return nil
}

func (v *Verifier) report(res Result, payloadLen int, signatureBase64 string, d time.Duration) {
	if v.observer != nil {
		v.observer.ObserveVerification(v.sender, res.Reason(), d)
	}
	if v.logger == nil {
		return
	}

	if res.Verified() {
		v.logger.Debug("signature verified",
			"sender", v.sender,
			"payloadLength", payloadLen,
			"signatureLength", len(signatureBase64),
			"duration", d)
		return
	}

	v.logger.Debug("signature verification failed",
		"sender", v.sender,
		"reason", res.Reason(),
		"error", res.Err,
		"payloadLength", payloadLen,
		"signatureLength", len(signatureBase64),
		"signaturePreview", preview(signatureBase64),
		"duration", d)
}

func preview(s string) string {
	if len(s) <= previewLength {
		return s
	}
	return s[:previewLength] + "..."
}
