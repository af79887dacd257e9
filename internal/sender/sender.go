// file: internal/sender/sender.go

// Package sender describes the webhook senders the gateway accepts and
// locates the signed bytes and signature inside each sender's requests.
package sender

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"webhook-gateway/config"
	"webhook-gateway/internal/signature"
)

var (
	ErrMissingSignature = errors.New("signature is missing")
	ErrMissingPayload   = errors.New("signed payload field is missing")
	ErrMalformedBody    = errors.New("request body is not a JSON object")
)

// Envelope holds the exact bytes that were signed and the transmitted
// base64 signature.
type Envelope struct {
	Payload   []byte
	Signature string
}

// Sender is a webhook origin with its own key, path and signing convention.
type Sender struct {
	Name string
	Path string

	// Exactly one of SignatureHeader or SignatureField is set
	SignatureHeader string
	SignatureField  string

	// PayloadField names a JSON string field holding the signed bytes.
	// Empty means the whole request body is signed.
	PayloadField string

	Encoding signature.Encoding
	Subject  string
}

// Fordefi signs the raw request body and sends a base64 DER signature in the
// X-Signature header.
func Fordefi() Sender {
	return Sender{
		Name:            config.SenderFordefi,
		Path:            "/webhooks/fordefi",
		SignatureHeader: "X-Signature",
		Encoding:        signature.EncodingDER,
		Subject:         "webhooks.fordefi",
	}
}

// Hypernative signs the "data" string field and carries the base64 DER
// signature in the "digitalSignature" field of the same body.
func Hypernative() Sender {
	return Sender{
		Name:           config.SenderHypernative,
		Path:           "/webhooks/hypernative",
		SignatureField: "digitalSignature",
		PayloadField:   "data",
		Encoding:       signature.EncodingDER,
		Subject:        "webhooks.hypernative",
	}
}

// FromConfig builds a Sender from its configuration block.
func FromConfig(name string, cfg config.SenderConfig) (Sender, error) {
	enc, err := signature.ParseEncoding(cfg.Encoding)
	if err != nil {
		return Sender{}, fmt.Errorf("sender %s: %w", name, err)
	}
	return Sender{
		Name:            name,
		Path:            cfg.Path,
		SignatureHeader: cfg.SignatureHeader,
		SignatureField:  cfg.SignatureField,
		PayloadField:    cfg.PayloadField,
		Encoding:        enc,
		Subject:         cfg.Subject,
	}, nil
}

// SignatureSource describes where the signature is read from, for logs.
func (s Sender) SignatureSource() string {
	if s.SignatureHeader != "" {
		return "header:" + s.SignatureHeader
	}
	return "field:" + s.SignatureField
}

// PayloadSource describes which bytes are signed, for logs.
func (s Sender) PayloadSource() string {
	if s.PayloadField == "" {
		return "body"
	}
	return "field:" + s.PayloadField
}

// Extract returns the signed bytes and signature from a request. The body is
// never re-encoded: either it is used as-is or a single JSON string field is
// decoded from it.
func (s Sender) Extract(headers http.Header, body []byte) (Envelope, error) {
	var fields map[string]json.RawMessage
	if s.SignatureField != "" || s.PayloadField != "" {
		if err := json.Unmarshal(body, &fields); err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedBody, err)
		}
		if fields == nil {
			return Envelope{}, ErrMalformedBody
		}
	}

	var env Envelope
	if s.SignatureHeader != "" {
		env.Signature = strings.TrimSpace(headers.Get(s.SignatureHeader))
	} else if value, ok := stringField(fields, s.SignatureField); ok {
		env.Signature = strings.TrimSpace(value)
	}
	if env.Signature == "" {
		return Envelope{}, ErrMissingSignature
	}

	if s.PayloadField == "" {
		env.Payload = body
		return env, nil
	}

	value, ok := stringField(fields, s.PayloadField)
	if !ok {
		return Envelope{}, fmt.Errorf("%w: %s", ErrMissingPayload, s.PayloadField)
	}
	env.Payload = []byte(value)
	return env, nil
}

// stringField decodes fields[name] as a JSON string. Null and non-string
// values are treated as absent.
func stringField(fields map[string]json.RawMessage, name string) (string, bool) {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", false
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", false
	}
	return value, true
}
