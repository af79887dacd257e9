// file: internal/signature/keys.go

package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strings"
)

const (
	pemHeader = "-----BEGIN PUBLIC KEY-----"
	pemFooter = "-----END PUBLIC KEY-----"

	// curveName is the only curve accepted for sender keys
	curveName = "P-256"
)

// PublicKey is a sender's ECDSA P-256 verification key. It is immutable after
// construction and safe to share between goroutines.
type PublicKey struct {
	key         ecdsa.PublicKey
	fingerprint string
}

// LoadPublicKey parses a PEM-armored SPKI public key. Literal "\n" escape
// sequences are accepted in place of newlines so keys can be passed through
// environment variables.
func LoadPublicKey(pemText string) (*PublicKey, error) {
	text := strings.TrimSpace(strings.ReplaceAll(pemText, `\n`, "\n"))
	if text == "" {
		return nil, &KeyFormatError{Reason: "empty key"}
	}

	// Overlapping armor lines would otherwise pass both affix checks.
	if len(text) < len(pemHeader)+len(pemFooter) ||
		!strings.HasPrefix(text, pemHeader) || !strings.HasSuffix(text, pemFooter) {
		return nil, &KeyFormatError{Reason: "missing PUBLIC KEY armor"}
	}
	body := text[len(pemHeader) : len(text)-len(pemFooter)]
	body = strings.Join(strings.Fields(body), "")
	if body == "" {
		return nil, &KeyFormatError{Reason: "empty key body"}
	}

	der, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, &KeyFormatError{Reason: "malformed base64", Err: err}
	}

	return parseSPKI(der)
}

// LoadPublicKeyFile reads a PEM file and parses it with LoadPublicKey.
func LoadPublicKeyFile(path string) (*PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	return LoadPublicKey(string(data))
}

// NewPublicKey copies an existing ECDSA key into a PublicKey.
func NewPublicKey(pub *ecdsa.PublicKey) (*PublicKey, error) {
	if pub == nil || pub.Curve == nil || pub.X == nil || pub.Y == nil {
		return nil, &KeyFormatError{Reason: "nil key"}
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, &KeyFormatError{Reason: "unencodable key", Err: err}
	}
	return parseSPKI(der)
}

func parseSPKI(der []byte) (*PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, &KeyFormatError{Reason: "malformed SPKI", Err: err}
	}

	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, &KeyFormatError{Reason: fmt.Sprintf("unsupported key type %T", parsed)}
	}
	if ecKey.Curve != elliptic.P256() {
		return nil, &KeyFormatError{Reason: "unsupported curve " + ecKey.Curve.Params().Name}
	}

	sum := sha256.Sum256(der)
	return &PublicKey{
		key: ecdsa.PublicKey{
			Curve: ecKey.Curve,
			X:     new(big.Int).Set(ecKey.X),
			Y:     new(big.Int).Set(ecKey.Y),
		},
		fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// Fingerprint is the hex SHA-256 of the key's SPKI encoding.
func (k *PublicKey) Fingerprint() string { return k.fingerprint }

// CurveName always reports "P-256".
func (k *PublicKey) CurveName() string { return curveName }

// Equal reports whether both keys hold the same point.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if k == nil || other == nil {
		return k == other
	}
	return k.key.Equal(&other.key)
}

// Point returns the fixed-width big-endian X and Y coordinates.
func (k *PublicKey) Point() (x, y []byte) {
	return k.key.X.FillBytes(make([]byte, fieldSize)), k.key.Y.FillBytes(make([]byte, fieldSize))
}
