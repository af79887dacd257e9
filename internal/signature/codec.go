// file: internal/signature/codec.go

package signature

import (
	"fmt"
	"strings"
)

const (
	// fieldSize is the byte length of a P-256 scalar
	fieldSize = 32

	// P1363Size is the length of a normalized signature: r || s
	P1363Size = 2 * fieldSize

	tagSequence = 0x30
	tagInteger  = 0x02
)

// Encoding identifies how a sender transmits its signature bytes.
type Encoding int

const (
	// EncodingDER is ASN.1 DER: SEQUENCE { INTEGER r, INTEGER s }
	EncodingDER Encoding = iota
	// EncodingP1363 is fixed-width r || s
	EncodingP1363
)

func (e Encoding) String() string {
	switch e {
	case EncodingDER:
		return "der"
	case EncodingP1363:
		return "p1363"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// ParseEncoding parses a configured encoding name. Empty means DER.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "der", "asn1":
		return EncodingDER, nil
	case "p1363", "raw":
		return EncodingP1363, nil
	default:
		return 0, fmt.Errorf("unknown signature encoding: %s", name)
	}
}

// Normalize converts a raw signature in the given encoding to the 64-byte
// P1363 form consumed by verification.
func Normalize(raw []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingDER:
		return DERToP1363(raw)
	case EncodingP1363:
		if len(raw) != P1363Size {
			return nil, &SignatureFormatError{
				Offset: min(len(raw), P1363Size),
				Reason: fmt.Sprintf("P1363 signature must be %d bytes, got %d", P1363Size, len(raw)),
			}
		}
		if isZero(raw[:fieldSize]) {
			return nil, &SignatureFormatError{Offset: 0, Reason: "r is zero"}
		}
		if isZero(raw[fieldSize:]) {
			return nil, &SignatureFormatError{Offset: fieldSize, Reason: "s is zero"}
		}
		out := make([]byte, P1363Size)
		copy(out, raw)
		return out, nil
	default:
		return nil, &SignatureFormatError{Reason: "unsupported encoding " + enc.String()}
	}
}

// DERToP1363 decodes a DER ECDSA signature into r || s, each left-padded to
// 32 bytes. Only canonical DER is accepted: short-form lengths, minimal
// positive integers, and no bytes after s.
func DERToP1363(der []byte) ([]byte, error) {
	r := &derReader{buf: der}

	if err := r.expectTag(tagSequence, "SEQUENCE"); err != nil {
		return nil, err
	}
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if remaining := len(der) - r.pos; n != remaining {
		if n > remaining {
			return nil, r.failAt(r.pos, fmt.Sprintf("SEQUENCE length %d exceeds remaining %d bytes", n, remaining))
		}
		return nil, r.failAt(r.pos+n, "trailing bytes after SEQUENCE")
	}

	rv, err := r.readInteger("r")
	if err != nil {
		return nil, err
	}
	sv, err := r.readInteger("s")
	if err != nil {
		return nil, err
	}
	if r.pos != len(der) {
		return nil, r.failAt(r.pos, "trailing bytes after s")
	}

	out := make([]byte, P1363Size)
	copy(out[fieldSize-len(rv):fieldSize], rv)
	copy(out[P1363Size-len(sv):], sv)
	return out, nil
}

// P1363ToDER encodes a 64-byte r || s signature as minimal DER.
func P1363ToDER(sig []byte) ([]byte, error) {
	if len(sig) != P1363Size {
		return nil, &SignatureFormatError{
			Offset: min(len(sig), P1363Size),
			Reason: fmt.Sprintf("P1363 signature must be %d bytes, got %d", P1363Size, len(sig)),
		}
	}
	if isZero(sig[:fieldSize]) {
		return nil, &SignatureFormatError{Offset: 0, Reason: "r is zero"}
	}
	if isZero(sig[fieldSize:]) {
		return nil, &SignatureFormatError{Offset: fieldSize, Reason: "s is zero"}
	}

	body := appendInteger(nil, sig[:fieldSize])
	body = appendInteger(body, sig[fieldSize:])

	out := make([]byte, 0, 2+len(body))
	out = append(out, tagSequence, byte(len(body)))
	return append(out, body...), nil
}

// appendInteger writes v as a minimal, non-negative DER INTEGER.
func appendInteger(dst, v []byte) []byte {
	for len(v) > 1 && v[0] == 0 {
		v = v[1:]
	}
	length := len(v)
	pad := v[0]&0x80 != 0
	if pad {
		length++
	}
	dst = append(dst, tagInteger, byte(length))
	if pad {
		dst = append(dst, 0x00)
	}
	return append(dst, v...)
}

// derReader is a bounds-checked cursor over an untrusted DER buffer.
type derReader struct {
	buf []byte
	pos int
}

func (r *derReader) failAt(offset int, reason string) error {
	return &SignatureFormatError{Offset: offset, Reason: reason}
}

func (r *derReader) readByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, r.failAt(r.pos, "unexpected end of input")
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

func (r *derReader) expectTag(tag byte, name string) error {
	start := r.pos
	b, err := r.readByte()
	if err != nil {
		return err
	}
	if b != tag {
		return r.failAt(start, fmt.Sprintf("expected %s tag 0x%02x, got 0x%02x", name, tag, b))
	}
	return nil
}

// readLength only accepts the short form; a P-256 signature never needs more.
func (r *derReader) readLength() (int, error) {
	start := r.pos
	b, err := r.readByte()
	if err != nil {
		return 0, err
	}
	if b&0x80 != 0 {
		return 0, r.failAt(start, "long-form length not allowed")
	}
	return int(b), nil
}

func (r *derReader) readBytes(n int) ([]byte, error) {
	if n > len(r.buf)-r.pos {
		return nil, r.failAt(r.pos, fmt.Sprintf("length %d exceeds remaining %d bytes", n, len(r.buf)-r.pos))
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// readInteger reads one INTEGER and returns its magnitude without the DER
// sign pad. The returned slice aliases the input buffer.
func (r *derReader) readInteger(name string) ([]byte, error) {
	if err := r.expectTag(tagInteger, "INTEGER "+name); err != nil {
		return nil, err
	}
	n, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, r.failAt(r.pos, name+" has zero length")
	}

	start := r.pos
	v, err := r.readBytes(n)
	if err != nil {
		return nil, err
	}

	if v[0]&0x80 != 0 {
		return nil, r.failAt(start, name+" is negative")
	}
	if v[0] == 0x00 && len(v) > 1 {
		if v[1]&0x80 == 0 {
			return nil, r.failAt(start, name+" has non-canonical leading zero")
		}
		v = v[1:]
	}
	if len(v) > fieldSize {
		return nil, r.failAt(start, fmt.Sprintf("%s is %d bytes, exceeds %d", name, len(v), fieldSize))
	}
	if isZero(v) {
		return nil, r.failAt(start, name+" is zero")
	}
	return v, nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
