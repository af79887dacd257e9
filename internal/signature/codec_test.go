// file: internal/signature/codec_test.go

package signature

import (
	"bytes"
	"crypto/rand"
	"encoding/asn1"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// derSig hand-assembles SEQUENCE { INTEGER r, INTEGER s } from raw contents.
func derSig(r, s []byte) []byte {
	body := append([]byte{tagInteger, byte(len(r))}, r...)
	body = append(body, tagInteger, byte(len(s)))
	body = append(body, s...)
	return append([]byte{tagSequence, byte(len(body))}, body...)
}

func fixed(prefix []byte, fill byte) []byte {
	out := bytes.Repeat([]byte{fill}, fieldSize)
	copy(out, prefix)
	return out
}

func TestDERToP1363_Valid(t *testing.T) {
	high := fixed([]byte{0x80}, 0x11)
	low := fixed([]byte{0x7f}, 0x22)

	tests := []struct {
		name  string
		der   []byte
		wantR []byte
		wantS []byte
	}{
		{
			name:  "full width values",
			der:   derSig(low, low),
			wantR: low,
			wantS: low,
		},
		{
			name:  "high bit set needs pad byte",
			der:   derSig(append([]byte{0x00}, high...), append([]byte{0x00}, high...)),
			wantR: high,
			wantS: high,
		},
		{
			name:  "short values are left padded",
			der:   derSig([]byte{0x01}, []byte{0x7f, 0xff}),
			wantR: append(make([]byte, 31), 0x01),
			wantS: append(make([]byte, 30), 0x7f, 0xff),
		},
		{
			name:  "short value with pad byte",
			der:   derSig([]byte{0x00, 0x80}, low),
			wantR: append(make([]byte, 31), 0x80),
			wantS: low,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DERToP1363(tt.der)
			require.NoError(t, err)
			require.Len(t, got, P1363Size)
			assert.Equal(t, tt.wantR, got[:fieldSize])
			assert.Equal(t, tt.wantS, got[fieldSize:])
		})
	}
}

func TestDERToP1363_Rejects(t *testing.T) {
	low := fixed([]byte{0x7f}, 0x22)
	valid := derSig(low, low)

	withSeqLen := func(b []byte, n byte) []byte {
		out := append([]byte(nil), b...)
		out[1] = n
		return out
	}

	tests := []struct {
		name string
		der  []byte
	}{
		{name: "empty input", der: nil},
		{name: "wrong outer tag", der: append([]byte{0x31}, valid[1:]...)},
		{name: "long form sequence length", der: append([]byte{tagSequence, 0x81, byte(len(valid) - 2)}, valid[2:]...)},
		{name: "sequence length exceeds input", der: withSeqLen(valid, byte(len(valid)))},
		{name: "truncated", der: valid[:len(valid)-1]},
		{name: "trailing byte outside sequence", der: append(append([]byte(nil), valid...), 0x00)},
		{name: "trailing byte inside sequence", der: withSeqLen(append(append([]byte(nil), valid...), 0x00), byte(len(valid)-1))},
		{name: "unnecessary pad byte on r", der: derSig(append([]byte{0x00}, low...), low)},
		{name: "unnecessary pad byte on s", der: derSig(low, []byte{0x00, 0x01})},
		{name: "negative r", der: derSig(fixed([]byte{0x80}, 0x11), low)},
		{name: "r 33 bytes without pad", der: derSig(append([]byte{0x01}, low...), low)},
		{name: "s 34 bytes with pad", der: derSig(low, append([]byte{0x00, 0x80}, low...))},
		{name: "zero r", der: derSig([]byte{0x00}, low)},
		{name: "zero length s", der: derSig(low, nil)},
		{name: "wrong integer tag", der: func() []byte {
			b := append([]byte(nil), valid...)
			b[2] = 0x03
			return b
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DERToP1363(tt.der)
			require.Error(t, err)
			assert.Nil(t, got)

			var sigErr *SignatureFormatError
			assert.True(t, errors.As(err, &sigErr), "expected SignatureFormatError, got %T", err)
		})
	}
}

func TestDERToP1363_NonCanonicalPadInRange(t *testing.T) {
	// 33-byte r: 0x00 followed by a byte whose high bit is clear
	r := append([]byte{0x00, 0x12}, bytes.Repeat([]byte{0x34}, 31)...)
	s := fixed([]byte{0x01}, 0x02)

	_, err := DERToP1363(derSig(r, s))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-canonical")
}

func TestDERToP1363_Deterministic(t *testing.T) {
	der := derSig([]byte{0x00, 0x90, 0x01}, []byte{0x05})
	first, err := DERToP1363(der)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := DERToP1363(der)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	bad := derSig([]byte{0x00, 0x10}, []byte{0x05})
	_, firstErr := DERToP1363(bad)
	_, secondErr := DERToP1363(bad)
	assert.Equal(t, firstErr, secondErr)
}

func TestDERToP1363_MatchesASN1Encoder(t *testing.T) {
	type ecdsaSig struct {
		R, S *big.Int
	}

	for i := 0; i < 200; i++ {
		want := randomP1363(t)
		r := new(big.Int).SetBytes(want[:fieldSize])
		s := new(big.Int).SetBytes(want[fieldSize:])

		der, err := asn1.Marshal(ecdsaSig{R: r, S: s})
		require.NoError(t, err)

		got, err := DERToP1363(der)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestP1363ToDER_RoundTrip(t *testing.T) {
	for i := 0; i < 200; i++ {
		want := randomP1363(t)

		der, err := P1363ToDER(want)
		require.NoError(t, err)

		got, err := DERToP1363(der)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestP1363ToDER_Minimal(t *testing.T) {
	sig := make([]byte, P1363Size)
	sig[fieldSize-1] = 0x01
	sig[fieldSize] = 0x80

	der, err := P1363ToDER(sig)
	require.NoError(t, err)

	want := derSig([]byte{0x01}, append([]byte{0x00, 0x80}, make([]byte, 31)...))
	assert.Equal(t, want, der)
}

func TestP1363ToDER_Rejects(t *testing.T) {
	_, err := P1363ToDER(make([]byte, 63))
	assert.Error(t, err)

	_, err = P1363ToDER(make([]byte, P1363Size))
	assert.Error(t, err)

	half := make([]byte, P1363Size)
	half[0] = 1
	_, err = P1363ToDER(half)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	sig := randomP1363(t)
	der, err := P1363ToDER(sig)
	require.NoError(t, err)

	got, err := Normalize(der, EncodingDER)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	got, err = Normalize(sig, EncodingP1363)
	require.NoError(t, err)
	assert.Equal(t, sig, got)

	_, err = Normalize(der, EncodingP1363)
	assert.Error(t, err)

	_, err = Normalize(sig, EncodingDER)
	assert.Error(t, err)

	zeroS := append(append([]byte(nil), sig[:fieldSize]...), make([]byte, fieldSize)...)
	_, err = Normalize(zeroS, EncodingP1363)
	assert.Error(t, err)
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{in: "", want: EncodingDER},
		{in: "DER", want: EncodingDER},
		{in: "asn1", want: EncodingDER},
		{in: "p1363", want: EncodingP1363},
		{in: " raw ", want: EncodingP1363},
		{in: "jws", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEncoding(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// randomP1363 returns a random r || s with non-zero halves. Leading zero
// bytes are forced on some draws to exercise padding.
func randomP1363(t *testing.T) []byte {
	t.Helper()
	out := make([]byte, P1363Size)
	_, err := rand.Read(out)
	require.NoError(t, err)

	if out[0]%4 == 0 {
		out[0], out[1] = 0, 0
	}
	if out[fieldSize]%4 == 0 {
		out[fieldSize] = 0
	}
	out[fieldSize-1] |= 0x01
	out[P1363Size-1] |= 0x01
	return out
}
