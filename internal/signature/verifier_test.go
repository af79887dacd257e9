// file: internal/signature/verifier_test.go

package signature

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/logger"
)

func signDER(t *testing.T, priv *ecdsa.PrivateKey, payload []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(payload)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, digest[:])
	require.NoError(t, err)
	return sig
}

func loadKey(t *testing.T, pemText string) *PublicKey {
	t.Helper()
	key, err := LoadPublicKey(pemText)
	require.NoError(t, err)
	return key
}

func TestVerify_KnownKeyPair(t *testing.T) {
	priv, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)

	sig := base64.StdEncoding.EncodeToString(signDER(t, priv, []byte("abc")))

	assert.True(t, Verify(key, []byte("abc"), sig))
	assert.False(t, Verify(key, []byte("abd"), sig))
	assert.False(t, Verify(key, nil, sig))
}

func TestVerify_OtherKeyFails(t *testing.T) {
	priv, _ := generateKey(t, elliptic.P256())
	_, otherPEM := generateKey(t, elliptic.P256())

	sig := base64.StdEncoding.EncodeToString(signDER(t, priv, []byte("payload")))
	assert.False(t, Verify(loadKey(t, otherPEM), []byte("payload"), sig))
}

func TestVerify_MalformedInputIsFalse(t *testing.T) {
	_, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)

	tests := []struct {
		name string
		sig  string
	}{
		{name: "empty", sig: ""},
		{name: "not base64", sig: "%%%not-base64%%%"},
		{name: "url alphabet", sig: "MEUCIQ-_"},
		{name: "valid base64 garbage", sig: base64.StdEncoding.EncodeToString([]byte("garbage"))},
		{name: "p1363 sent as der", sig: base64.StdEncoding.EncodeToString(make([]byte, P1363Size))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, Verify(key, []byte("abc"), tt.sig))
			})
		})
	}

	assert.False(t, Verify(nil, []byte("abc"), "AAAA"))
}

func TestVerify_SingleBitFlips(t *testing.T) {
	priv, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)

	payload := []byte(`{"event":"transaction.signed","id":42}`)
	der := signDER(t, priv, payload)
	sig := base64.StdEncoding.EncodeToString(der)
	require.True(t, Verify(key, payload, sig))

	t.Run("payload", func(t *testing.T) {
		for i := 0; i < len(payload)*8; i++ {
			flipped := append([]byte(nil), payload...)
			flipped[i/8] ^= 1 << (i % 8)
			assert.False(t, Verify(key, flipped, sig), "bit %d", i)
		}
	})

	t.Run("signature", func(t *testing.T) {
		for i := 0; i < len(der)*8; i++ {
			flipped := append([]byte(nil), der...)
			flipped[i/8] ^= 1 << (i % 8)
			assert.False(t, Verify(key, payload, base64.StdEncoding.EncodeToString(flipped)), "bit %d", i)
		}
	})

	t.Run("public key", func(t *testing.T) {
		spki, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
		require.NoError(t, err)

		for i := 0; i < len(spki)*8; i++ {
			flipped := append([]byte(nil), spki...)
			flipped[i/8] ^= 1 << (i % 8)
			pemText := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: flipped}))

			other, err := LoadPublicKey(pemText)
			if err != nil {
				continue
			}
			assert.False(t, Verify(other, payload, sig), "bit %d", i)
		}
	})
}

func TestVerifier_Check(t *testing.T) {
	priv, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)

	v, err := NewVerifier("fordefi", key, WithLogger(logger.NewNopLogger()))
	require.NoError(t, err)
	assert.Equal(t, "fordefi", v.Sender())
	assert.Equal(t, EncodingDER, v.Encoding())

	good := base64.StdEncoding.EncodeToString(signDER(t, priv, []byte("abc")))

	tests := []struct {
		name    string
		payload string
		sig     string
		reason  string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "verified",
			payload: "abc",
			sig:     good,
			reason:  "verified",
			check:   func(t *testing.T, err error) { assert.NoError(t, err) },
		},
		{
			name:    "mismatch",
			payload: "abd",
			sig:     good,
			reason:  "mismatch",
			check:   func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrCryptoMismatch) },
		},
		{
			name:    "bad base64",
			payload: "abc",
			sig:     "***",
			reason:  "malformed_encoding",
			check: func(t *testing.T, err error) {
				var encErr *EncodingError
				assert.True(t, errors.As(err, &encErr))
			},
		},
		{
			name:    "bad der",
			payload: "abc",
			sig:     base64.StdEncoding.EncodeToString([]byte{0x30, 0x00}),
			reason:  "malformed_signature",
			check: func(t *testing.T, err error) {
				var sigErr *SignatureFormatError
				assert.True(t, errors.As(err, &sigErr))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Check([]byte(tt.payload), tt.sig)
			assert.Equal(t, "fordefi", res.Sender)
			assert.Equal(t, tt.reason, res.Reason())
			assert.Equal(t, tt.reason == "verified", res.Verified())
			assert.Equal(t, res.Verified(), v.Verify([]byte(tt.payload), tt.sig))
			tt.check(t, res.Err)
		})
	}
}

func TestVerifier_P1363Encoding(t *testing.T) {
	priv, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)

	der := signDER(t, priv, []byte("abc"))
	raw, err := DERToP1363(der)
	require.NoError(t, err)

	v, err := NewVerifier("hypernative", key, WithEncoding(EncodingP1363))
	require.NoError(t, err)

	assert.True(t, v.Verify([]byte("abc"), base64.StdEncoding.EncodeToString(raw)))
	assert.False(t, v.Verify([]byte("abc"), base64.StdEncoding.EncodeToString(der)))
}

func TestNewVerifier_NilKey(t *testing.T) {
	v, err := NewVerifier("fordefi", nil)
	assert.Nil(t, v)

	var keyErr *KeyFormatError
	assert.True(t, errors.As(err, &keyErr))
}

type recordingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func (o *recordingObserver) ObserveVerification(sender, result string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[sender+"/"+result]++
}

func TestVerifier_ConcurrentUse(t *testing.T) {
	priv, pemText := generateKey(t, elliptic.P256())
	key := loadKey(t, pemText)
	obs := &recordingObserver{results: make(map[string]int)}

	v, err := NewVerifier("fordefi", key, WithObserver(obs))
	require.NoError(t, err)

	good := base64.StdEncoding.EncodeToString(signDER(t, priv, []byte("abc")))

	const workers = 32
	var wg sync.WaitGroup
	failures := make(chan string, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !v.Verify([]byte("abc"), good) {
				failures <- "valid signature rejected"
			}
			if v.Verify([]byte("abd"), good) {
				failures <- "forged payload accepted"
			}
		}()
	}
	wg.Wait()
	close(failures)

	for f := range failures {
		t.Error(f)
	}
	assert.Equal(t, workers, obs.results["fordefi/verified"])
	assert.Equal(t, workers, obs.results["fordefi/mismatch"])
}

func TestReason(t *testing.T) {
	assert.Equal(t, "verified", Reason(nil))
	assert.Equal(t, "mismatch", Reason(ErrCryptoMismatch))
	assert.Equal(t, "malformed_signature", Reason(&SignatureFormatError{}))
	assert.Equal(t, "malformed_encoding", Reason(&EncodingError{Err: errors.New("x")}))
	assert.Equal(t, "bad_key", Reason(&KeyFormatError{Reason: "x"}))
	assert.Equal(t, "internal", Reason(&InternalError{Value: "boom"}))
	assert.Equal(t, "error", Reason(errors.New("other")))
}
