// file: cmd/sigtool/cmd/cmd_test.go
package cmd

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func signData(t *testing.T, data string, encoding string) (signResult, string) {
	t.Helper()
	out, err := execute(t, "sign", "--data", data, "--encoding", encoding)
	require.NoError(t, err)

	var res signResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))

	keyPath := filepath.Join(t.TempDir(), "public_key.pem")
	require.NoError(t, os.WriteFile(keyPath, []byte(res.PublicKey), 0o600))
	return res, keyPath
}

func TestSignThenVerify(t *testing.T) {
	res, keyPath := signData(t, `{"id":"tx-1"}`, "der")
	assert.Equal(t, "der", res.Encoding)

	out, err := execute(t, "verify", "--key", keyPath, "--data", `{"id":"tx-1"}`, "--signature", res.Signature)
	require.NoError(t, err)

	var vr verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &vr))
	assert.True(t, vr.Verified)
	assert.Equal(t, "verified", vr.Reason)
}

func TestVerify_TamperedPayloadFails(t *testing.T) {
	res, keyPath := signData(t, "abc", "der")

	out, err := execute(t, "verify", "--key", keyPath, "--data", "abd", "--signature", res.Signature)
	assert.ErrorIs(t, err, errNotVerified)

	var vr verifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &vr))
	assert.False(t, vr.Verified)
	assert.Equal(t, "mismatch", vr.Reason)
}

func TestVerify_PayloadFile(t *testing.T) {
	res, keyPath := signData(t, "line one\nline two\n", "p1363")

	payloadPath := filepath.Join(t.TempDir(), "payload.txt")
	require.NoError(t, os.WriteFile(payloadPath, []byte("line one\nline two\n"), 0o600))

	_, err := execute(t, "verify", "--key", keyPath, "--payload", payloadPath,
		"--signature", res.Signature, "--encoding", "p1363")
	assert.NoError(t, err)

	// Same signature read as DER is malformed
	_, err = execute(t, "verify", "--key", keyPath, "--payload", payloadPath, "--signature", res.Signature)
	assert.ErrorIs(t, err, errNotVerified)
}

func TestVerify_PayloadFlagsExclusive(t *testing.T) {
	res, keyPath := signData(t, "abc", "der")

	_, err := execute(t, "verify", "--key", keyPath, "--signature", res.Signature)
	assert.ErrorContains(t, err, "--payload or --data")

	_, err = execute(t, "verify", "--key", keyPath, "--signature", res.Signature, "--payload", "x", "--data", "y")
	assert.ErrorContains(t, err, "not both")
}

func TestConvert_RoundTrip(t *testing.T) {
	res, _ := signData(t, "abc", "der")

	p1363, err := execute(t, "convert", "--signature", res.Signature, "--to", "p1363")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p1363))
	require.NoError(t, err)
	assert.Len(t, raw, 64)

	der, err := execute(t, "convert", "--signature", strings.TrimSpace(p1363), "--to", "der")
	require.NoError(t, err)
	assert.Equal(t, res.Signature, strings.TrimSpace(der))

	_, err = execute(t, "convert", "--signature", "!!!")
	assert.Error(t, err)
}

func TestKeyInspect(t *testing.T) {
	_, keyPath := signData(t, "abc", "der")

	out, err := execute(t, "key", "inspect", "--key", keyPath)
	require.NoError(t, err)

	var info keyInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "P-256", info.Curve)
	assert.Len(t, info.Fingerprint, 64)
	assert.Len(t, info.X, 64)
	assert.Len(t, info.Y, 64)

	_, err = execute(t, "key", "inspect", "--key", filepath.Join(t.TempDir(), "missing.pem"))
	assert.Error(t, err)
}
