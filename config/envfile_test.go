// file: config/envfile_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvFile_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WGW_TEST_FROM_FILE=one\nWGW_TEST_INHERITED=file\n"), 0o600))

	t.Setenv("WGW_TEST_INHERITED", "process")
	t.Setenv("WGW_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("WGW_TEST_FROM_FILE"))

	env := NewEnvFile(path, true)
	n, err := env.Load()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "one", os.Getenv("WGW_TEST_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("WGW_TEST_INHERITED"))

	// Rotated value is picked up on the next load
	require.NoError(t, os.WriteFile(path, []byte("WGW_TEST_FROM_FILE=two\n"), 0o600))
	_, err = env.Load()
	require.NoError(t, err)
	assert.Equal(t, "two", os.Getenv("WGW_TEST_FROM_FILE"))
}

func TestEnvFile_Missing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), ".env")

	n, err := NewEnvFile(missing, false).Load()
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewEnvFile(missing, true).Load()
	assert.Error(t, err)

	n, err = NewEnvFile("", true).Load()
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnvFile_FeedsPublicKeyEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`WGW_TEST_KEY="-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----"`+"\n"), 0o600))
	t.Setenv("WGW_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("WGW_TEST_KEY"))

	_, err := NewEnvFile(path, true).Load()
	require.NoError(t, err)

	pemText, source, err := SenderConfig{PublicKeyEnv: "WGW_TEST_KEY"}.ResolvePublicKey()
	require.NoError(t, err)
	assert.Equal(t, "env:WGW_TEST_KEY", source)
	assert.Contains(t, pemText, "BEGIN PUBLIC KEY")
}
