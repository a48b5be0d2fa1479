package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva-rakshith/hcx-platform/internal/keystore"
	"github.com/shiva-rakshith/hcx-platform/pkg/protocol"
	"github.com/shiva-rakshith/hcx-platform/pkg/security"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "", "keygen", "--dir", dir, "--name", "hosp", "--cn", "hosp-01")
	require.NoError(t, err)
	assert.Contains(t, out, "CN=hosp-01")

	km, err := keystore.LoadFiles(keystore.Paths{
		PrivateKey:  filepath.Join(dir, "hosp.key"),
		Certificate: filepath.Join(dir, "hosp.crt"),
	})
	require.NoError(t, err)
	assert.Equal(t, keystore.DefaultKeyBits, km.Info().KeySize)
}

func TestEnvelopeDecrypt(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "", "keygen", "--dir", dir, "--name", "node")
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "node.key")

	km, err := keystore.LoadFiles(keystore.Paths{PrivateKey: keyFile})
	require.NoError(t, err)

	headers, err := protocol.BuildHeaders(protocol.HeaderInput{RecipientCode: "hosp-01", SenderCode: "payer-01"})
	require.NoError(t, err)
	env, err := security.Encrypt(headers, []byte(`{"outcome":"complete"}`), km.RecipientKey)
	require.NoError(t, err)

	// compact envelope from a file
	envFile := filepath.Join(dir, "envelope.jwe")
	require.NoError(t, os.WriteFile(envFile, []byte(env), 0o600))
	out, err := run(t, "", "envelope", "decrypt", "--key", keyFile, envFile)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outcome":"complete"}`, out)

	// callback body on stdin
	body, err := json.Marshal(map[string]string{"payload": env.String()})
	require.NoError(t, err)
	out, err = run(t, string(body), "envelope", "decrypt", "--key", keyFile, "--headers")
	require.NoError(t, err)
	assert.Contains(t, out, headers.CorrelationID)
	assert.Contains(t, out, `"outcome": "complete"`)

	out, err = run(t, string(env), "envelope", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, `"x-hcx-sender_code": "payer-01"`)
}

func TestEnvelopeDecrypt_Errors(t *testing.T) {
	t.Setenv("HCX_PRIVATE_KEY_FILE", "")

	_, err := run(t, "abc", "envelope", "decrypt")
	assert.Error(t, err)

	_, err = run(t, "", "envelope", "inspect")
	assert.Error(t, err)

	_, err = run(t, "not.an.envelope", "envelope", "inspect")
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, loadEnvFile(""))
	assert.NoError(t, loadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HCX_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Setenv("HCX_TEST_ENV_VALUE", "")
	require.NoError(t, os.Unsetenv("HCX_TEST_ENV_VALUE"))

	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("HCX_TEST_ENV_VALUE"))
}
