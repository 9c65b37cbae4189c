package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeFlow(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)
	require.NoError(t, writeConfigFixture(home))

	for _, user := range []string{"atm-000", "atm-001"} {
		_, stderr, err := runATMD(t, binaryPath, home, "user", "add", user, "--password", "pin")
		require.NoError(t, err, "stderr: %s", stderr)
	}

	stdout, stderr, err := runATMD(t, binaryPath, home,
		"simulate", "--quiet",
		"--clients", "2",
		"--operations", "40",
		"--user-prefix", "atm",
		"--password", "pin",
	)
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "atm-000")
	assert.Contains(t, stdout, "atm-001")
	assert.Contains(t, stdout, "[conserved]")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "atmd-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/atmd")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build atmd binary: %s", string(output))
	return binaryPath
}

func runATMD(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}

func writeConfigFixture(home string) error {
	configDir := filepath.Join(home, ".atmd")
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}

	config := `[processing]
workers = 4
queue_size = 64
lock_wait = "50ms"
retry_interval = "1ms"

[log]
level = "warn"
format = "json"
`

	return os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(config), 0o600)
}
