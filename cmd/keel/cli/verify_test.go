package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyWithAuditDisabled(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	withIdentityFlags(t, "Alice", "alice@example.com")
	dir := t.TempDir()

	require.NoError(t, runInit(initCmd, []string{dir}))

	manifest := "identity:\n  name: Alice\n  email: alice@example.com\naudit:\n  disabled: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keel.yaml"), []byte(manifest), 0644))

	// Verification must complete without touching a ledger.
	require.NoError(t, runVerify(verifyCmd, []string{dir}))
}
