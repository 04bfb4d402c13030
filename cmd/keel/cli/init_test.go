package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/inception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withIdentityFlags sets the init identity flags for the duration of a
// test.
func withIdentityFlags(t *testing.T, name, email string) {
	t.Helper()
	initName, initEmail = name, email
	t.Cleanup(func() { initName, initEmail = "", "" })
}

func TestInitVerifyEndToEnd(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	withIdentityFlags(t, "Alice", "alice@example.com")
	dir := t.TempDir()

	require.NoError(t, runInit(initCmd, []string{dir}))

	// A signed root commit exists.
	repo, err := gitx.Open(dir)
	require.NoError(t, err)
	root, err := inception.Root(repo)
	require.NoError(t, err)
	assert.Equal(t, 0, root.NumParents())
	assert.Equal(t, gitx.EmptyTreeHash, root.TreeHash.String())
	assert.NotEmpty(t, root.PGPSignature)

	// Scaffold emitted the trust anchor file.
	trustPath := filepath.Join(dir, inception.AllowedSignersPath)
	_, err = os.Stat(trustPath)
	require.NoError(t, err)

	// The generated key landed under KEEL_HOME.
	_, err = os.Stat(filepath.Join(os.Getenv("KEEL_HOME"), "signing_ed25519"))
	require.NoError(t, err)

	// Verification passes against the scaffolded signers.
	require.NoError(t, runVerify(verifyCmd, []string{dir}))
}

func TestInitRecordsLedgerEntries(t *testing.T) {
	home := t.TempDir()
	t.Setenv("KEEL_HOME", home)
	withIdentityFlags(t, "Alice", "alice@example.com")
	dir := t.TempDir()

	require.NoError(t, runInit(initCmd, []string{dir}))

	store, err := audit.OpenStore(filepath.Join(home, "audit.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.VerifyChain())
	count, err := store.Count()
	require.NoError(t, err)
	entries, err := store.Range(audit.FirstSequence, count)
	require.NoError(t, err)

	types := make(map[audit.EntryType]bool)
	for _, e := range entries {
		types[e.Type] = true
	}
	assert.True(t, types[audit.EntryKey], "key generation should be recorded")
	assert.True(t, types[audit.EntryInception], "inception should be recorded")
	assert.True(t, types[audit.EntryScaffold], "scaffold should be recorded")
}

func TestInitRequiresIdentity(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	dir := t.TempDir()

	err := runInit(initCmd, []string{dir})
	assert.ErrorIs(t, err, inception.ErrUsage)
}

func TestInitRefusesExistingHistory(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	withIdentityFlags(t, "Alice", "alice@example.com")
	dir := t.TempDir()

	require.NoError(t, runInit(initCmd, []string{dir}))

	err := runInit(initCmd, []string{dir})
	assert.ErrorIs(t, err, inception.ErrRepository)
}

func TestInitDryRunTouchesNothing(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	withIdentityFlags(t, "Alice", "alice@example.com")
	dir := t.TempDir()

	dryRun = true
	t.Cleanup(func() { dryRun = false })

	require.NoError(t, runInit(initCmd, []string{dir}))

	_, err := os.Stat(filepath.Join(dir, ".git"))
	assert.True(t, os.IsNotExist(err), "dry run must not create a repository")
}

func TestInitCreatesTargetDirectory(t *testing.T) {
	t.Setenv("KEEL_HOME", t.TempDir())
	withIdentityFlags(t, "Bob", "bob@example.com")
	dir := filepath.Join(t.TempDir(), "newproject")

	require.NoError(t, runInit(initCmd, []string{dir}))

	repo, err := gitx.Open(dir)
	require.NoError(t, err)
	has, err := repo.HasCommits()
	require.NoError(t, err)
	assert.True(t, has)
}
