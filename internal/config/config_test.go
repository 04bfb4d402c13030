package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeltrust/keel/internal/inception"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keel.yaml"), []byte(content), 0644))
	return dir
}

func TestLoadMissingManifest(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: alice@example.com
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "Alice", cfg.Identity.Name)
	assert.Equal(t, inception.AllowedSignersPath, cfg.Signing.AllowedSigners)
	assert.Equal(t, "private", cfg.GitHub.Visibility)
	assert.Equal(t, "main", cfg.GitHub.DefaultBranch)
}

func TestLoadFullManifest(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: alice@example.com
signing:
  key: ~/.ssh/keel_ed25519
  use_keyring: true
github:
  create: true
  repo: acme/widget
  visibility: public
  branch_protection: true
  required_signatures: true
audit:
  path: /tmp/keel-audit.db
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.True(t, cfg.Signing.UseKeyring)
	assert.True(t, cfg.GitHub.Create)
	assert.Equal(t, "acme/widget", cfg.GitHub.Repo)
	assert.Equal(t, "public", cfg.GitHub.Visibility)
	assert.True(t, cfg.GitHub.RequiredSignatures)
	assert.Equal(t, "/tmp/keel-audit.db", cfg.AuditPath())
}

func TestLoadRejectsBadEmail(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: not-an-email
`)

	_, err := Load(dir)
	assert.ErrorContains(t, err, "identity.email")
}

func TestLoadRejectsBadVisibility(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: alice@example.com
github:
  visibility: secret
`)

	_, err := Load(dir)
	assert.ErrorContains(t, err, "visibility")
}

func TestLoadRejectsCreateWithoutRepo(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: alice@example.com
github:
  create: true
`)

	_, err := Load(dir)
	assert.ErrorContains(t, err, "github.repo")
}

func TestLoadRejectsRepoWithoutOwner(t *testing.T) {
	dir := writeManifest(t, `
identity:
  name: Alice
  email: alice@example.com
github:
  create: true
  repo: widget
`)

	_, err := Load(dir)
	assert.ErrorContains(t, err, "owner/name")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".ssh", "key"), ExpandHome("~/.ssh/key"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}

func TestGlobalConfigDirEnvOverride(t *testing.T) {
	t.Setenv("KEEL_HOME", "/custom/keel")
	assert.Equal(t, "/custom/keel", GlobalConfigDir())
}

func TestKeyPathDefault(t *testing.T) {
	t.Setenv("KEEL_HOME", "/custom/keel")
	cfg := DefaultConfig("Alice", "alice@example.com")
	assert.Equal(t, filepath.Join("/custom/keel", "signing_ed25519"), cfg.KeyPath())
}
