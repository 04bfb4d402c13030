package signing

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signerLine(t *testing.T, principals, options string, s *Signer) string {
	t.Helper()
	if options != "" {
		options += " "
	}
	return fmt.Sprintf("%s %s%s\n", principals, options, s.AuthorizedKeyLine(""))
}

func TestParseAllowedSigners(t *testing.T) {
	alice := newTestSigner(t)
	bob := newTestSigner(t)

	content := "# team signers\n\n" +
		signerLine(t, "alice@example.com", "", alice) +
		signerLine(t, "bob@example.com,bob@corp.example", `namespaces="git"`, bob)

	as, err := ParseAllowedSigners([]byte(content))
	require.NoError(t, err)
	require.Equal(t, 2, as.Len())

	entries := as.Entries()
	assert.Equal(t, []string{"alice@example.com"}, entries[0].Principals)
	assert.Empty(t, entries[0].Namespaces)
	assert.Equal(t, []string{"bob@example.com", "bob@corp.example"}, entries[1].Principals)
	assert.Equal(t, []string{"git"}, entries[1].Namespaces)
}

func TestParseAllowedSignersBadLine(t *testing.T) {
	_, err := ParseAllowedSigners([]byte("alice@example.com\n"))
	assert.ErrorContains(t, err, "line 1")

	_, err = ParseAllowedSigners([]byte("alice@example.com ssh-ed25519\n"))
	assert.Error(t, err)
}

func TestMatchExactPrincipal(t *testing.T) {
	alice := newTestSigner(t)
	as, err := ParseAllowedSigners([]byte(signerLine(t, "alice@example.com", "", alice)))
	require.NoError(t, err)

	assert.True(t, as.Match("alice@example.com", NamespaceGit, alice.PublicKey()))
	assert.False(t, as.Match("eve@example.com", NamespaceGit, alice.PublicKey()))
}

func TestMatchWildcardPrincipal(t *testing.T) {
	alice := newTestSigner(t)
	as, err := ParseAllowedSigners([]byte(signerLine(t, "*@example.com", "", alice)))
	require.NoError(t, err)

	assert.True(t, as.Match("anyone@example.com", NamespaceGit, alice.PublicKey()))
	assert.False(t, as.Match("anyone@other.example", NamespaceGit, alice.PublicKey()))
}

func TestMatchNamespaceOption(t *testing.T) {
	alice := newTestSigner(t)
	as, err := ParseAllowedSigners([]byte(signerLine(t, "alice@example.com", `namespaces="file"`, alice)))
	require.NoError(t, err)

	assert.False(t, as.Match("alice@example.com", NamespaceGit, alice.PublicKey()))
	assert.True(t, as.Match("alice@example.com", "file", alice.PublicKey()))
}

func TestMatchRejectsUnlistedKey(t *testing.T) {
	alice := newTestSigner(t)
	mallory := newTestSigner(t)

	as, err := ParseAllowedSigners([]byte(signerLine(t, "alice@example.com", "", alice)))
	require.NoError(t, err)

	assert.False(t, as.Match("alice@example.com", NamespaceGit, mallory.PublicKey()))
}
