package inception

import (
	"regexp"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/signing"
)

func TestVerifyEndToEnd(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.True(t, result.Passed, "expected verification to pass: %+v", result.Checks)
	require.Len(t, result.Checks, 5)
	for _, c := range result.Checks {
		assert.True(t, c.Passed, "check %s failed: %s", c.Name, c.Message)
	}

	matched := regexp.MustCompile(`^did:repo:[0-9a-f]{40}$|^did:repo:[0-9a-f]{64}$`).MatchString(result.DID)
	assert.True(t, matched, "DID %q has unexpected format", result.DID)
}

func TestVerifyIsIdempotent(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	first, err := Verify(repo, trust)
	require.NoError(t, err)
	second, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.Equal(t, first, second, "verification must not mutate state between runs")
}

func TestVerifyChecksAreOrdered(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	want := []string{CheckEmptyTree, CheckMessage, CheckSignature, CheckFingerprint, CheckSignOff}
	var got []string
	for _, c := range result.Checks {
		got = append(got, c.Name)
	}
	assert.Equal(t, want, got)
}

func TestVerifyResolvesRootBelowLaterCommits(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	created, err := Create(repo, signer, alice)
	require.NoError(t, err)

	addCommitOnTop(t, repo, "README.md")
	addCommitOnTop(t, repo, "NOTES.md")

	result, err := Verify(repo, trust)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Equal(t, created.DID(), result.DID, "verification must target the root, not the tip")
}

func TestVerifyEmptyRepository(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Verify(repo, trust)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyUnresolvableParent(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	// Rewrite the head so it records a parent that is not in the object
	// store, the shape of a shallow or truncated history. Such a
	// repository has no verifiable root.
	root, err := repo.HeadCommit()
	require.NoError(t, err)

	orphaned := *root
	orphaned.ParentHashes = []plumbing.Hash{plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")}
	hash, err := repo.StoreCommit(&orphaned)
	require.NoError(t, err)
	require.NoError(t, repo.SetHead(hash))

	_, err = Verify(repo, trust)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyWithoutTrustInput(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	_, err = Verify(repo, nil)
	assert.ErrorIs(t, err, ErrTooling)
}

func TestVerifyTamperedMessage(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	// Rewrite the root with one altered message byte, keeping the
	// original signature to simulate post-hoc tampering.
	root, err := repo.HeadCommit()
	require.NoError(t, err)

	tampered := *root
	tampered.Message = root.Message + "!"
	hash, err := repo.StoreCommit(&tampered)
	require.NoError(t, err)
	require.NoError(t, repo.SetHead(hash))

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.False(t, result.Check(CheckSignature).Passed, "signature must not survive tampering")
	// Check independence: the empty-tree invariant is unaffected.
	assert.True(t, result.Check(CheckEmptyTree).Passed)
	assert.True(t, result.Check(CheckSignOff).Passed)
}

func TestVerifyHumanCommitterNameIsWarningOnly(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	// Build an otherwise-valid inception commit the way an older client
	// would: human committer name, everything else per protocol.
	tree, err := repo.StoreEmptyTree()
	require.NoError(t, err)

	when := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	commit := &object.Commit{
		Author:    object.Signature{Name: alice.Name, Email: alice.Email, When: when},
		Committer: object.Signature{Name: alice.Name, Email: alice.Email, When: when},
		Message:   ComposeMessage(alice),
		TreeHash:  tree,
	}

	payload, err := gitx.CommitPayload(commit)
	require.NoError(t, err)
	commit.PGPSignature, err = signer.Sign(payload, signing.NamespaceGit)
	require.NoError(t, err)

	hash, err := repo.StoreCommit(commit)
	require.NoError(t, err)
	require.NoError(t, repo.SetHead(hash))

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.True(t, result.Passed, "fingerprint format must not block the verdict")
	assert.False(t, result.Check(CheckFingerprint).Passed)
	for _, name := range []string{CheckEmptyTree, CheckMessage, CheckSignature, CheckSignOff} {
		assert.True(t, result.Check(name).Passed, "check %s should pass", name)
	}
}

func TestVerifyNonEmptyTreeFailsTreeCheckOnly(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	trust := trustFor(t, signer, alice.Email)

	// A root commit that carries content violates the empty-tree
	// invariant even if signed and well-formed.
	addCommitOnTop(t, repo, "README.md")

	root, err := repo.HeadCommit()
	require.NoError(t, err)

	signed := *root
	signed.Message = ComposeMessage(alice)
	payload, err := gitx.CommitPayload(&signed)
	require.NoError(t, err)
	signed.PGPSignature, err = signer.Sign(payload, signing.NamespaceGit)
	require.NoError(t, err)

	hash, err := repo.StoreCommit(&signed)
	require.NoError(t, err)
	require.NoError(t, repo.SetHead(hash))

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.False(t, result.Check(CheckEmptyTree).Passed)
	assert.True(t, result.Check(CheckSignature).Passed)
	assert.True(t, result.Check(CheckMessage).Passed)
}

func TestVerifyUnauthorizedSigner(t *testing.T) {
	repo := newRepo(t)
	signer := newSigner(t)
	mallory := newSigner(t)
	trust := trustFor(t, mallory, "mallory@example.com")

	_, err := Create(repo, signer, alice)
	require.NoError(t, err)

	result, err := Verify(repo, trust)
	require.NoError(t, err)

	assert.False(t, result.Passed)
	assert.False(t, result.Check(CheckSignature).Passed)
	assert.True(t, result.Check(CheckEmptyTree).Passed)
}

func TestResultSummary(t *testing.T) {
	r := &Result{Passed: true}
	assert.Equal(t, "passed", r.Summary())

	r = &Result{Passed: true, Checks: []Check{{Name: CheckFingerprint, Passed: false}}}
	assert.Equal(t, "passed with 1 warning(s)", r.Summary())

	r = &Result{Passed: false, Checks: []Check{{Name: CheckSignature, Passed: false}, {Name: CheckMessage, Passed: false}}}
	assert.Equal(t, "failed (2 check(s) violated)", r.Summary())
}
