package inception

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/signing"
)

// Verification check names, in protocol order.
const (
	CheckEmptyTree   = "empty_tree"
	CheckMessage     = "message"
	CheckSignature   = "signature"
	CheckFingerprint = "committer_fingerprint"
	CheckSignOff     = "signoff"
)

// Verify resolves the repository's root commit and re-derives every
// property Create is supposed to have established, without trusting the
// creator's report. The five checks run independently so an operator
// sees all violated invariants in one pass.
//
// The verdict requires the empty-tree, message, signature and sign-off
// checks to pass. A committer name that is not a key fingerprint is
// downgraded to a warning; older clients produce such commits without
// weakening the load-bearing invariants.
//
// trust is the allowed-signers list consulted by the signature check.
// Verification that cannot run at all returns ErrNotFound (no root
// commit) or ErrTooling (a check's machinery failed).
func Verify(repo *gitx.Repository, trust *signing.AllowedSigners) (*Result, error) {
	root, err := Root(repo)
	if err != nil {
		return nil, err
	}

	// The identifier needs only existence of the root commit, never a
	// trust decision, so it is derived before any check runs.
	result := &Result{DID: DeriveDID(root.Hash)}

	if err := checkSignature(root, trust, result); err != nil {
		return nil, err
	}
	checkContent(root, result)

	result.Passed = true
	for _, c := range result.Checks {
		if c.Name != CheckFingerprint && !c.Passed {
			result.Passed = false
		}
	}

	log.Debug("verified inception commit",
		"commit", root.Hash.String(),
		"verdict", result.Summary())

	// Keep check output in protocol order regardless of evaluation order.
	ordered := make([]Check, 0, len(result.Checks))
	for _, name := range []string{CheckEmptyTree, CheckMessage, CheckSignature, CheckFingerprint, CheckSignOff} {
		if c := result.Check(name); c != nil {
			ordered = append(ordered, *c)
		}
	}
	result.Checks = ordered

	return result, nil
}

// Root walks first parents from HEAD until it reaches a commit with
// zero parents. A repository without commits, or whose oldest reachable
// commit still records parents it cannot resolve (a shallow or corrupt
// history), has no verifiable root.
func Root(repo *gitx.Repository) (*object.Commit, error) {
	has, err := repo.HasCommits()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTooling, err)
	}
	if !has {
		return nil, fmt.Errorf("%w: repository has no commits", ErrNotFound)
	}

	commit, err := repo.HeadCommit()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTooling, err)
	}

	for commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: oldest reachable commit %s records unresolvable parents", ErrNotFound, commit.Hash)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading parent of %s: %v", ErrTooling, commit.Hash, err)
		}
		commit = parent
	}
	return commit, nil
}

// checkContent runs the checks that need only the commit object itself:
// empty tree, message sentence, committer fingerprint format, sign-off.
func checkContent(root *object.Commit, result *Result) {
	tree := root.TreeHash.String()
	result.Checks = append(result.Checks, Check{
		Name:    CheckEmptyTree,
		Passed:  tree == gitx.EmptyTreeHash,
		Message: treeMessage(tree),
	})

	result.Checks = append(result.Checks, Check{
		Name:    CheckMessage,
		Passed:  hasRootOfTrustSentence(root.Message),
		Message: messageMessage(root.Message),
	})

	result.Checks = append(result.Checks, Check{
		Name:    CheckFingerprint,
		Passed:  strings.HasPrefix(root.Committer.Name, "SHA256:"),
		Message: fingerprintMessage(root.Committer.Name),
	})

	signOff := hasSignOff(root.Message)
	msg := "message carries a Signed-off-by trailer"
	if !signOff {
		msg = "message is missing a Signed-off-by trailer"
	}
	result.Checks = append(result.Checks, Check{
		Name:    CheckSignOff,
		Passed:  signOff,
		Message: msg,
	})
}

// checkSignature cryptographically verifies the commit signature and
// checks the signing key is authorized for the committer (or author)
// email in the allowed-signers list. A missing trust input or a payload
// re-encoding failure means the check cannot run and is a tooling error;
// an invalid signature is an ordinary check failure.
func checkSignature(root *object.Commit, trust *signing.AllowedSigners, result *Result) error {
	if trust == nil {
		return fmt.Errorf("%w: no allowed signers configured, signature check cannot run", ErrTooling)
	}

	if root.PGPSignature == "" {
		result.Checks = append(result.Checks, Check{
			Name:    CheckSignature,
			Passed:  false,
			Message: "commit carries no signature",
		})
		return nil
	}

	payload, err := gitx.CommitPayload(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTooling, err)
	}

	pub, err := signing.VerifySignature(root.PGPSignature, signing.NamespaceGit, payload)
	if err != nil {
		result.Checks = append(result.Checks, Check{
			Name:    CheckSignature,
			Passed:  false,
			Message: fmt.Sprintf("signature invalid: %v", err),
		})
		return nil
	}

	authorized := trust.Match(root.Committer.Email, signing.NamespaceGit, pub) ||
		trust.Match(root.Author.Email, signing.NamespaceGit, pub)
	msg := fmt.Sprintf("signature valid, key %s authorized for %s", signing.Fingerprint(pub.Marshal()), root.Committer.Email)
	if !authorized {
		msg = fmt.Sprintf("signature valid but key %s is not an allowed signer for %s", signing.Fingerprint(pub.Marshal()), root.Committer.Email)
	}
	result.Checks = append(result.Checks, Check{
		Name:    CheckSignature,
		Passed:  authorized,
		Message: msg,
	})
	return nil
}

func treeMessage(tree string) string {
	if tree == gitx.EmptyTreeHash {
		return "commit tree is the canonical empty tree"
	}
	return fmt.Sprintf("commit tree %s is not the canonical empty tree", tree)
}

func messageMessage(msg string) string {
	if hasRootOfTrustSentence(msg) {
		return "message declares the root of trust"
	}
	return fmt.Sprintf("message is missing the declaration %q", RootOfTrustSentence)
}

func fingerprintMessage(name string) string {
	if strings.HasPrefix(name, "SHA256:") {
		return "committer name is a key fingerprint"
	}
	return fmt.Sprintf("committer name %q is not a SHA256 key fingerprint (warning)", name)
}
