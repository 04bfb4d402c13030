// Package inception implements keel's root-of-trust protocol: creating a
// repository's inception commit and independently verifying one.
//
// An inception commit is the repository's first commit. It is empty (its
// tree is the canonical empty tree), has no parents, declares itself a
// root of trust in its message, carries a Signed-off-by trailer, and is
// signed with an SSH key whose SHA256 fingerprint doubles as the
// committer name. The commit's hash anchors all later trust delegation
// and derives a stable repository identifier.
package inception

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
)

// DIDPrefix is the scheme prefix of derived repository identifiers.
const DIDPrefix = "did:repo:"

// Identity names the operator creating the inception commit. Name and
// email go into the author field and the sign-off trailer; the committer
// name is replaced by the signing key's fingerprint.
type Identity struct {
	Name  string
	Email string
}

// Commit is a read-side snapshot of an inception commit.
type Commit struct {
	Hash           plumbing.Hash
	TreeHash       plumbing.Hash
	Parents        []plumbing.Hash
	Message        string
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
	When           time.Time
	Signature      string
}

// DID returns the repository identifier derived from the commit hash.
func (c *Commit) DID() string {
	return DIDPrefix + c.Hash.String()
}

// DeriveDID builds a repository identifier from a root commit hash.
// Derivation needs no trust decision, only the hash.
func DeriveDID(hash plumbing.Hash) string {
	return DIDPrefix + hash.String()
}

// Check is the outcome of one verification check.
type Check struct {
	Name    string
	Passed  bool
	Message string
}

// Result aggregates a full verification pass.
type Result struct {
	// Passed is true when every blocking check passed. The committer
	// fingerprint check is advisory and never blocks.
	Passed bool
	// DID is the derived repository identifier, set whenever a root
	// commit exists, regardless of the verdict.
	DID string
	// Checks holds each check outcome in protocol order: empty tree,
	// message, signature, committer fingerprint, sign-off.
	Checks []Check
}

// Check returns the named check outcome, or nil if absent.
func (r *Result) Check(name string) *Check {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			return &r.Checks[i]
		}
	}
	return nil
}

// Summary returns a one-line verdict for logs.
func (r *Result) Summary() string {
	failed := 0
	for _, c := range r.Checks {
		if !c.Passed {
			failed++
		}
	}
	if r.Passed {
		if failed > 0 {
			return fmt.Sprintf("passed with %d warning(s)", failed)
		}
		return "passed"
	}
	return fmt.Sprintf("failed (%d check(s) violated)", failed)
}
