package inception

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/signing"
)

// Create builds the repository's inception commit: an empty, signed,
// signed-off root commit whose committer name is the signing key's
// SHA256 fingerprint. The repository must have no commits yet.
//
// Creation is all-or-nothing. Every property is established in a single
// commit-object write; on any error the repository is left without a
// root commit and the operation must not be retried blindly (a retry
// would produce a second, differently-timestamped candidate).
func Create(repo *gitx.Repository, signer *signing.Signer, identity Identity) (*Commit, error) {
	if identity.Name == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: identity requires a name and email", ErrUsage)
	}

	has, err := repo.HasCommits()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}
	if has {
		return nil, fmt.Errorf("%w: repository already has commits, inception must be the root", ErrRepository)
	}

	tree, err := repo.StoreEmptyTree()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	// The committer name is deliberately not a human name. Binding it to
	// the key fingerprint makes a forged committer field meaningless
	// without also forging the signature.
	fingerprint := signer.Fingerprint()
	now := time.Now()

	commit := &object.Commit{
		Author: object.Signature{
			Name:  identity.Name,
			Email: identity.Email,
			When:  now,
		},
		Committer: object.Signature{
			Name:  fingerprint,
			Email: identity.Email,
			When:  now,
		},
		Message:  ComposeMessage(identity),
		TreeHash: tree,
	}

	payload, err := gitx.CommitPayload(commit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	armored, err := signer.Sign(payload, signing.NamespaceGit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}
	commit.PGPSignature = armored

	hash, err := repo.StoreCommit(commit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}
	if err := repo.SetHead(hash); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRepository, err)
	}

	log.Info("created inception commit",
		"commit", hash.String(),
		"fingerprint", fingerprint,
		"did", DeriveDID(hash))

	return &Commit{
		Hash:           hash,
		TreeHash:       tree,
		Message:        commit.Message,
		AuthorName:     identity.Name,
		AuthorEmail:    identity.Email,
		CommitterName:  fingerprint,
		CommitterEmail: identity.Email,
		When:           now,
		Signature:      armored,
	}, nil
}
