// Package gitx wraps go-git repository access for keel.
package gitx

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// EmptyTreeHash is the well-known id of the tree with zero entries. Every
// git object store derives the same id for it, so an inception commit's
// tree can be compared against this constant.
const EmptyTreeHash = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DefaultBranch is the branch keel initializes new repositories on.
const DefaultBranch = "main"

// Repository is a local git repository opened through go-git.
type Repository struct {
	repo *git.Repository
	path string
}

// Init creates a new non-bare repository at path with HEAD pointing at
// the given branch.
func Init(path, branch string) (*Repository, error) {
	if branch == "" {
		branch = DefaultBranch
	}
	repo, err := git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(branch),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("initializing repository: %w", err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// Open opens the repository containing path, walking up to find .git.
func Open(path string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening repository at %s: %w", path, err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// Path returns the path the repository was opened at.
func (r *Repository) Path() string {
	return r.path
}

// Raw returns the underlying go-git repository for callers that need
// operations gitx does not wrap.
func (r *Repository) Raw() *git.Repository {
	return r.repo
}

// HasCommits reports whether HEAD resolves to a commit.
func (r *Repository) HasCommits() (bool, error) {
	_, err := r.repo.Head()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("resolving HEAD: %w", err)
}

// HeadCommit returns the commit HEAD points at.
func (r *Repository) HeadCommit() (*object.Commit, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("reading HEAD commit: %w", err)
	}
	return commit, nil
}

// Commit returns the commit object with the given hash.
func (r *Repository) Commit(hash plumbing.Hash) (*object.Commit, error) {
	return r.repo.CommitObject(hash)
}

// StoreEmptyTree writes the canonical empty tree into the object store
// and returns its hash.
func (r *Repository) StoreEmptyTree() (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	if err := (&object.Tree{}).Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding empty tree: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing empty tree: %w", err)
	}
	return hash, nil
}

// StoreCommit writes a fully assembled commit object into the object
// store and returns its hash. The commit's signature, if any, must
// already be set.
func (r *Repository) StoreCommit(commit *object.Commit) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("encoding commit: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("storing commit: %w", err)
	}
	return hash, nil
}

// SetHead points the branch HEAD refers to at the given commit.
func (r *Repository) SetHead(hash plumbing.Hash) error {
	head, err := r.repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return fmt.Errorf("reading HEAD: %w", err)
	}
	target := plumbing.HEAD
	if head.Type() == plumbing.SymbolicReference {
		target = head.Target()
	}
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(target, hash)); err != nil {
		return fmt.Errorf("updating %s: %w", target, err)
	}
	return nil
}

// CommitPayload returns the bytes a signature over the commit covers:
// the commit object encoded without its gpgsig header.
func CommitPayload(commit *object.Commit) ([]byte, error) {
	obj := &plumbing.MemoryObject{}
	if err := commit.EncodeWithoutSignature(obj); err != nil {
		return nil, fmt.Errorf("encoding commit payload: %w", err)
	}
	rd, err := obj.Reader()
	if err != nil {
		return nil, fmt.Errorf("reading commit payload: %w", err)
	}
	defer rd.Close()
	return io.ReadAll(rd)
}

// FindRepoRoot returns the root of the git repository containing dir,
// using the git binary so the answer matches what the operator's other
// tooling sees (worktrees, GIT_DIR overrides).
func FindRepoRoot(dir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
