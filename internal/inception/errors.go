package inception

import "errors"

// Error kinds for the inception protocol. Callers branch with errors.Is:
// signing errors are never retryable, tooling errors may be.
var (
	// ErrUsage marks bad or missing parameters.
	ErrUsage = errors.New("usage error")

	// ErrSigning marks an unusable signing key or a rejected signing
	// operation.
	ErrSigning = errors.New("signing error")

	// ErrRepository marks a failure at the version-control layer while
	// creating the commit.
	ErrRepository = errors.New("repository error")

	// ErrNotFound marks a repository with no resolvable root commit.
	ErrNotFound = errors.New("no root commit")

	// ErrTooling marks a verification check that could not execute,
	// as opposed to one that executed and evaluated false.
	ErrTooling = errors.New("tooling error")
)
