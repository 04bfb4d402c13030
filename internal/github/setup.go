// Package github implements GitHub remote setup through the gh CLI.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/keeltrust/keel/internal/log"
)

// Options configures remote repository setup.
type Options struct {
	// Repo is the remote in owner/name format.
	Repo string
	// Visibility is "public", "private" or "internal".
	Visibility string
	// DefaultBranch is the branch to protect.
	DefaultBranch string
	// BranchProtection enables protection of the default branch.
	BranchProtection bool
	// RequiredSignatures enables required commit signatures on the
	// default branch.
	RequiredSignatures bool
}

// Warning describes a non-fatal setup step failure. Remote hardening
// failures are advisory: the local root of trust is already established,
// so the bootstrap continues and reports what could not be configured.
type Warning struct {
	Step string
	Err  error
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %v", w.Step, w.Err)
}

// runFunc executes gh with the given arguments in dir and returns
// combined output. Swappable for tests.
type runFunc func(ctx context.Context, dir string, stdin string, args ...string) ([]byte, error)

// Setup drives GitHub remote configuration for a bootstrapped repository.
type Setup struct {
	run runFunc
}

// NewSetup returns a Setup that invokes the real gh CLI.
func NewSetup() *Setup {
	return &Setup{run: runGH}
}

func runGH(ctx context.Context, dir string, stdin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "gh", args...)
	cmd.Dir = dir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("gh %s: %w\n%s", strings.Join(args, " "), err, out)
	}
	return out, nil
}

// Available reports whether the gh CLI is installed and authenticated.
func (s *Setup) Available(ctx context.Context) error {
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found: %w", err)
	}
	if _, err := s.run(ctx, "", "", "auth", "status"); err != nil {
		return fmt.Errorf("gh is not authenticated: %w", err)
	}
	return nil
}

// CreateRepo creates the remote repository and wires it as origin of the
// local repository at dir. Failure here is fatal to remote setup: without
// a remote there is nothing for the later hardening steps to act on.
func (s *Setup) CreateRepo(ctx context.Context, dir string, opts Options) error {
	args := []string{
		"repo", "create", opts.Repo,
		"--" + opts.Visibility,
		"--source", ".",
		"--remote", "origin",
		"--push",
	}
	if _, err := s.run(ctx, dir, "", args...); err != nil {
		return fmt.Errorf("creating remote %s: %w", opts.Repo, err)
	}
	log.Info("created remote repository", "repo", opts.Repo, "visibility", opts.Visibility)
	return nil
}

// branchProtection is the request body for the branch protection API.
type branchProtection struct {
	RequiredStatusChecks       *struct{} `json:"required_status_checks"`
	EnforceAdmins              bool      `json:"enforce_admins"`
	RequiredPullRequestReviews *reviews  `json:"required_pull_request_reviews"`
	Restrictions               *struct{} `json:"restrictions"`
	AllowForcePushes           bool      `json:"allow_force_pushes"`
	AllowDeletions             bool      `json:"allow_deletions"`
}

type reviews struct {
	RequiredApprovingReviewCount int `json:"required_approving_review_count"`
}

// Harden applies branch protection and required signatures. Each step
// that fails is downgraded to a warning; the caller decides how loudly
// to report them.
func (s *Setup) Harden(ctx context.Context, dir string, opts Options) []Warning {
	var warnings []Warning

	if opts.BranchProtection {
		if err := s.protectBranch(ctx, dir, opts); err != nil {
			log.Warn("branch protection failed", "repo", opts.Repo, "error", err)
			warnings = append(warnings, Warning{Step: "branch protection", Err: err})
		}
	}

	if opts.RequiredSignatures {
		if err := s.requireSignatures(ctx, dir, opts); err != nil {
			log.Warn("required signatures failed", "repo", opts.Repo, "error", err)
			warnings = append(warnings, Warning{Step: "required signatures", Err: err})
		}
	}

	return warnings
}

func (s *Setup) protectBranch(ctx context.Context, dir string, opts Options) error {
	body, err := json.Marshal(branchProtection{
		EnforceAdmins: true,
		RequiredPullRequestReviews: &reviews{
			RequiredApprovingReviewCount: 1,
		},
	})
	if err != nil {
		return fmt.Errorf("encoding protection body: %w", err)
	}

	_, err = s.run(ctx, dir, string(body),
		"api", "--method", "PUT",
		fmt.Sprintf("repos/%s/branches/%s/protection", opts.Repo, opts.DefaultBranch),
		"--input", "-")
	return err
}

func (s *Setup) requireSignatures(ctx context.Context, dir string, opts Options) error {
	_, err := s.run(ctx, dir, "",
		"api", "--method", "POST",
		fmt.Sprintf("repos/%s/branches/%s/protection/required_signatures", opts.Repo, opts.DefaultBranch))
	return err
}
