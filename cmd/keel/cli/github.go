package cli

import (
	"context"
	"fmt"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/github"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
)

var (
	githubRepo       string
	githubVisibility string
	githubProtect    bool
)

var githubCmd = &cobra.Command{
	Use:   "github [path]",
	Short: "Create and harden the GitHub remote",
	Long: `Create the GitHub remote for a bootstrapped repository and apply
hardening: branch protection and required commit signatures on the
default branch.

Remote creation failure aborts the command. Hardening failures are
reported as warnings; the local root of trust is already established
and does not depend on the remote.

Requires an authenticated gh CLI.

Example:
  keel github . --repo acme/widget --protect`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitHub,
}

func init() {
	rootCmd.AddCommand(githubCmd)
	githubCmd.Flags().StringVar(&githubRepo, "repo", "", "remote in owner/name format")
	githubCmd.Flags().StringVar(&githubVisibility, "visibility", "", "repository visibility (public, private, internal)")
	githubCmd.Flags().BoolVar(&githubProtect, "protect", false, "enable branch protection and required signatures")
}

func runGitHub(cmd *cobra.Command, args []string) error {
	dir, err := resolveRepoPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = &config.Config{}
	}
	if githubRepo != "" {
		cfg.GitHub.Repo = githubRepo
		cfg.GitHub.Create = true
	}
	if githubVisibility != "" {
		cfg.GitHub.Visibility = githubVisibility
	}
	if githubProtect {
		cfg.GitHub.BranchProtection = true
		cfg.GitHub.RequiredSignatures = true
	}
	if cfg.GitHub.Repo == "" {
		return fmt.Errorf("no remote configured: pass --repo or set github.repo in keel.yaml")
	}
	if cfg.GitHub.Visibility == "" {
		cfg.GitHub.Visibility = "private"
	}
	if cfg.GitHub.DefaultBranch == "" {
		cfg.GitHub.DefaultBranch = "main"
	}

	if dryRun {
		fmt.Printf("Would create GitHub remote %s (%s)\n", cfg.GitHub.Repo, cfg.GitHub.Visibility)
		if cfg.GitHub.BranchProtection || cfg.GitHub.RequiredSignatures {
			fmt.Printf("Would harden branch %s\n", cfg.GitHub.DefaultBranch)
		}
		return nil
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		log.Warn("audit ledger unavailable", "error", err)
	}
	if ledger != nil {
		defer ledger.Close()
	}

	return setupRemote(cmd.Context(), dir, cfg, ledger)
}

// setupRemote creates the remote and applies hardening. Creation failure
// is fatal; hardening failures are downgraded to warnings.
func setupRemote(ctx context.Context, dir string, cfg *config.Config, ledger *audit.Store) error {
	setup := github.NewSetup()
	if err := setup.Available(ctx); err != nil {
		return err
	}

	opts := github.Options{
		Repo:               cfg.GitHub.Repo,
		Visibility:         cfg.GitHub.Visibility,
		DefaultBranch:      cfg.GitHub.DefaultBranch,
		BranchProtection:   cfg.GitHub.BranchProtection,
		RequiredSignatures: cfg.GitHub.RequiredSignatures,
	}

	if err := setup.CreateRepo(ctx, dir, opts); err != nil {
		return err
	}
	fmt.Printf("%s Created remote %s (%s)\n", ui.OKTag(), opts.Repo, opts.Visibility)
	recordEvent(ledger, audit.EntryRemote, audit.RemoteData{
		Repo:   dir,
		Remote: opts.Repo,
		Action: "created",
	})

	warnings := setup.Harden(ctx, dir, opts)
	for _, w := range warnings {
		ui.Warnf("%s", w)
	}
	for _, action := range hardenActions(opts) {
		warned := false
		for _, w := range warnings {
			if warningAction(w.Step) == action {
				warned = true
			}
		}
		recordEvent(ledger, audit.EntryRemote, audit.RemoteData{
			Repo:   dir,
			Remote: opts.Repo,
			Action: action,
			Warned: warned,
		})
	}
	if len(warnings) == 0 && (opts.BranchProtection || opts.RequiredSignatures) {
		fmt.Printf("%s Hardened branch %s\n", ui.OKTag(), opts.DefaultBranch)
	}
	return nil
}

func hardenActions(opts github.Options) []string {
	var actions []string
	if opts.BranchProtection {
		actions = append(actions, "branch_protection")
	}
	if opts.RequiredSignatures {
		actions = append(actions, "required_signatures")
	}
	return actions
}

func warningAction(step string) string {
	switch step {
	case "branch protection":
		return "branch_protection"
	case "required signatures":
		return "required_signatures"
	}
	return step
}
