package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/id"
	"github.com/keeltrust/keel/internal/inception"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/scaffold"
	"github.com/keeltrust/keel/internal/signing"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
)

var (
	initName       string
	initEmail      string
	initBranch     string
	initNoScaffold bool
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Create a repository and its inception commit",
	Long: `Initialize a git repository whose root commit is an inception commit:
empty tree, no parents, SSH-signed, signed off, with the signing key's
fingerprint as the committer name. The commit's hash becomes the
repository's stable identifier (did:repo:<hash>).

Identity comes from keel.yaml in the target directory, or from the
--name/--email flags. A signing key is generated at ~/.keel/signing_ed25519
if none is configured.

Examples:
  keel init .
  keel init myproject --name "Alice" --email alice@example.com`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initName, "name", "", "operator name for author and sign-off")
	initCmd.Flags().StringVar(&initEmail, "email", "", "operator email for author and sign-off")
	initCmd.Flags().StringVar(&initBranch, "branch", "", "initial branch name (default \"main\")")
	initCmd.Flags().BoolVar(&initNoScaffold, "no-scaffold", false, "skip template document scaffolding")
}

func runInit(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		if err := os.MkdirAll(args[0], 0755); err != nil {
			return fmt.Errorf("creating %s: %w", args[0], err)
		}
	}
	dir, err := resolveRepoPath(args)
	if err != nil {
		return err
	}
	log.SetRepo(dir)

	cfg, err := initConfig(dir)
	if err != nil {
		return err
	}
	identity := inception.Identity{Name: cfg.Identity.Name, Email: cfg.Identity.Email}
	branch := initBranch
	if branch == "" {
		branch = cfg.GitHub.DefaultBranch
	}

	if dryRun {
		return printInitPlan(dir, cfg, branch)
	}

	bootID := id.Generate("boot")
	log.Info("starting bootstrap", "id", bootID, "path", dir)

	repo, err := gitx.Init(dir, branch)
	if errors.Is(err, git.ErrRepositoryAlreadyExists) {
		repo, err = gitx.Open(dir)
	}
	if err != nil {
		return err
	}

	ledger, err := openLedger(cfg)
	if err != nil {
		log.Warn("audit ledger unavailable", "error", err)
	}
	if ledger != nil {
		defer ledger.Close()
	}

	signer, err := ensureSigner(cfg, ledger)
	if err != nil {
		return err
	}

	root, err := inception.Create(repo, signer, identity)
	if err != nil {
		return err
	}
	fmt.Printf("%s Inception commit %s\n", ui.OKTag(), root.Hash)
	fmt.Printf("%s Repository identifier %s\n", ui.OKTag(), ui.Bold(root.DID()))

	if err := repo.ConfigureSigning(gitx.SigningConfig{
		UserName:           identity.Name,
		UserEmail:          identity.Email,
		SigningKeyPath:     signer.Path(),
		AllowedSignersPath: cfg.Signing.AllowedSigners,
	}); err != nil {
		ui.Warnf("could not write repository signing config: %v", err)
	}

	recordEvent(ledger, audit.EntryInception, audit.InceptionData{
		Repo:        dir,
		Commit:      root.Hash.String(),
		DID:         root.DID(),
		Fingerprint: signer.Fingerprint(),
	})

	if !initNoScaffold && !cfg.Scaffold.Disabled {
		if err := runScaffoldStep(dir, cfg, signer, root, ledger); err != nil {
			return err
		}
	}

	if cfg.GitHub.Create {
		if err := setupRemote(cmd.Context(), dir, cfg, ledger); err != nil {
			return err
		}
	}

	log.Info("bootstrap complete", "id", bootID, "did", root.DID())
	fmt.Println()
	fmt.Printf("Bootstrap complete. Run %s to re-check the root of trust.\n",
		ui.Bold("keel verify "+filepath.Base(dir)))
	return nil
}

// initConfig builds the effective manifest for init: keel.yaml if present,
// overlaid with identity flags.
func initConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if initName == "" || initEmail == "" {
			return nil, fmt.Errorf("%w: no keel.yaml found; pass --name and --email", inception.ErrUsage)
		}
		return config.DefaultConfig(initName, initEmail), nil
	}
	if initName != "" {
		cfg.Identity.Name = initName
	}
	if initEmail != "" {
		cfg.Identity.Email = initEmail
	}
	return cfg, nil
}

// ensureSigner loads the configured signing key, generating a fresh
// Ed25519 key when none exists yet.
func ensureSigner(cfg *config.Config, ledger *audit.Store) (*signing.Signer, error) {
	keyPath := cfg.KeyPath()
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		signer, err := signing.Generate(keyPath, cfg.Identity.Email)
		if err != nil {
			return nil, err
		}
		fmt.Printf("%s Generated signing key %s (%s)\n", ui.OKTag(), keyPath, signer.Fingerprint())
		recordEvent(ledger, audit.EntryKey, audit.KeyData{
			Path:        keyPath,
			Fingerprint: signer.Fingerprint(),
		})
		return signer, nil
	}
	return loadSigner(cfg)
}

func runScaffoldStep(dir string, cfg *config.Config, signer *signing.Signer, root *inception.Commit, ledger *audit.Store) error {
	result, err := scaffold.Apply(dir, scaffold.Data{
		Project:     filepath.Base(dir),
		Name:        cfg.Identity.Name,
		Email:       cfg.Identity.Email,
		DID:         root.DID(),
		Fingerprint: signer.Fingerprint(),
		SignerLine:  signer.AuthorizedKeyLine(cfg.Identity.Email),
		Date:        time.Now().Format("2006-01-02"),
	}, cfg.Scaffold.Force)
	if err != nil {
		return err
	}
	for _, f := range result.Written {
		fmt.Printf("%s Wrote %s\n", ui.OKTag(), f)
	}
	for _, f := range result.Skipped {
		fmt.Printf("%s Kept existing %s\n", ui.InfoTag(), f)
	}
	recordEvent(ledger, audit.EntryScaffold, audit.ScaffoldData{
		Repo:  dir,
		Files: result.Written,
	})
	return nil
}

func printInitPlan(dir string, cfg *config.Config, branch string) error {
	fmt.Printf("Would initialize repository at %s (branch %s)\n", dir, branch)
	fmt.Printf("Would sign inception commit with key %s\n", cfg.KeyPath())
	fmt.Printf("Would record sign-off for %s <%s>\n", cfg.Identity.Name, cfg.Identity.Email)
	if !initNoScaffold && !cfg.Scaffold.Disabled {
		fmt.Println("Would scaffold template documents")
	}
	if cfg.GitHub.Create {
		fmt.Printf("Would create GitHub remote %s (%s)\n", cfg.GitHub.Repo, cfg.GitHub.Visibility)
	}
	return nil
}
