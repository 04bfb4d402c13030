package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/inception"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/scaffold"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
)

var scaffoldForce bool

var scaffoldCmd = &cobra.Command{
	Use:   "scaffold [path]",
	Short: "Populate template documents in a bootstrapped repository",
	Long: `Emit the workflow documents keel scaffolds during init: a task
tracker, a context file, a pull request template, a README and the seed
allowed-signers file. Values (project name, identity, repository
identifier, key fingerprint) come from keel.yaml and the repository's
inception commit.

Existing files are left untouched unless --force is given.

Example:
  keel scaffold .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScaffold,
}

func init() {
	rootCmd.AddCommand(scaffoldCmd)
	scaffoldCmd.Flags().BoolVarP(&scaffoldForce, "force", "f", false, "overwrite existing files")
}

func runScaffold(cmd *cobra.Command, args []string) error {
	dir, err := resolveRepoPath(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if cfg == nil {
		return fmt.Errorf("%w: no keel.yaml found in %s", inception.ErrUsage, dir)
	}

	signer, err := loadSigner(cfg)
	if err != nil {
		return err
	}

	// Fill the identifier from the root commit when the repository
	// already has one; a scaffold-only pass before init leaves it blank.
	var did string
	if repo, err := gitx.Open(dir); err == nil {
		if root, err := inception.Root(repo); err == nil {
			did = inception.DeriveDID(root.Hash)
		}
	}

	data := scaffold.Data{
		Project:     filepath.Base(dir),
		Name:        cfg.Identity.Name,
		Email:       cfg.Identity.Email,
		DID:         did,
		Fingerprint: signer.Fingerprint(),
		SignerLine:  signer.AuthorizedKeyLine(cfg.Identity.Email),
		Date:        time.Now().Format("2006-01-02"),
	}

	if dryRun {
		fmt.Printf("Would scaffold template documents in %s\n", dir)
		return nil
	}

	result, err := scaffold.Apply(dir, data, scaffoldForce || cfg.Scaffold.Force)
	if err != nil {
		return err
	}
	for _, f := range result.Written {
		fmt.Printf("%s Wrote %s\n", ui.OKTag(), f)
	}
	for _, f := range result.Skipped {
		fmt.Printf("%s Kept existing %s\n", ui.InfoTag(), f)
	}

	if len(result.Written) > 0 {
		ledger, err := openLedger(cfg)
		if err != nil {
			log.Warn("audit ledger unavailable", "error", err)
		} else if ledger != nil {
			defer ledger.Close()
			recordEvent(ledger, audit.EntryScaffold, audit.ScaffoldData{
				Repo:  dir,
				Files: result.Written,
			})
		}
	}
	return nil
}
