package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/inception"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/signing"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
)

var verifyAllowedSigners string

var verifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify a repository's root of trust",
	Long: `Re-derive and check the inception commit of a repository. Five
independent checks run against the root commit:

  empty tree             root carries the canonical empty tree
  message                fixed root-of-trust sentence is present
  signature              SSH signature verifies against the allowed signers
  committer fingerprint  committer name is the signing key fingerprint (advisory)
  sign-off               Signed-off-by trailer is present

The repository identifier (did:repo:<hash>) is derived and printed
whether or not the checks pass. The committer fingerprint check never
fails verification on its own; it is reported as a warning.

Example:
  keel verify .`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyAllowedSigners, "allowed-signers", "",
		"path to the allowed signers file (default: the repository's trust anchor file)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	dir, err := resolveRepoPath(args)
	if err != nil {
		return err
	}
	// Normalize to the repository root so the trust anchor path resolves
	// when verify runs from a subdirectory.
	if root, err := gitx.FindRepoRoot(dir); err == nil {
		dir = root
	}
	log.SetRepo(dir)

	repo, err := gitx.Open(dir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	trustPath := verifyAllowedSigners
	if trustPath == "" {
		rel := inception.AllowedSignersPath
		if cfg != nil {
			rel = cfg.Signing.AllowedSigners
		}
		trustPath = filepath.Join(dir, rel)
	}
	trust, err := signing.LoadAllowedSigners(trustPath)
	if err != nil {
		return fmt.Errorf("%w: loading allowed signers: %v", inception.ErrTooling, err)
	}

	result, err := inception.Verify(repo, trust)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(verifyReport(result)); err != nil {
			return err
		}
	} else {
		printResult(result)
	}

	recordVerification(cfg, dir, result)

	if !result.Passed {
		return fmt.Errorf("verification %s", result.Summary())
	}
	return nil
}

func printResult(result *inception.Result) {
	for _, check := range result.Checks {
		tag := ui.OKTag()
		if !check.Passed {
			tag = ui.FailTag()
			if check.Name == inception.CheckFingerprint {
				tag = ui.WarnTag()
			}
		}
		fmt.Printf("%s %-22s %s\n", tag, checkLabel(check.Name), check.Message)
	}
	fmt.Println()
	fmt.Printf("Repository identifier: %s\n", ui.Bold(result.DID))
	if result.Passed {
		fmt.Printf("%s Root of trust verified (%s)\n", ui.OKTag(), result.Summary())
	} else {
		fmt.Printf("%s Root of trust NOT verified (%s)\n", ui.FailTag(), result.Summary())
	}
}

func checkLabel(name string) string {
	switch name {
	case inception.CheckEmptyTree:
		return "empty tree"
	case inception.CheckMessage:
		return "message"
	case inception.CheckSignature:
		return "signature"
	case inception.CheckFingerprint:
		return "committer fingerprint"
	case inception.CheckSignOff:
		return "sign-off"
	}
	return name
}

// report is the JSON shape emitted by --json.
type report struct {
	Passed bool          `json:"passed"`
	DID    string        `json:"did"`
	Checks []checkReport `json:"checks"`
}

type checkReport struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

func verifyReport(result *inception.Result) report {
	r := report{Passed: result.Passed, DID: result.DID}
	for _, c := range result.Checks {
		r.Checks = append(r.Checks, checkReport{Name: c.Name, Passed: c.Passed, Message: c.Message})
	}
	return r
}

// recordVerification appends the outcome to the ledger when auditing is
// enabled. Verification stays read-only with respect to the repository.
func recordVerification(cfg *config.Config, dir string, result *inception.Result) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	ledger, err := openLedger(cfg)
	if err != nil {
		log.Debug("audit ledger unavailable", "error", err)
		return
	}
	if ledger == nil {
		return
	}
	defer ledger.Close()

	var failed []string
	for _, c := range result.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	recordEvent(ledger, audit.EntryVerification, audit.VerificationData{
		Repo:         dir,
		DID:          result.DID,
		Passed:       result.Passed,
		FailedChecks: failed,
	})
}
