package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
)

var auditLimit uint64

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List and verify the bootstrap event ledger",
	Long: `Show the hash-chained ledger of bootstrap events: key generation,
inception commits, verifications, scaffolding and remote setup. The
chain is verified before listing; a broken link means the ledger was
tampered with or corrupted.

Example:
  keel audit
  keel audit --limit 10 --json`,
	Args: cobra.NoArgs,
	RunE: runAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().Uint64Var(&auditLimit, "limit", 0, "show only the most recent N entries")
}

func runAudit(cmd *cobra.Command, args []string) error {
	store, err := audit.OpenStore(cwdConfig().AuditPath())
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer store.Close()

	count, err := store.Count()
	if err != nil {
		return fmt.Errorf("reading ledger: %w", err)
	}
	if count == 0 {
		fmt.Println("Ledger is empty.")
		return nil
	}

	if err := store.VerifyChain(); err != nil {
		ui.Errorf("ledger chain broken: %v", err)
		return err
	}

	start := audit.FirstSequence
	if auditLimit > 0 && count > auditLimit {
		start = count - auditLimit + 1
	}
	entries, err := store.Range(start, count)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTIME\tTYPE\tDETAIL")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			e.Sequence,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Type,
			entryDetail(e))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%s Chain intact (%d entries)\n", ui.OKTag(), count)
	return nil
}

// entryDetail renders a short human-readable summary of an entry's data.
func entryDetail(e *audit.Entry) string {
	switch e.Type {
	case audit.EntryInception:
		var d audit.InceptionData
		if json.Unmarshal(e.DataJSON(), &d) == nil {
			return d.DID
		}
	case audit.EntryVerification:
		var d audit.VerificationData
		if json.Unmarshal(e.DataJSON(), &d) == nil {
			if d.Passed {
				return d.DID + " passed"
			}
			return d.DID + " FAILED"
		}
	case audit.EntryScaffold:
		var d audit.ScaffoldData
		if json.Unmarshal(e.DataJSON(), &d) == nil {
			return fmt.Sprintf("%d file(s)", len(d.Files))
		}
	case audit.EntryRemote:
		var d audit.RemoteData
		if json.Unmarshal(e.DataJSON(), &d) == nil {
			detail := d.Remote + " " + d.Action
			if d.Warned {
				detail += " (warned)"
			}
			return detail
		}
	case audit.EntryKey:
		var d audit.KeyData
		if json.Unmarshal(e.DataJSON(), &d) == nil {
			return d.Fingerprint
		}
	}
	return string(e.DataJSON())
}
