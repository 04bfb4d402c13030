// Package cli implements the keel command-line interface using Cobra.
// It provides commands for bootstrapping repositories around a signed
// inception commit, verifying the resulting root of trust, and wiring
// up the GitHub remote.
package cli

import (
	"path/filepath"

	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/log"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	dryRun  bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "keel",
	Short: "Keel - Repository trust bootstrap",
	Long: `Keel bootstraps a project's Git workflow around an inception commit —
an empty, SSH-signed root commit whose committer identity is the signing
key's fingerprint. The commit's hash becomes a stable repository
identifier (did:repo:<hash>) that any clone can re-derive and verify
offline.

keel init .        creates the repository and its inception commit
keel verify .      re-checks the root of trust in any clone`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debugDir := filepath.Join(config.GlobalConfigDir(), "debug")

		if err := log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonOut,
			DebugDir:   debugDir,
		}); err != nil {
			// Log init failure is non-fatal - fallback to default logger
			cmd.PrintErrf("Warning: failed to initialize debug logging: %v\n", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without executing")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
}
