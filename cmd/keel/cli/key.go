package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/keeltrust/keel/internal/signing"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Show the configured signing key",
	Long: `Show the path, fingerprint and public line of the signing key keel
uses for inception commits. The key location comes from keel.yaml in the
current directory, or defaults to ~/.keel/signing_ed25519.`,
	Args: cobra.NoArgs,
	RunE: runKey,
}

var keyForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove the key's stored passphrase from the OS keyring",
	Args:  cobra.NoArgs,
	RunE:  runKeyForget,
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyForgetCmd)
}

func runKey(cmd *cobra.Command, args []string) error {
	keyPath := cwdConfig().KeyPath()

	pubData, err := os.ReadFile(keyPath + ".pub")
	if err != nil {
		return fmt.Errorf("no signing key at %s (keel init generates one): %w", keyPath, err)
	}
	pub, comment, _, _, err := ssh.ParseAuthorizedKey(pubData)
	if err != nil {
		return fmt.Errorf("parsing %s.pub: %w", keyPath, err)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", keyPath)
	fmt.Fprintf(tw, "Type:\t%s\n", pub.Type())
	fmt.Fprintf(tw, "Fingerprint:\t%s\n", signing.Fingerprint(pub.Marshal()))
	if comment != "" {
		fmt.Fprintf(tw, "Comment:\t%s\n", comment)
	}
	return tw.Flush()
}

func runKeyForget(cmd *cobra.Command, args []string) error {
	keyPath := cwdConfig().KeyPath()
	if err := signing.DeletePassphrase(keyPath); err != nil {
		return err
	}
	fmt.Printf("%s Forgot stored passphrase for %s\n", ui.OKTag(), keyPath)
	return nil
}
