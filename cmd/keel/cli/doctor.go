package cli

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"text/tabwriter"

	"github.com/keeltrust/keel/internal/doctor"
	"github.com/keeltrust/keel/internal/gitx"
	"github.com/keeltrust/keel/internal/inception"
	"github.com/keeltrust/keel/internal/signing"
	"github.com/keeltrust/keel/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnostic information about the keel environment",
	Long: `Displays diagnostic information about the keel environment for debugging.

This command shows:
- keel version and platform
- Required tools (git, gh, ssh-keygen)
- Signing key status
- Repository state (when run inside a repository)`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println(ui.Bold("Keel Doctor"))
	fmt.Println()

	reg := doctor.NewRegistry()
	reg.Register(&versionSection{})
	reg.Register(&toolsSection{})
	reg.Register(&keySection{})
	reg.Register(&repoSection{})

	for _, section := range reg.Sections() {
		ui.Section(section.Name())
		if err := section.Print(os.Stdout); err != nil {
			fmt.Printf("%s Error: %v\n", ui.FailTag(), err)
		}
		fmt.Println()
	}

	return nil
}

// versionSection shows platform and version info
type versionSection struct{}

func (s *versionSection) Name() string { return "Version" }

func (s *versionSection) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Version:\t%s\n", Version())
	fmt.Fprintf(tw, "Platform:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	return tw.Flush()
}

// toolsSection checks for the external tools keel shells out to.
type toolsSection struct{}

func (s *toolsSection) Name() string { return "Tools" }

func (s *toolsSection) Print(w io.Writer) error {
	tools := []struct {
		name        string
		versionArgs []string
		required    bool
	}{
		{"git", []string{"--version"}, true},
		{"gh", []string{"--version"}, false},
		{"ssh-keygen", nil, false},
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, tool := range tools {
		path, err := exec.LookPath(tool.name)
		if err != nil {
			tag := ui.WarnTag()
			note := "not found (optional)"
			if tool.required {
				tag = ui.FailTag()
				note = "not found"
			}
			fmt.Fprintf(tw, "%s %s:\t%s\n", tag, tool.name, note)
			continue
		}
		detail := path
		if len(tool.versionArgs) > 0 {
			if out, err := exec.Command(tool.name, tool.versionArgs...).Output(); err == nil {
				detail = firstLine(string(out))
			}
		}
		fmt.Fprintf(tw, "%s %s:\t%s\n", ui.OKTag(), tool.name, detail)
	}
	return tw.Flush()
}

// keySection reports on the configured signing key.
type keySection struct{}

func (s *keySection) Name() string { return "Signing Key" }

func (s *keySection) Print(w io.Writer) error {
	keyPath := cwdConfig().KeyPath()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Path:\t%s\n", keyPath)

	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		fmt.Fprintf(tw, "Status:\t%s not generated yet (keel init creates one)\n", ui.InfoTag())
		return tw.Flush()
	}

	// The public half carries the fingerprint without needing the
	// passphrase.
	if data, err := os.ReadFile(keyPath + ".pub"); err == nil {
		if pub, _, _, _, err := ssh.ParseAuthorizedKey(data); err == nil {
			fmt.Fprintf(tw, "Fingerprint:\t%s\n", signing.Fingerprint(pub.Marshal()))
		}
	}
	fmt.Fprintf(tw, "Status:\t%s present\n", ui.OKTag())
	return tw.Flush()
}

// repoSection reports repository trust state for the current directory.
type repoSection struct{}

func (s *repoSection) Name() string { return "Repository" }

func (s *repoSection) Print(w io.Writer) error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	repo, err := gitx.Open(wd)
	if err != nil {
		fmt.Fprintf(w, "%s Not inside a git repository\n", ui.InfoTag())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	root, err := inception.Root(repo)
	if err != nil {
		fmt.Fprintf(tw, "Root:\t%s %v\n", ui.WarnTag(), err)
		return tw.Flush()
	}
	fmt.Fprintf(tw, "Root commit:\t%s\n", root.Hash)
	fmt.Fprintf(tw, "Identifier:\t%s\n", inception.DeriveDID(root.Hash))

	trustPath := filepath.Join(repo.Path(), inception.AllowedSignersPath)
	if _, err := os.Stat(trustPath); err == nil {
		fmt.Fprintf(tw, "Trust anchors:\t%s %s\n", ui.OKTag(), trustPath)
	} else {
		fmt.Fprintf(tw, "Trust anchors:\t%s missing (%s)\n", ui.WarnTag(), inception.AllowedSignersPath)
	}
	return tw.Flush()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
