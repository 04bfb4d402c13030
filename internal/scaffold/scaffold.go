// Package scaffold populates a freshly bootstrapped repository with
// template documents: task tracker, context file, PR template and the
// seed allowed-signers file.
package scaffold

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/keeltrust/keel/internal/log"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Data feeds the document templates.
type Data struct {
	Project     string // repository name
	Name        string // operator name
	Email       string // operator email
	DID         string // derived repository identifier
	Fingerprint string // inception key fingerprint
	SignerLine  string // authorized_keys line of the inception key
	Date        string // bootstrap date, YYYY-MM-DD
}

// targets maps each embedded template to its in-repo destination.
var targets = map[string]string{
	"pull_request.md.tmpl": filepath.Join(".github", "PULL_REQUEST_TEMPLATE.md"),
	"tasks.md.tmpl":        filepath.Join("docs", "TASKS.md"),
	"context.md.tmpl":      filepath.Join("docs", "CONTEXT.md"),
	"allowed_signers.tmpl": filepath.Join(".repo", "config", "verification", "allowed_commit_signers"),
	"readme.md.tmpl":       "README.md",
}

// Result reports what a scaffold pass did.
type Result struct {
	Written []string
	Skipped []string
}

// Apply renders every template into root. Existing files are left alone
// unless force is set, so a second pass is a no-op.
func Apply(root string, data Data, force bool) (*Result, error) {
	if data.Date == "" {
		data.Date = time.Now().Format("2006-01-02")
	}
	if data.Project == "" {
		data.Project = filepath.Base(root)
	}

	tmpl, err := template.ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	result := &Result{}
	for _, name := range sortedTemplateNames() {
		dest := filepath.Join(root, targets[name])

		if _, err := os.Stat(dest); err == nil && !force {
			log.Debug("scaffold target exists, skipping", "path", dest)
			result.Skipped = append(result.Skipped, targets[name])
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(targets[name]), err)
		}

		var sb strings.Builder
		if err := tmpl.ExecuteTemplate(&sb, name, data); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", name, err)
		}
		if err := os.WriteFile(dest, []byte(sb.String()), 0644); err != nil {
			return nil, fmt.Errorf("writing %s: %w", targets[name], err)
		}
		result.Written = append(result.Written, targets[name])
	}

	log.Info("scaffold applied", "written", len(result.Written), "skipped", len(result.Skipped))
	return result, nil
}

// sortedTemplateNames returns template names in a stable order so output
// and audit records are deterministic.
func sortedTemplateNames() []string {
	entries, err := fs.ReadDir(templatesFS, "templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := targets[e.Name()]; ok {
			names = append(names, e.Name())
		}
	}
	return names
}
