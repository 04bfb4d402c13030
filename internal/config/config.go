// Package config handles keel.yaml manifest parsing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/keeltrust/keel/internal/inception"
)

// Config represents a keel.yaml bootstrap manifest.
type Config struct {
	Identity IdentityConfig `yaml:"identity"`
	Signing  SigningConfig  `yaml:"signing,omitempty"`
	GitHub   GitHubConfig   `yaml:"github,omitempty"`
	Scaffold ScaffoldConfig `yaml:"scaffold,omitempty"`
	Audit    AuditConfig    `yaml:"audit,omitempty"`
}

// IdentityConfig names the operator for author fields and sign-off
// trailers.
type IdentityConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// SigningConfig locates the signing key and trust anchors.
type SigningConfig struct {
	// Key is the path to the OpenSSH private key used for the inception
	// commit. Supports ~ expansion.
	Key string `yaml:"key,omitempty"`

	// AllowedSigners is the repository-relative path of the allowed
	// signers file. Defaults to the protected delegation path.
	AllowedSigners string `yaml:"allowed_signers,omitempty"`

	// UseKeyring enables storing/retrieving the key passphrase in the
	// OS keyring.
	UseKeyring bool `yaml:"use_keyring,omitempty"`
}

// GitHubConfig configures remote repository setup.
type GitHubConfig struct {
	// Create enables remote creation during init.
	Create bool `yaml:"create,omitempty"`

	// Repo is the remote in owner/name format.
	Repo string `yaml:"repo,omitempty"`

	// Visibility is "public" or "private" (default "private").
	Visibility string `yaml:"visibility,omitempty"`

	// DefaultBranch defaults to "main".
	DefaultBranch string `yaml:"default_branch,omitempty"`

	// BranchProtection enables protecting the default branch.
	BranchProtection bool `yaml:"branch_protection,omitempty"`

	// RequiredSignatures enables required commit signatures on the
	// default branch.
	RequiredSignatures bool `yaml:"required_signatures,omitempty"`
}

// ScaffoldConfig configures template document emission.
type ScaffoldConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
	// Force overwrites existing scaffold files.
	Force bool `yaml:"force,omitempty"`
}

// AuditConfig configures the local bootstrap event ledger.
type AuditConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
	// Path overrides the default ledger location (~/.keel/audit.db).
	Path string `yaml:"path,omitempty"`
}

// Load reads keel.yaml from the given directory.
// Returns nil, nil if the file doesn't exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "keel.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading keel.yaml: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing keel.yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Signing.AllowedSigners == "" {
		c.Signing.AllowedSigners = inception.AllowedSignersPath
	}
	if c.GitHub.Visibility == "" {
		c.GitHub.Visibility = "private"
	}
	if c.GitHub.DefaultBranch == "" {
		c.GitHub.DefaultBranch = "main"
	}
}

// Validate checks manifest invariants.
func (c *Config) Validate() error {
	if c.Identity.Name == "" {
		return fmt.Errorf("identity.name is required")
	}
	if c.Identity.Email == "" || !strings.Contains(c.Identity.Email, "@") {
		return fmt.Errorf("identity.email must be a valid email, got %q", c.Identity.Email)
	}

	switch c.GitHub.Visibility {
	case "public", "private", "internal":
	default:
		return fmt.Errorf("invalid github.visibility %q: must be 'public', 'private' or 'internal'", c.GitHub.Visibility)
	}

	if c.GitHub.Create {
		if c.GitHub.Repo == "" {
			return fmt.Errorf("github.repo is required when github.create is set")
		}
		if !strings.Contains(c.GitHub.Repo, "/") {
			return fmt.Errorf("github.repo must be in owner/name format, got %q", c.GitHub.Repo)
		}
	}

	return nil
}

// DefaultConfig returns a manifest with defaults applied for the given
// identity.
func DefaultConfig(name, email string) *Config {
	cfg := &Config{
		Identity: IdentityConfig{Name: name, Email: email},
	}
	cfg.applyDefaults()
	return cfg
}

// KeyPath returns the signing key path with ~ expanded, or the default
// key location when unset.
func (c *Config) KeyPath() string {
	path := c.Signing.Key
	if path == "" {
		path = filepath.Join(GlobalConfigDir(), "signing_ed25519")
	}
	return ExpandHome(path)
}

// AuditPath returns the ledger path, defaulting to ~/.keel/audit.db.
func (c *Config) AuditPath() string {
	if c.Audit.Path != "" {
		return ExpandHome(c.Audit.Path)
	}
	return filepath.Join(GlobalConfigDir(), "audit.db")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	return path
}

// GlobalConfigDir returns the path to ~/.keel.
func GlobalConfigDir() string {
	if dir := os.Getenv("KEEL_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".keel")
	}
	return filepath.Join(home, ".keel")
}
