package gitx

import (
	"fmt"
)

// SigningConfig is the repository-level git configuration keel writes so
// that ordinary git tooling (commit -S, verify-commit) uses the same key
// and trust anchors as keel itself.
type SigningConfig struct {
	UserName           string
	UserEmail          string
	SigningKeyPath     string
	AllowedSignersPath string
}

// ConfigureSigning writes user identity and SSH signing settings into the
// repository's local git config: gpg.format=ssh, user.signingkey and
// gpg.ssh.allowedSignersFile.
func (r *Repository) ConfigureSigning(sc SigningConfig) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("reading repo config: %w", err)
	}

	if sc.UserName != "" {
		cfg.User.Name = sc.UserName
	}
	if sc.UserEmail != "" {
		cfg.User.Email = sc.UserEmail
	}

	cfg.Raw.Section("gpg").SetOption("format", "ssh")
	if sc.SigningKeyPath != "" {
		cfg.Raw.Section("user").SetOption("signingkey", sc.SigningKeyPath)
	}
	if sc.AllowedSignersPath != "" {
		cfg.Raw.Section("gpg").Subsection("ssh").SetOption("allowedSignersFile", sc.AllowedSignersPath)
	}
	cfg.Raw.Section("commit").SetOption("gpgsign", "true")

	if err := r.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("writing repo config: %w", err)
	}
	return nil
}
