package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/keeltrust/keel/internal/audit"
	"github.com/keeltrust/keel/internal/config"
	"github.com/keeltrust/keel/internal/log"
	"github.com/keeltrust/keel/internal/signing"
	"github.com/mattn/go-isatty"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// resolveRepoPath resolves and validates a repository path argument.
// Returns the absolute, symlink-resolved path.
func resolveRepoPath(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving repository path: %w", err)
	}

	absPath, err = filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("repository path %q: %w", path, err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("repository path %q: %w", absPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("repository path %q is not a directory", absPath)
	}

	return absPath, nil
}

// loadSigner loads the signing key configured in cfg, working through the
// passphrase sources in order: no passphrase, OS keyring (when enabled),
// interactive prompt.
func loadSigner(cfg *config.Config) (*signing.Signer, error) {
	keyPath := cfg.KeyPath()

	signer, err := signing.Load(keyPath, nil)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, err
	}

	if cfg.Signing.UseKeyring {
		passphrase, kerr := signing.LookupPassphrase(keyPath)
		if kerr == nil {
			if signer, err = signing.Load(keyPath, passphrase); err == nil {
				return signer, nil
			}
			log.Warn("stored passphrase did not unlock key", "key", keyPath)
		} else if !errors.Is(kerr, signing.ErrNoStoredPassphrase) {
			log.Debug("keyring lookup failed", "key", keyPath, "error", kerr)
		}
	}

	passphrase, err := promptPassphrase(fmt.Sprintf("Passphrase for %s: ", keyPath))
	if err != nil {
		return nil, err
	}
	signer, err = signing.Load(keyPath, passphrase)
	if err != nil {
		return nil, err
	}

	if cfg.Signing.UseKeyring {
		if kerr := signing.StorePassphrase(keyPath, passphrase); kerr != nil {
			log.Warn("could not store passphrase in keyring", "error", kerr)
		}
	}
	return signer, nil
}

// promptPassphrase reads a passphrase from the terminal without echo.
func promptPassphrase(prompt string) ([]byte, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil, fmt.Errorf("signing key is passphrase-protected and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(int(fd))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return passphrase, nil
}

// cwdConfig resolves the manifest for the current directory, falling
// back to defaults when none exists.
func cwdConfig() *config.Config {
	if wd, err := os.Getwd(); err == nil {
		if cfg, err := config.Load(wd); err == nil && cfg != nil {
			return cfg
		}
	}
	return &config.Config{}
}

// openLedger opens the bootstrap event ledger, or returns nil when the
// manifest disables auditing.
func openLedger(cfg *config.Config) (*audit.Store, error) {
	if cfg.Audit.Disabled {
		return nil, nil
	}
	path := cfg.AuditPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	return audit.OpenStore(path)
}

// recordEvent appends an entry to the ledger. Ledger failures never abort
// a bootstrap; they are logged and the command carries on.
func recordEvent(store *audit.Store, entryType audit.EntryType, data any) {
	if store == nil {
		return
	}
	if _, err := store.Append(entryType, data); err != nil {
		log.Warn("could not record audit entry", "type", entryType, "error", err)
	}
}
