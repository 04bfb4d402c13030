// Package signing handles SSH key material for keel: loading and generating
// signing keys, computing fingerprints, producing and verifying SSH file
// signatures, and matching keys against an allowed-signers list.
package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Signer wraps a loaded SSH private key designated for commit signing.
type Signer struct {
	signer ssh.Signer
	path   string
}

// Load reads an OpenSSH private key from path. For passphrase-protected
// keys pass the passphrase; pass nil for unencrypted keys.
func Load(path string, passphrase []byte) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signing key: %w", err)
	}

	var signer ssh.Signer
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(data)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("signing key %s: %w", path, err)
		}
		return nil, fmt.Errorf("parsing signing key %s: %w", path, err)
	}

	return &Signer{signer: signer, path: path}, nil
}

// Generate creates a new Ed25519 keypair, writes it in OpenSSH format to
// path (plus path.pub), and returns the loaded Signer. Fails if path
// already exists.
func Generate(path, comment string) (*Signer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("key %s already exists", path)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("encoding key: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating key dir: %w", err)
	}
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		return nil, fmt.Errorf("saving key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("loading generated key: %w", err)
	}

	pubLine := authorizedKeyLine(signer.PublicKey(), comment)
	if err := os.WriteFile(path+".pub", []byte(pubLine+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("saving public key: %w", err)
	}

	return &Signer{signer: signer, path: path}, nil
}

// Path returns the filesystem path the key was loaded from.
func (s *Signer) Path() string {
	return s.path
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() ssh.PublicKey {
	return s.signer.PublicKey()
}

// Fingerprint returns the SHA256 fingerprint of the signer's public key
// in the format "SHA256:<base64>".
func (s *Signer) Fingerprint() string {
	return Fingerprint(s.signer.PublicKey().Marshal())
}

// AuthorizedKeyLine returns the public key as a single authorized_keys
// style line (key type, base64 blob, comment).
func (s *Signer) AuthorizedKeyLine(comment string) string {
	return authorizedKeyLine(s.signer.PublicKey(), comment)
}

// Fingerprint computes the SHA256 fingerprint of a public key blob
// (SSH wire format). Returns the fingerprint as "SHA256:<base64>".
func Fingerprint(keyBlob []byte) string {
	hash := sha256.Sum256(keyBlob)
	return "SHA256:" + base64.RawStdEncoding.EncodeToString(hash[:])
}

func authorizedKeyLine(pub ssh.PublicKey, comment string) string {
	line := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if comment != "" {
		line += " " + comment
	}
	return line
}
