package signing

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"golang.org/x/crypto/ssh"
)

// AllowedSigner is one entry from an allowed-signers file: a set of
// principals (emails, possibly with * wildcards) authorized to sign under
// the listed namespaces with the given key.
type AllowedSigner struct {
	Principals []string
	Namespaces []string // empty means any namespace
	Key        ssh.PublicKey
	Comment    string
}

// AllowedSigners is a parsed allowed-signers file, the trust input for
// inception commit verification.
type AllowedSigners struct {
	entries []AllowedSigner
}

// LoadAllowedSigners reads and parses an allowed-signers file in the
// OpenSSH ssh-keygen -Y format: one entry per line,
// "principals [options...] keytype base64-key [comment]".
func LoadAllowedSigners(path string) (*AllowedSigners, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading allowed signers: %w", err)
	}
	return ParseAllowedSigners(data)
}

// ParseAllowedSigners parses allowed-signers file content.
func ParseAllowedSigners(data []byte) (*AllowedSigners, error) {
	as := &AllowedSigners{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseSignerLine(line)
		if err != nil {
			return nil, fmt.Errorf("allowed signers line %d: %w", lineNo, err)
		}
		as.entries = append(as.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning allowed signers: %w", err)
	}
	return as, nil
}

func parseSignerLine(line string) (AllowedSigner, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return AllowedSigner{}, fmt.Errorf("expected principals, key type and key")
	}

	entry := AllowedSigner{
		Principals: strings.Split(fields[0], ","),
	}

	// Options sit between the principals and the key type. The only one
	// keel honors is namespaces=; the rest (cert-authority, valid-after,
	// valid-before) are accepted and ignored.
	i := 1
	for ; i < len(fields); i++ {
		f := fields[i]
		if isKeyType(f) {
			break
		}
		if v, ok := strings.CutPrefix(f, "namespaces="); ok {
			entry.Namespaces = strings.Split(strings.Trim(v, `"`), ",")
		}
	}
	if i >= len(fields)-1 {
		return AllowedSigner{}, fmt.Errorf("missing key")
	}

	key, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(strings.Join(fields[i:], " ")))
	if err != nil {
		return AllowedSigner{}, fmt.Errorf("parsing key: %w", err)
	}
	entry.Key = key
	entry.Comment = comment
	return entry, nil
}

func isKeyType(s string) bool {
	return strings.HasPrefix(s, "ssh-") ||
		strings.HasPrefix(s, "ecdsa-") ||
		strings.HasPrefix(s, "sk-")
}

// Len returns the number of entries.
func (a *AllowedSigners) Len() int {
	return len(a.entries)
}

// Entries returns all parsed entries.
func (a *AllowedSigners) Entries() []AllowedSigner {
	return a.entries
}

// Match reports whether key is authorized for principal in the given
// namespace. Keys are compared by their SSH wire encoding.
func (a *AllowedSigners) Match(principal, namespace string, key ssh.PublicKey) bool {
	blob := key.Marshal()
	for _, e := range a.entries {
		if !e.matchPrincipal(principal) || !e.matchNamespace(namespace) {
			continue
		}
		if bytes.Equal(e.Key.Marshal(), blob) {
			return true
		}
	}
	return false
}

func (e *AllowedSigner) matchPrincipal(principal string) bool {
	for _, p := range e.Principals {
		if ok, err := path.Match(p, principal); err == nil && ok {
			return true
		}
	}
	return false
}

func (e *AllowedSigner) matchNamespace(namespace string) bool {
	if len(e.Namespaces) == 0 {
		return true
	}
	for _, ns := range e.Namespaces {
		if ns == namespace {
			return true
		}
	}
	return false
}
