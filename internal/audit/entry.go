// Package audit provides a hash-chained ledger of bootstrap events.
package audit

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/keeltrust/keel/internal/log"
)

// EntryType identifies the kind of ledger entry.
type EntryType string

const (
	EntryInception    EntryType = "inception"
	EntryVerification EntryType = "verification"
	EntryScaffold     EntryType = "scaffold"
	EntryRemote       EntryType = "remote"
	EntryKey          EntryType = "key"
)

// FirstSequence is the sequence number of the first entry in a ledger.
// Sequences are 1-indexed to distinguish "no previous entry" (seq=0) from the first entry.
const FirstSequence uint64 = 1

// InceptionData records an inception commit creation.
type InceptionData struct {
	Repo        string `json:"repo"`
	Commit      string `json:"commit"`
	DID         string `json:"did"`
	Fingerprint string `json:"fingerprint"`
}

// VerificationData records a verification pass.
type VerificationData struct {
	Repo         string   `json:"repo"`
	DID          string   `json:"did"`
	Passed       bool     `json:"passed"`
	FailedChecks []string `json:"failed_checks,omitempty"`
}

// ScaffoldData records template document emission.
type ScaffoldData struct {
	Repo  string   `json:"repo"`
	Files []string `json:"files"`
}

// RemoteData records GitHub remote setup actions.
type RemoteData struct {
	Repo   string `json:"repo"`
	Remote string `json:"remote"`           // owner/name
	Action string `json:"action"`           // e.g. "created", "branch_protection", "required_signatures"
	Warned bool   `json:"warned,omitempty"` // action failed but was downgraded to a warning
}

// KeyData records signing key generation.
type KeyData struct {
	Path        string `json:"path"`
	Fingerprint string `json:"fingerprint"`
}

// Entry represents a single hash-chained ledger entry.
type Entry struct {
	Sequence  uint64    `json:"seq"`
	Timestamp time.Time `json:"ts"`
	Type      EntryType `json:"type"`
	PrevHash  string    `json:"prev"`
	// Data must be JSON-serializable. Non-serializable values will
	// marshal as null, which may cause hash collisions.
	Data any    `json:"data"`
	Hash string `json:"hash"`
	// dataJSON stores the canonical JSON used for hashing. This ensures hash
	// verification works correctly after database round-trips, where Data
	// becomes map[string]any (which marshals with sorted keys, unlike structs).
	dataJSON []byte `json:"-"`
}

// NewEntry creates a new entry with computed hash.
func NewEntry(seq uint64, prevHash string, entryType EntryType, data any) *Entry {
	return newEntryWithTimestamp(seq, prevHash, entryType, data, time.Now().UTC())
}

func newEntryWithTimestamp(seq uint64, prevHash string, entryType EntryType, data any, ts time.Time) *Entry {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		log.Warn("failed to marshal entry data", "type", entryType, "error", err)
		dataJSON = []byte("null")
	}
	e := &Entry{
		Sequence:  seq,
		Timestamp: ts,
		Type:      entryType,
		PrevHash:  prevHash,
		Data:      data,
		dataJSON:  dataJSON,
	}
	e.Hash = e.computeHash()
	return e
}

// computeHash calculates SHA-256(seq || ts || type || prev || data).
func (e *Entry) computeHash() string {
	h := sha256.New()

	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, e.Sequence)
	h.Write(seqBytes)

	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.PrevHash))

	dataBytes := e.dataJSON
	if dataBytes == nil {
		var err error
		dataBytes, err = json.Marshal(e.Data)
		if err != nil {
			log.Warn("failed to marshal entry data for hash", "seq", e.Sequence, "error", err)
			dataBytes = []byte("null")
		}
	}
	h.Write(dataBytes)

	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks if the entry's hash is valid.
func (e *Entry) Verify() bool {
	return e.Hash == e.computeHash()
}

// DataJSON returns the canonical JSON encoding of the entry's data, the
// same bytes the hash covers.
func (e *Entry) DataJSON() []byte {
	if e.dataJSON != nil {
		return e.dataJSON
	}
	b, err := json.Marshal(e.Data)
	if err != nil {
		return []byte("null")
	}
	return b
}

// UnmarshalJSON implements custom JSON unmarshaling to set dataJSON.
// This ensures hash verification works after JSON round-trips.
func (e *Entry) UnmarshalJSON(data []byte) error {
	// Use a type alias to avoid infinite recursion
	type Alias Entry
	aux := &struct {
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	var err error
	e.dataJSON, err = json.Marshal(e.Data)
	if err != nil {
		log.Warn("failed to marshal entry data after unmarshal", "seq", e.Sequence, "error", err)
		e.dataJSON = []byte("null")
	}
	return nil
}
