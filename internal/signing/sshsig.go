package signing

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/pem"
	"fmt"
	"hash"

	"golang.org/x/crypto/ssh"
)

// SSH file signature wire format, per OpenSSH PROTOCOL.sshsig.
const (
	sshsigMagic   = "SSHSIG"
	sshsigVersion = 1
	sshsigPEMType = "SSH SIGNATURE"

	// NamespaceGit is the signature namespace git uses for commits and tags.
	NamespaceGit = "git"
)

// wireSignature is the outer SSHSIG blob, minus the 6-byte magic preamble.
type wireSignature struct {
	Version       uint32
	PublicKey     []byte
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Signature     []byte
}

// wireSignedData is the message the private key actually signs, minus the
// magic preamble. Hash is H(message) under HashAlgorithm.
type wireSignedData struct {
	Namespace     string
	Reserved      string
	HashAlgorithm string
	Hash          []byte
}

// Sign produces an armored SSH signature over message in the given
// namespace. The result is the same format `ssh-keygen -Y sign` emits,
// which git embeds verbatim in the gpgsig commit header.
func (s *Signer) Sign(message []byte, namespace string) (string, error) {
	hashed := sha512.Sum512(message)

	payload := append([]byte(sshsigMagic), ssh.Marshal(wireSignedData{
		Namespace:     namespace,
		Reserved:      "",
		HashAlgorithm: "sha512",
		Hash:          hashed[:],
	})...)

	sig, err := signPayload(s.signer, payload)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}

	blob := append([]byte(sshsigMagic), ssh.Marshal(wireSignature{
		Version:       sshsigVersion,
		PublicKey:     s.signer.PublicKey().Marshal(),
		Namespace:     namespace,
		Reserved:      "",
		HashAlgorithm: "sha512",
		Signature:     ssh.Marshal(sig),
	})...)

	armored := pem.EncodeToMemory(&pem.Block{
		Type:  sshsigPEMType,
		Bytes: blob,
	})
	return string(armored), nil
}

// signPayload signs with the strongest algorithm the key supports. Plain
// ssh-rsa signatures are rejected by sshsig verifiers, so RSA keys are
// upgraded to rsa-sha2-512.
func signPayload(signer ssh.Signer, payload []byte) (*ssh.Signature, error) {
	if signer.PublicKey().Type() == ssh.KeyAlgoRSA {
		if as, ok := signer.(ssh.AlgorithmSigner); ok {
			return as.SignWithAlgorithm(rand.Reader, payload, ssh.KeyAlgoRSASHA512)
		}
	}
	return signer.Sign(rand.Reader, payload)
}

// VerifySignature checks an armored SSH signature over message in the given
// namespace and returns the public key embedded in the signature. The caller
// decides whether that key is trusted (see AllowedSigners.Match).
func VerifySignature(armored, namespace string, message []byte) (ssh.PublicKey, error) {
	block, _ := pem.Decode([]byte(armored))
	if block == nil || block.Type != sshsigPEMType {
		return nil, fmt.Errorf("not an SSH signature")
	}

	if !bytes.HasPrefix(block.Bytes, []byte(sshsigMagic)) {
		return nil, fmt.Errorf("bad signature preamble")
	}

	var w wireSignature
	if err := ssh.Unmarshal(block.Bytes[len(sshsigMagic):], &w); err != nil {
		return nil, fmt.Errorf("decoding signature: %w", err)
	}
	if w.Version != sshsigVersion {
		return nil, fmt.Errorf("unsupported signature version %d", w.Version)
	}
	if w.Namespace != namespace {
		return nil, fmt.Errorf("signature namespace %q, want %q", w.Namespace, namespace)
	}

	h, err := hashFunc(w.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	h.Write(message)

	payload := append([]byte(sshsigMagic), ssh.Marshal(wireSignedData{
		Namespace:     w.Namespace,
		Reserved:      w.Reserved,
		HashAlgorithm: w.HashAlgorithm,
		Hash:          h.Sum(nil),
	})...)

	pub, err := ssh.ParsePublicKey(w.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded public key: %w", err)
	}

	var sig ssh.Signature
	if err := ssh.Unmarshal(w.Signature, &sig); err != nil {
		return nil, fmt.Errorf("decoding inner signature: %w", err)
	}

	if err := pub.Verify(payload, &sig); err != nil {
		return nil, fmt.Errorf("signature does not verify: %w", err)
	}
	return pub, nil
}

func hashFunc(algo string) (hash.Hash, error) {
	switch algo {
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algo)
	}
}
