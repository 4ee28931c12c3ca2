package webhook

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the base64 RSA-SHA512 signature of the raw body.
const SignatureHeader = "Fireblocks-Signature"

var (
	ErrMissingSignature   = errors.New("missing webhook signature")
	ErrMalformedSignature = errors.New("malformed webhook signature")
	ErrSignatureMismatch  = errors.New("webhook signature mismatch")
	ErrInvalidPublicKey   = errors.New("invalid webhook public key")
)

// ParsePublicKey decodes a PEM "PUBLIC KEY" block holding an RSA key.
// Escaped "\n" sequences, as found in single-line env values, are expanded first.
func ParsePublicKey(raw string) (*rsa.PublicKey, error) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, `\n`, "\n"))
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidPublicKey)
	}

	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidPublicKey)
	}
	if block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%w: unexpected block %q", ErrInvalidPublicKey, block.Type)
	}

	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPublicKey)
	}
	return rsaKey, nil
}

// Verify checks signature against the exact bytes that were received.
// The body must not be re-encoded before this call.
func Verify(body []byte, signature string, key *rsa.PublicKey) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}

	digest := sha512.Sum512(body)
	if err := rsa.VerifyPKCS1v15(key, crypto.SHA512, digest[:], sig); err != nil {
		return ErrSignatureMismatch
	}
	return nil
}

// Verifier binds Verify to a configured key.
type Verifier struct {
	key *rsa.PublicKey
}

func NewVerifier(key *rsa.PublicKey) *Verifier {
	return &Verifier{key: key}
}

// NewVerifierFromPEM parses the key and returns a ready verifier.
func NewVerifierFromPEM(raw string) (*Verifier, error) {
	key, err := ParsePublicKey(raw)
	if err != nil {
		return nil, err
	}
	return NewVerifier(key), nil
}

func (v *Verifier) Verify(body []byte, signature string) error {
	return Verify(body, signature, v.key)
}
