package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"tollgate/internal/domain"
)

// Service verifies that a signature was produced by a claimed identity
// over a message. Identities are base64-encoded ed25519 public keys.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Verify(identity domain.Identity, message, sig []byte) error {
	pubKey, err := base64.StdEncoding.DecodeString(string(identity))
	if err != nil {
		return fmt.Errorf("invalid identity encoding: %w", err)
	}
	if len(pubKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key length: %d", len(pubKey))
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid ed25519 signature length: %d", len(sig))
	}
	if !ed25519.Verify(pubKey, message, sig) {
		return domain.ErrSignatureInvalid
	}
	return nil
}

func (s *Service) VerifyBase64(identity domain.Identity, message []byte, sigBase64 string) error {
	if sigBase64 == "" {
		return errors.New("signature value is required")
	}
	sig, err := base64.StdEncoding.DecodeString(sigBase64)
	if err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}
	return s.Verify(identity, message, sig)
}
