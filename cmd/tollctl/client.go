package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// signer holds the approver's local key. The server knows the approver
// only by the base64 public key, which doubles as the X-Approver value.
type signer struct {
	priv ed25519.PrivateKey
}

func loadSigner(path string) (*signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode key file: %w", err)
	}
	switch len(decoded) {
	case ed25519.SeedSize:
		return &signer{priv: ed25519.NewKeyFromSeed(decoded)}, nil
	case ed25519.PrivateKeySize:
		return &signer{priv: ed25519.PrivateKey(decoded)}, nil
	default:
		return nil, fmt.Errorf("key file must hold a base64 ed25519 seed or private key, got %d bytes", len(decoded))
	}
}

func (s *signer) identity() string {
	pub := s.priv.Public().(ed25519.PublicKey)
	return base64.StdEncoding.EncodeToString(pub)
}

func (s *signer) sign(message []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, message))
}

var httpClient = &http.Client{Timeout: 15 * time.Second}

// signedPost sends a governance call. The signature covers the body
// when one is present and the request path otherwise, matching what
// the server verifies.
func signedPost(server string, s *signer, path string, body []byte) ([]byte, int, error) {
	endpoint, err := url.JoinPath(server, path)
	if err != nil {
		return nil, 0, fmt.Errorf("join url: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	message := body
	if len(message) == 0 {
		message = []byte(path)
	}
	req.Header.Set("X-Approver", s.identity())
	req.Header.Set("X-Signature", s.sign(message))
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	return do(req)
}

func adminGet(server, adminKey, path string) ([]byte, int, error) {
	endpoint, err := url.JoinPath(server, path)
	if err != nil {
		return nil, 0, fmt.Errorf("join url: %w", err)
	}
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("X-Admin-API-Key", adminKey)
	return do(req)
}

func do(req *http.Request) ([]byte, int, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return out, resp.StatusCode, nil
}

func printResult(body []byte, status int) int {
	fmt.Println(strings.TrimSpace(string(body)))
	if status < 200 || status >= 300 {
		fmt.Fprintf(os.Stderr, "server returned HTTP %d\n", status)
		return 1
	}
	return 0
}
