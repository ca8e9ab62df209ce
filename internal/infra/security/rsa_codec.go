// File: internal/infra/security/rsa_codec.go
package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	"ridehail-backoffice/internal/domain"
)

// Codec encrypts checkout payloads for the gateway and decrypts callback
// tokens from it. RSA-OAEP with SHA-256 for both the digest and the MGF1
// hash; any parameter mismatch with the peer fails decryption outright
// rather than producing garbage.
type Codec struct {
	encryptKey *rsa.PublicKey  // gateway's public key
	decryptKey *rsa.PrivateKey // merchant's private key
}

func NewCodec(encryptKey *rsa.PublicKey, decryptKey *rsa.PrivateKey) *Codec {
	return &Codec{encryptKey: encryptKey, decryptKey: decryptKey}
}

// NewCodecFromFiles loads PEM-encoded keys from disk.
func NewCodecFromFiles(publicKeyPath, privateKeyPath string) (*Codec, error) {
	pub, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load gateway public key: %w", err)
	}
	priv, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load merchant private key: %w", err)
	}
	return NewCodec(pub, priv), nil
}

// Encrypt serializes v to canonical JSON and encrypts it with OAEP.
// Ciphertext bytes are randomized per call; only the structure is stable.
func (c *Codec) Encrypt(v any) ([]byte, error) {
	if c.encryptKey == nil {
		return nil, fmt.Errorf("encrypt key not configured")
	}
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, c.encryptKey, plain, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa encrypt: %w", err)
	}
	return ct, nil
}

// EncryptToken is Encrypt plus url-safe framing.
func (c *Codec) EncryptToken(v any) (string, error) {
	ct, err := c.Encrypt(v)
	if err != nil {
		return "", err
	}
	return ToURLSafeToken(ct), nil
}

// ToURLSafeToken frames ciphertext for a URL query parameter: standard
// base64 with '+' -> '-', '/' -> '_' and trailing '=' padding stripped.
func ToURLSafeToken(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecryptToken reverses the framing, decrypts with the merchant private key
// and unmarshals into out. All failures wrap domain.ErrDecodeToken so the
// caller can treat them as a recoverable bad request.
func (c *Codec) DecryptToken(token string, out any) error {
	if c.decryptKey == nil {
		return fmt.Errorf("%w: decrypt key not configured", domain.ErrDecodeToken)
	}
	ct, err := fromURLSafeToken(token)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecodeToken, err)
	}
	plain, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, c.decryptKey, ct, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecodeToken, err)
	}
	if err := json.Unmarshal(plain, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDecodeToken, err)
	}
	return nil
}

// fromURLSafeToken accepts both the stripped url-safe alphabet and tokens
// that arrive with literal '+', '/' or '=' intact (some user agents do not
// re-encode the query string).
func fromURLSafeToken(token string) ([]byte, error) {
	s := strings.TrimRight(token, "=")
	s = strings.ReplaceAll(s, "+", "-")
	s = strings.ReplaceAll(s, "/", "_")
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	return b, nil
}

func loadPublicKey(path string) (*rsa.PublicKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if k, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%s: not an RSA public key", path)
		}
		return pub, nil
	}
	return x509.ParsePKCS1PublicKey(block.Bytes)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		priv, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%s: not an RSA private key", path)
		}
		return priv, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}
