package mail

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// Signer adds a DKIM-Signature header to outgoing messages.
type Signer struct {
	domain     string
	selector   string
	key        crypto.Signer
	headerKeys []string
}

// NewSigner loads the PEM private key at keyPath. An empty selector disables signing.
func NewSigner(domain, selector, keyPath string) (*Signer, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}
	if keyPath == "" {
		return nil, fmt.Errorf("dkim: key path is required when a selector is set")
	}
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("dkim: read private key: %w", err)
	}
	return newSignerFromPEM(domain, selector, data)
}

func newSignerFromPEM(domain, selector string, pemData []byte) (*Signer, error) {
	key, err := loadKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("dkim: parse private key: %w", err)
	}
	return &Signer{
		domain:   strings.ToLower(strings.TrimSpace(domain)),
		selector: selector,
		key:      key,
		headerKeys: []string{
			"from", "to", "subject", "date", "message-id", "mime-version", "content-type",
		},
	}, nil
}

// Sign returns message with a DKIM signature prepended. A nil signer is a no-op.
func (s *Signer) Sign(message []byte, from string) ([]byte, error) {
	if s == nil || s.key == nil {
		return message, nil
	}
	domain := s.domain
	if domain == "" {
		domain = domainOf(from)
	}
	if domain == "" {
		return nil, fmt.Errorf("dkim: unable to determine signing domain")
	}

	opts := &dkim.SignOptions{
		Domain:                 domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             s.headerKeys,
	}

	var signed bytes.Buffer
	if err := dkim.Sign(&signed, bytes.NewReader(message), opts); err != nil {
		return nil, fmt.Errorf("dkim: signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

// loadKey decodes the first PEM block holding a private key. DKIM signs
// with RSA or Ed25519 keys only.
func loadKey(pemData []byte) (crypto.Signer, error) {
	var block *pem.Block
	for block, pemData = pem.Decode(pemData); block != nil; block, pemData = pem.Decode(pemData) {
		if strings.HasSuffix(block.Type, "PRIVATE KEY") {
			break
		}
	}
	if block == nil {
		return nil, errors.New("no private key block in PEM data")
	}

	var parsed any
	var err error
	if block.Type == "RSA PRIVATE KEY" {
		parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	} else {
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	}
	if err != nil {
		return nil, err
	}
	switch k := parsed.(type) {
	case *rsa.PrivateKey:
		return k, nil
	case ed25519.PrivateKey:
		return k, nil
	}
	return nil, fmt.Errorf("unsupported %s key type %T", block.Type, parsed)
}

func domainOf(address string) string {
	address = strings.Trim(strings.TrimSpace(address), "<>")
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}
