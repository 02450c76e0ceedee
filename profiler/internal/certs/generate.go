package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// DefaultValidity is the validity period for generated fixture certificates.
const DefaultValidity = 365 * 24 * time.Hour

// CA is a generated certificate authority that can sign server and client
// certificates for a fixture set.
type CA struct {
	cert *x509.Certificate
	key  *ecdsa.PrivateKey

	// PEM is the encoded CA certificate, suitable for ca.crt.
	PEM []byte
}

// NewCA generates a self-signed ECDSA P-256 certificate authority.
func NewCA(commonName string) (*CA, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("certs: generate ca key: %w", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          newSerial(),
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(DefaultValidity),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("certs: create ca certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("certs: parse ca certificate: %w", err)
	}

	return &CA{
		cert: cert,
		key:  key,
		PEM:  pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
	}, nil
}

// KeyPair is an issued certificate with its private key, both PEM-encoded.
type KeyPair struct {
	CertPEM []byte
	KeyPEM  []byte
}

// Issue signs a certificate for the given common name. Server certificates
// carry localhost SANs so fixture servers can be dialed by name or loopback
// address; client certificates carry the client-auth extended usage.
func (ca *CA) Issue(commonName string, server bool) (*KeyPair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("certs: generate key for %q: %w", commonName, err)
	}

	tmpl := &x509.Certificate{
		SerialNumber: newSerial(),
		Subject:      pkix.Name{CommonName: commonName},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(DefaultValidity),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	if server {
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth}
		tmpl.DNSNames = []string{"localhost", commonName}
		tmpl.IPAddresses = []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback}
	} else {
		tmpl.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		return nil, fmt.Errorf("certs: create certificate for %q: %w", commonName, err)
	}

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("certs: marshal key for %q: %w", commonName, err)
	}

	return &KeyPair{
		CertPEM: pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		KeyPEM:  pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}),
	}, nil
}

// WriteFixtureSet generates a complete fixture set under dir: ca.crt,
// server.crt/server.key, client.crt/client.key, and — when corrupt is true —
// client2.crt/client2.key, the case-mutated copies of the client pair.
func WriteFixtureSet(dir string, corrupt bool) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("certs: create fixture dir: %w", err)
	}

	ca, err := NewCA("modelperf-fixture-ca")
	if err != nil {
		return err
	}
	server, err := ca.Issue("modelperf-server", true)
	if err != nil {
		return err
	}
	client, err := ca.Issue("modelperf-client", false)
	if err != nil {
		return err
	}

	files := []struct {
		name string
		data []byte
		mode os.FileMode
	}{
		{"ca.crt", ca.PEM, 0o644},
		{"server.crt", server.CertPEM, 0o644},
		{"server.key", server.KeyPEM, 0o600},
		{"client.crt", client.CertPEM, 0o644},
		{"client.key", client.KeyPEM, 0o600},
	}
	if corrupt {
		files = append(files,
			struct {
				name string
				data []byte
				mode os.FileMode
			}{"client2.crt", Corrupt(client.CertPEM), 0o644},
			struct {
				name string
				data []byte
				mode os.FileMode
			}{"client2.key", Corrupt(client.KeyPEM), 0o600},
		)
	}

	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, f.mode); err != nil {
			return fmt.Errorf("certs: write %q: %w", path, err)
		}
	}
	return nil
}

// newSerial returns a random 128-bit certificate serial number.
func newSerial() *big.Int {
	limit := new(big.Int).Lsh(big.NewInt(1), 128)
	serial, err := rand.Int(rand.Reader, limit)
	if err != nil {
		// crypto/rand only fails when the platform RNG is broken.
		panic(err)
	}
	return serial
}
