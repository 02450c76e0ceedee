package certs

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// ErrMalformedPEM is returned when a file contains no parseable PEM block.
// Both a mangled header/footer marker and a corrupted base64 payload that
// fails to decode collapse into this error.
var ErrMalformedPEM = errors.New("certs: malformed PEM data")

// ValidateCertFile parses every PEM block in the file at path as an X.509
// certificate. It fails on the first block that does not decode or parse.
func ValidateCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("certs: read %q: %w", path, err)
	}

	var blocks int
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		blocks++
		if _, err := x509.ParseCertificate(block.Bytes); err != nil {
			return fmt.Errorf("certs: %q block %d: parse certificate: %w", path, blocks, err)
		}
	}
	if blocks == 0 {
		return fmt.Errorf("certs: %q: %w", path, ErrMalformedPEM)
	}
	return nil
}

// ValidateKeyFile parses the first PEM block in the file at path as a private
// key (PKCS#8, PKCS#1 RSA, or SEC1 EC).
func ValidateKeyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("certs: read %q: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return fmt.Errorf("certs: %q: %w", path, ErrMalformedPEM)
	}

	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return nil
	}
	if _, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return nil
	}
	return fmt.Errorf("certs: %q: parse private key: %w", path, ErrMalformedPEM)
}

// LoadKeyPair loads a client certificate/key pair the same way the TLS stack
// will at handshake time. The corrupted negative-test pair must fail here
// before any connection is attempted.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certs: load key pair (%q, %q): %w", certPath, keyPath, err)
	}
	return cert, nil
}

// LoadCertPool reads a CA bundle into a fresh cert pool.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("certs: read ca file %q: %w", path, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("certs: no valid certs in ca file %q: %w", path, ErrMalformedPEM)
	}
	return pool, nil
}
