package certs

import (
	"context"
	"crypto/tls"
	"math"
	"net"
	"time"
)

// Endpoint certificate status values.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringWindowDays is the days-left threshold below which a certificate is
// reported as expiring.
const expiringWindowDays = 30

// CertStatus describes the leaf certificate presented by a TLS endpoint.
type CertStatus struct {
	Endpoint string
	Status   string
	Issuer   string
	NotAfter time.Time
	DaysLeft int
}

// Check dials the given host:port endpoint over TLS and returns a CertStatus
// for the leaf certificate the server presents. Verification is skipped —
// the point is to inspect whatever material is there, valid or not.
//
// Uses a 10-second dial timeout so a slow or unreachable host does not block
// the caller indefinitely.
func Check(ctx context.Context, endpoint string) *CertStatus {
	cs := &CertStatus{Endpoint: endpoint}

	host := endpoint
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // inspection only
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := leaf.NotAfter.Sub(time.Now()).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = StatusExpired
	case daysLeft <= expiringWindowDays:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}

	return cs
}
