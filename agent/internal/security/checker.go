package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/types"
)

const (
	dialTimeout = 10 * time.Second

	// ExpiringWithin is the remaining validity below which a certificate is
	// reported as expiring.
	ExpiringWithin = 30 * 24 * time.Hour
)

// Check dials the TLS endpoint of the given sensor and returns a CertStatus
// describing the leaf certificate.
//
// Returns nil for endpoints that are not https URLs, which covers every w1
// and file sensor.
func Check(ctx context.Context, s config.Sensor) *types.CertStatus {
	u, err := url.Parse(s.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &types.CertStatus{
		Endpoint: s.Endpoint,
		AuthType: s.Auth.Mode,
	}
	if cs.AuthType == "" {
		cs.AuthType = "none"
	}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: s.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = "unreachable"
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = "unreachable"
		return cs
	}
	describe(cs, peerCerts[0], time.Now())
	return cs
}

// describe fills the validity fields of cs from leaf as seen at now.
func describe(cs *types.CertStatus, leaf *x509.Certificate, now time.Time) {
	left := leaf.NotAfter.Sub(now)

	cs.NotAfter = leaf.NotAfter.UTC().Format(time.RFC3339)
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int32(math.Floor(left.Hours() / 24))

	switch {
	case left <= 0:
		cs.Status = "expired"
	case left <= ExpiringWithin:
		cs.Status = "expiring"
	default:
		cs.Status = "valid"
	}
}
