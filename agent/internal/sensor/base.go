package sensor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/temp"
)

const defaultReadTimeout = 10 * time.Second

// Reading is the normalized output of one read of a single sensor.
type Reading struct {
	SensorID   string
	SensorType string
	ReadAt     time.Time

	// Value is temp.Invalid whenever Err is non-nil.
	Value temp.Temp

	// Err is non-nil if the read itself failed (connectivity, auth, parse,
	// CRC). The compute engine treats it as an unknown state.
	Err error
}

// Reader is the common interface implemented by every sensor type.
//
// Read only returns a non-nil error for programming errors; device and
// transport failures are reported in Reading.Err so the caller still gets a
// Reading to count against uptime.
type Reader interface {
	Read(ctx context.Context) (*Reading, error)
}

// New returns the appropriate Reader for the given sensor configuration.
// HTTP-backed readers build their client once and reuse it across reads.
func New(s config.Sensor) (Reader, error) {
	switch s.Type {
	case "prometheus":
		client, err := buildHTTPClient(s)
		if err != nil {
			return nil, fmt.Errorf("sensor %q: build http client: %w", s.ID, err)
		}
		return &promReader{sensor: s, client: client}, nil
	case "w1":
		return &w1Reader{sensor: s}, nil
	case "file":
		return &fileReader{sensor: s}, nil
	default:
		return nil, fmt.Errorf("sensor: unsupported type %q", s.Type)
	}
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the sensor's auth and TLS settings.
func buildHTTPClient(s config.Sensor) (*http.Client, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: s.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}

	if s.Auth.Mode == "mtls" {
		cert, err := tls.LoadX509KeyPair(s.Auth.CertFile, s.Auth.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}

		if s.Auth.CAFile != "" {
			caPEM, err := os.ReadFile(s.Auth.CAFile)
			if err != nil {
				return nil, fmt.Errorf("read ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caPEM) {
				return nil, fmt.Errorf("no valid certs found in ca file %q", s.Auth.CAFile)
			}
			tlsCfg.RootCAs = pool
		}
	}

	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: s.Auth,
		},
		Timeout: defaultReadTimeout,
	}, nil
}

// fetchMetrics performs an HTTP GET to url and returns parsed metric families.
func fetchMetrics(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return parseMetrics(resp.Body)
}

// parseMetrics decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned successfully.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// newReading initialises a Reading that is invalid until a value is set.
func newReading(id, typ string, now time.Time) *Reading {
	return &Reading{
		SensorID:   id,
		SensorType: typ,
		ReadAt:     now.UTC(),
		Value:      temp.Invalid,
	}
}
