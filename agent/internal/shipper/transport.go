package shipper

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/eclipse/paho.golang/paho"

	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/pkg/types"
)

// IngestPath is the server endpoint snapshots are POSTed to.
const IngestPath = "/api/v1/ingest"

// defaultDial opens every transport the config asks for.
func defaultDial(ctx context.Context, cfg config.AgentConfig) (transport, error) {
	var trs multiTransport
	if cfg.ServerEndpoint != "" {
		h, err := newHTTPTransport(cfg)
		if err != nil {
			return nil, err
		}
		trs = append(trs, h)
	}
	if cfg.MQTT.Enabled() {
		m, err := dialMQTT(ctx, cfg.MQTT)
		if err != nil {
			trs.Close()
			return nil, err
		}
		trs = append(trs, m)
	}
	switch len(trs) {
	case 0:
		return nil, fmt.Errorf("shipper: no destination configured")
	case 1:
		return trs[0], nil
	}
	return trs, nil
}

// --- HTTP ---

// httpTransport POSTs each snapshot as JSON to the server's ingest endpoint.
type httpTransport struct {
	url    string
	auth   config.AuthConfig
	client *http.Client
}

func newHTTPTransport(cfg config.AgentConfig) (*httpTransport, error) {
	client := &http.Client{Timeout: sendTimeout}
	if cfg.ServerAuth.Mode == "mtls" {
		tlsCfg, err := buildMTLSConfig(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls config: %w", err)
		}
		client.Transport = &http.Transport{TLSClientConfig: tlsCfg}
	}
	return &httpTransport{
		url:    strings.TrimRight(cfg.ServerEndpoint, "/") + IngestPath,
		auth:   cfg.ServerAuth,
		client: client,
	}, nil
}

func (t *httpTransport) Send(ctx context.Context, snap *types.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", errPermanent, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", errPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch t.auth.Mode {
	case "apikey":
		req.Header.Set(t.auth.EffectiveHeader(), t.auth.Key())
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%w: server returned %d: %s", errPermanent, resp.StatusCode, bytes.TrimSpace(msg))
	default:
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
}

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

// buildMTLSConfig loads client certificate and optional CA from the auth config.
func buildMTLSConfig(auth config.AuthConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// --- MQTT ---

// publisher is the subset of *paho.Client the MQTT transport uses.
type publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
	Disconnect(d *paho.Disconnect) error
}

// mqttTransport publishes each snapshot, retained, to
// <topic_prefix>/<sensor_id>/snapshot so late subscribers get the latest
// state immediately.
type mqttTransport struct {
	client publisher
	prefix string
	qos    byte
}

func dialMQTT(ctx context.Context, cfg config.MQTTConfig) (*mqttTransport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("mqtt dial %s: %w", cfg.Broker, err)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "tempslope-agent-" + host
	}

	c := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
	})
	ack, err := c.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		KeepAlive:  30,
		CleanStart: true,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect %s: %w", cfg.Broker, err)
	}
	if ack.ReasonCode != 0 {
		conn.Close()
		return nil, fmt.Errorf("mqtt connect %s: reason code %d", cfg.Broker, ack.ReasonCode)
	}

	return &mqttTransport{client: c, prefix: cfg.TopicPrefix, qos: cfg.QoS}, nil
}

// Topic returns the topic a sensor's snapshots are published to.
func Topic(prefix, sensorID string) string {
	return strings.TrimRight(prefix, "/") + "/" + sensorID + "/snapshot"
}

func (t *mqttTransport) Send(ctx context.Context, snap *types.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: marshal snapshot: %v", errPermanent, err)
	}
	_, err = t.client.Publish(ctx, &paho.Publish{
		Topic:   Topic(t.prefix, snap.SensorID),
		QoS:     t.qos,
		Retain:  true,
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
		},
	})
	return err
}

func (t *mqttTransport) Close() error {
	return t.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}

// --- fan-out ---

// multiTransport sends to every transport. A snapshot counts as delivered
// only if every destination accepted it.
type multiTransport []transport

func (m multiTransport) Send(ctx context.Context, snap *types.Snapshot) error {
	var errs []error
	for _, t := range m {
		if err := t.Send(ctx, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiTransport) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
