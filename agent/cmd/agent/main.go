package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tempslope/tempslope/agent/internal/compute"
	"github.com/tempslope/tempslope/agent/internal/config"
	"github.com/tempslope/tempslope/agent/internal/exporter"
	"github.com/tempslope/tempslope/agent/internal/security"
	"github.com/tempslope/tempslope/agent/internal/sensor"
	"github.com/tempslope/tempslope/agent/internal/shipper"
	"github.com/tempslope/tempslope/pkg/types"
)

// certCheckInterval is how often TLS certificates of https sensors are re-read.
const certCheckInterval = time.Hour

// source is one configured sensor with its reader and latest cert status.
type source struct {
	sensor config.Sensor
	reader sensor.Reader
	cert   *types.CertStatus
}

// sources is the hot-swappable set of sensors read every tick.
type sources struct {
	mu   sync.Mutex
	list []*source
}

func (p *sources) snapshot() []*source {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*source(nil), p.list...)
}

func (p *sources) certOf(pr *source) *types.CertStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return pr.cert
}

// build constructs readers for every sensor, carrying cert status over from
// the previous set. It returns the IDs that are no longer configured.
func (p *sources) build(sensors []config.Sensor) (removed []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	prev := make(map[string]*source, len(p.list))
	for _, pr := range p.list {
		prev[pr.sensor.ID] = pr
	}

	next := make([]*source, 0, len(sensors))
	for _, s := range sensors {
		r, err := sensor.New(s)
		if err != nil {
			slog.Error("skipping sensor, could not build reader", "sensor", s.ID, "err", err)
			continue
		}
		pr := &source{sensor: s, reader: r}
		if old, ok := prev[s.ID]; ok {
			if old.sensor.Endpoint == s.Endpoint {
				pr.cert = old.cert
			}
			delete(prev, s.ID)
		} else {
			slog.Info("registered sensor", "id", s.ID, "type", s.Type, "endpoint", s.Endpoint)
		}
		next = append(next, pr)
	}
	for id := range prev {
		removed = append(removed, id)
	}
	p.list = next
	return removed
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("tempslope-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(parseLevel(cfg.Agent.LogLevel))
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"mqtt_broker", cfg.Agent.MQTT.Broker,
		"sensors", len(cfg.Agent.Sensors),
		"sample_interval", cfg.Agent.SampleInterval,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := compute.NewEngine(thresholds(cfg.Agent.Trend))
	exp := exporter.New()

	var set sources
	set.build(cfg.Agent.Sensors)
	if len(set.snapshot()) == 0 {
		slog.Warn("no sensors configured, agent will idle")
	}

	// Hot reload: thresholds, log level and the sensor list apply immediately.
	// Destinations and intervals need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(parseLevel(updated.Agent.LogLevel))
			engine.SetThresholds(thresholds(updated.Agent.Trend))
			for _, id := range set.build(updated.Agent.Sensors) {
				engine.Forget(id)
				exp.Forget(id)
				slog.Info("sensor removed", "id", id)
			}
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	if cfg.Agent.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Agent.Metrics.Listen, exp)
	}

	ship := shipper.New(cfg.Agent)
	go ship.Run(ctx)

	go checkCerts(ctx, &set)

	// Sample loop: read every SampleInterval, derive the slope, export, ship.
	go func() {
		ticker := time.NewTicker(cfg.Agent.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				for _, p := range set.snapshot() {
					r, err := p.reader.Read(ctx)
					if err != nil {
						slog.Warn("read error", "sensor", p.sensor.ID, "err", err)
						continue
					}
					result := engine.Process(r, t)
					exp.Observe(result)
					ship.Ship(result, set.certOf(p))
					slog.Debug("shipped snapshot",
						"sensor", p.sensor.ID,
						"state", result.State,
						"slope_per_hour", result.SlopePerHour,
					)
				}
			}
		}
	}()

	<-ctx.Done()
	slog.Info("tempslope-agent shutting down", "pending_snapshots", ship.Pending())
}

// checkCerts refreshes the TLS status of https sensors now and every
// certCheckInterval.
func checkCerts(ctx context.Context, set *sources) {
	ticker := time.NewTicker(certCheckInterval)
	defer ticker.Stop()
	for {
		for _, p := range set.snapshot() {
			cs := security.Check(ctx, p.sensor)
			if cs == nil {
				continue
			}
			set.mu.Lock()
			p.cert = cs
			set.mu.Unlock()
			if cs.Status != "valid" {
				slog.Warn("certificate needs attention",
					"sensor", p.sensor.ID, "status", cs.Status, "days_left", cs.DaysLeft)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// serveMetrics exposes /metrics and /healthz until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, exp *exporter.Exporter) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	slog.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server error", "err", err)
	}
}

func thresholds(t config.TrendConfig) compute.Thresholds {
	return compute.Thresholds{RisingPerHour: t.RisingPerHour, FallingPerHour: t.FallingPerHour}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
