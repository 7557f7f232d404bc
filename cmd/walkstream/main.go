// Package main implements the walkstream CLI: a streaming client that
// connects to the tracking backend and feeds it synthetic GPS fixes along a
// circular walk. Useful for exercising the backend and for soak-testing the
// reconnect path by killing the network underneath it.
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pawtrack/walkstream/metric"
	"github.com/pawtrack/walkstream/reachability"
	"github.com/pawtrack/walkstream/securepipe"
	"github.com/pawtrack/walkstream/session"
	"github.com/pawtrack/walkstream/track"
	"github.com/pawtrack/walkstream/transport"
)

const (
	version = "0.1.0"
	appName = "walkstream"
)

// Synthetic walk parameters: a slow circle around a park.
const (
	walkCenterLat = 52.5163
	walkCenterLon = 13.3777
	walkRadiusDeg = 0.002
	walkSpeedMS   = 1.4
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	logger.Info("Starting walkstream client",
		"version", version,
		"session", sessionID,
		"endpoint", cfg.Endpoint)

	registry := metric.NewMetricsRegistry()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, registry, logger)
	}

	pipeline, err := buildPipeline(cfg.Key)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	dialer := transport.NewWebsocketDialer(
		transport.StaticCredentials{Endpoint: cfg.Endpoint, Token: cfg.Token},
		transport.ClientTLSConfig{},
		logger,
	)

	var monitor reachability.Monitor = &reachability.Static{}
	if cfg.ProbeAddr != "" {
		monitor = reachability.NewProbe(cfg.ProbeAddr, 0, 0)
	}

	sess, err := session.New(sessionID, dialer,
		session.WithConfig(cfg.sessionConfig()),
		session.WithLogger(logger),
		session.WithPipeline(pipeline),
		session.WithReachability(monitor),
		session.WithMetrics(registry),
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	sess.OnMessage(func(msg session.Message) {
		logger.Info("inbound message", "type", msg.Type, "payload", string(msg.Payload))
	})
	sess.OnError(func(err error) {
		logger.Error("session error", "error", err)
	})

	sess.Connect()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	feed := time.NewTicker(cfg.SampleInterval)
	defer feed.Stop()

	start := time.Now()
	for {
		select {
		case sig := <-sigCh:
			logger.Info("Shutting down", "signal", sig.String())
			sess.Disconnect()
			select {
			case <-sess.Done():
			case <-time.After(5 * time.Second):
				logger.Warn("shutdown timed out")
			}
			return nil

		case <-sess.Done():
			return fmt.Errorf("session ended")

		case <-feed.C:
			lat, lon := walkPosition(time.Since(start))
			sample, err := track.NewSample(sessionID, lat, lon, 0, walkSpeedMS)
			if err != nil {
				logger.Warn("sample construction failed", "error", err)
				continue
			}
			if err := sess.Submit(sample); err != nil {
				logger.Warn("sample rejected", "error", err)
			}
		}
	}
}

// walkPosition returns a point on a circle around the walk center, advancing
// at roughly walking speed.
func walkPosition(elapsed time.Duration) (lat, lon float64) {
	// Full lap in ten minutes
	angle := 2 * math.Pi * elapsed.Minutes() / 10
	lat = walkCenterLat + walkRadiusDeg*math.Sin(angle)
	lon = walkCenterLon + walkRadiusDeg*math.Cos(angle)
	return lat, lon
}

func buildPipeline(hexKey string) (*securepipe.Pipeline, error) {
	if hexKey == "" {
		slog.Warn("frame encryption disabled, set WALKSTREAM_KEY in production")
		return securepipe.New(nil, securepipe.NewGzipCompressor()), nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, err
	}
	cipher, err := securepipe.NewChaChaCipher(key)
	if err != nil {
		return nil, err
	}
	return securepipe.New(cipher, securepipe.NewGzipCompressor()), nil
}

func serveMetrics(addr string, registry *metric.MetricsRegistry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry.PrometheusRegistry(), promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}

func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
