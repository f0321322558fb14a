// Command ilserver runs the IQ aggregation server: one TCP listener
// per receiver channel, one controller listener, and whichever
// telemetry surfaces the configuration enables.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwsl/ilserver/internal/config"
	"github.com/cwsl/ilserver/internal/health"
	"github.com/cwsl/ilserver/internal/metrics"
	"github.com/cwsl/ilserver/internal/server"
	"github.com/cwsl/ilserver/internal/telemetry"
)

func main() {
	configFile := flag.String("config", "ilserver.yaml", "Path to configuration file")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	srv := server.New(cfg, logger)

	healthReporter := health.NewReporter()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		srv.Metrics = metrics.New(reg)
		metricsServer = metrics.StartServer(cfg.Metrics.Listen, reg, healthReporter.Handler())
		logger.Printf("metrics listening on %s", cfg.Metrics.Listen)
	}

	if cfg.MQTT.Enabled {
		pub, err := telemetry.New(cfg.MQTT)
		if err != nil {
			logger.Printf("mqtt publisher disabled: %v", err)
		} else {
			srv.Pub = pub
			logger.Printf("mqtt publisher connected to %s", cfg.MQTT.Broker)
		}
	}

	var statusMux *httpServerHolder
	if cfg.StatusWS.Enabled {
		bcast := srv.StatusBroadcaster()
		stop := make(chan struct{})
		go bcast.Run(stop)
		statusMux = startHTTPHandler(cfg.StatusWS.Listen, bcast.Handler, logger, "status websocket")
		defer close(stop)
	}

	var mcpMux *httpServerHolder
	if cfg.MCP.Enabled {
		mcpSrv := srv.MCPServer()
		mcpMux = startHTTPHandler(cfg.MCP.Listen, mcpSrv.ServeHTTP, logger, "mcp introspection server")
	}

	ctx, cancel := context.WithCancel(context.Background())

	if err := srv.ListenChannels(ctx); err != nil {
		logger.Fatalf("failed to start channel listeners: %v", err)
	}
	if err := srv.ListenController(ctx); err != nil {
		logger.Fatalf("failed to start controller listener: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Println("shutting down")
	cancel()

	srv.Shutdown(context.Background(), func(shutdownCtx context.Context) {
		if metricsServer != nil {
			metricsServer.Stop(shutdownCtx)
		}
		if statusMux != nil {
			statusMux.stop(shutdownCtx)
		}
		if mcpMux != nil {
			mcpMux.stop(shutdownCtx)
		}
		if srv.Pub != nil {
			srv.Pub.Close()
		}
	})

	logger.Println("server stopped")
}
