package main

import (
	"context"
	"errors"
	"log"
	"net/http"
)

// httpServerHolder wraps a background HTTP server started for one of
// the optional telemetry surfaces (status websocket, MCP tool
// server), mirroring the small server-wrapper pattern metrics.Server
// uses for /metrics.
type httpServerHolder struct {
	httpServer *http.Server
}

func startHTTPHandler(listen string, handler http.HandlerFunc, logger *log.Logger, name string) *httpServerHolder {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handler)

	h := &httpServerHolder{httpServer: &http.Server{Addr: listen, Handler: mux}}
	go func() {
		logger.Printf("%s listening on %s", name, listen)
		if err := h.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("%s error: %v", name, err)
		}
	}()
	return h
}

func (h *httpServerHolder) stop(ctx context.Context) {
	_ = h.httpServer.Shutdown(ctx)
}
