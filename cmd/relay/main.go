package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"rently/relay/internal/api"
	"rently/relay/internal/chatws"
	"rently/relay/internal/config"
	"rently/relay/internal/registry"
	"rently/relay/internal/relay"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	reg := registry.New()
	disp := relay.New(reg, cfg.Relay.SendBuffer)

	h := api.NewHandlers(cfg, reg)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	// WS chat route
	wss := chatws.NewServer(cfg, disp)
	mux.HandleFunc("/ws/chat", wss.HandleChatWS)

	// Periodic active-room status line
	stopStatus := make(chan struct{})
	if cfg.Relay.StatusLogSecs > 0 {
		go func() {
			t := time.NewTicker(time.Duration(cfg.Relay.StatusLogSecs) * time.Second)
			defer t.Stop()
			for {
				select {
				case <-stopStatus:
					return
				case <-t.C:
					disp.LogStatus()
				}
			}
		}()
	}

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping server...")
		close(stopStatus)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("chat relay starting on %s (origins=%v)", addr, cfg.Relay.OriginPatterns)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}
