package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/config"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/discovery"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/handlers"
	"github.com/Hari-Krishnan-N/collaborative-canvas/internal/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	registry := services.NewRegistry(cfg.MaxOperations)
	metrics := services.NewMetrics()
	hub := services.NewHub(registry, metrics, services.HubOptions{
		CanvasWidth:          cfg.CanvasWidth,
		CanvasHeight:         cfg.CanvasHeight,
		DefaultColor:         cfg.DefaultColor,
		SendBuffer:           cfg.SendBuffer,
		PingInterval:         cfg.PingInterval,
		WriteTimeout:         cfg.WriteTimeout,
		MaxMessagesPerSecond: cfg.MaxMessagesPerSecond,
		RoomIdleTTL:          cfg.RoomIdleTTL,
		CompactOnClear:       cfg.CompactOnClear,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: handlers.NewRouter(hub, metrics, handlers.RouterOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			CanvasWidth:    cfg.CanvasWidth,
			CanvasHeight:   cfg.CanvasHeight,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var mdnsPort int
	if cfg.MDNS {
		if mdnsPort, err = listenPort(cfg.Addr); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		slog.Info("Canvas server listening", "addr", cfg.Addr, "maxOperations", cfg.MaxOperations)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.MDNS {
		adv, err := discovery.Advertise(cfg.MDNSInstance, mdnsPort)
		if err != nil {
			slog.Warn("mDNS advertisement disabled", "error", err)
		} else {
			g.Go(func() error {
				<-ctx.Done()
				return adv.Shutdown()
			})
		}
	}

	return g.Wait()
}

// listenPort extracts the numeric port of a listen address such as ":3000".
func listenPort(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return 0, fmt.Errorf("invalid listen address %q: port must be numeric", addr)
	}
	return n, nil
}
