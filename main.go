package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"price-compare/pkg/aggregator"
	"price-compare/pkg/config"
	"price-compare/pkg/logger"
	"price-compare/pkg/scrapers"
	"price-compare/pkg/scrapers/momo"
	"price-compare/pkg/scrapers/pchome"
	"price-compare/pkg/scrapers/shopee"
	"price-compare/pkg/web"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := logger.New(cfg.Env, os.Stdout)
	logger.SetDefault(log)
	defer logger.Flush()

	agg, err := aggregator.New(buildSources(cfg)...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize aggregator")
	}
	log.Info().Strs("sources", agg.Sources()).Msg("Aggregator initialized")

	srv := web.NewServer(agg, web.Options{
		MaxConcurrent:  cfg.Search.MaxConcurrent,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		DocsDir:        cfg.HTTP.DocsDir,
		Logger:         log,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	_, port, _ := net.SplitHostPort(cfg.HTTP.Addr)
	if ip := GetOutboundIP(); ip != nil {
		fmt.Printf("Local Network URL: http://%s:%s\n", ip.String(), port)
	} else {
		fmt.Println("Could not determine local IP address.")
	}
	fmt.Printf("Access URL: http://localhost:%s\n", port)
	fmt.Printf("API Docs: http://localhost:%s/docs\n", port)

	if err := run(server, log); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// run serves until SIGINT/SIGTERM, then drains in-flight requests.
func run(server *http.Server, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildSources returns the platforms in display priority order.
func buildSources(cfg *config.Config) []scrapers.Source {
	pc := pchome.NewScraper()
	pc.Limit = cfg.Sources.Limit
	pc.Timeout = cfg.Sources.Timeout

	mm := momo.NewScraper()
	mm.Limit = cfg.Sources.Limit
	mm.Timeout = cfg.Sources.Timeout
	mm.Render = cfg.Sources.MomoRender

	return []scrapers.Source{pc, mm, shopee.NewScraper()}
}

func GetOutboundIP() net.IP {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		addrs, _ := net.InterfaceAddrs()
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					return ipnet.IP
				}
			}
		}
		return nil
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP
}
