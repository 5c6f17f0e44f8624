package main

import (
	"context"
	"expvar"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"hookgate/internal"
	"hookgate/pkg/api"
	"hookgate/pkg/filter"
	"hookgate/pkg/ingest"
	"hookgate/pkg/storage/installations"
	"hookgate/pkg/storage/repositories"
	"hookgate/webhook"

	"golang.org/x/net/netutil"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	filterEngine := filter.NewEngine(config.Filter, internal.NewLogger("filter"))

	publisher, err := internal.NewPublisher(config.Watermill)
	if err != nil {
		logger.Fatalf("publisher: %v", err)
	}
	defer publisher.Close()

	var installStore *installations.Store
	var repoStore *repositories.Store
	if config.Storage.Enabled {
		installStore, err = installations.Open(installations.Config{
			Driver:      config.Storage.Driver,
			DSN:         config.Storage.DSN,
			Table:       config.Storage.Table,
			AutoMigrate: config.Storage.AutoMigrate,
		})
		if err != nil {
			logger.Fatalf("storage: %v", err)
		}
		defer installStore.Close()

		repoStore, err = repositories.Open(installStore.DB(), config.Storage.Table+"_repos", config.Storage.AutoMigrate)
		if err != nil {
			logger.Fatalf("repository storage: %v", err)
		}
	}

	mux := http.NewServeMux()

	for name, integration := range config.Integrations {
		if !integration.Enabled {
			continue
		}
		opts := []ingest.Option{ingest.WithLogger(internal.NewLogger("ingest"))}
		if installStore != nil {
			opts = append(opts, ingest.WithStores(installStore, repoStore))
		}
		orch := ingest.New(name, integration, filterEngine, publisher, opts...)
		mux.Handle(integration.Path, webhook.NewHandler(orch, config.Server.MaxBodyBytes, logger))
		logger.Printf("integration %s (%s/%s) enabled on %s", name, integration.Provider, integration.Scheme, integration.Path)
	}

	if config.Server.AdminEnabled {
		mux.Handle("/admin/filter", &api.FilterConfigHandler{
			Engine: filterEngine,
			Logger: internal.NewLogger("admin"),
		})
		mux.Handle("/admin/installations", &api.InstallationsHandler{
			Store:  installStore,
			Repos:  repoStore,
			Logger: internal.NewLogger("admin"),
		})
		logger.Printf("admin api enabled on /admin")
	}

	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
		logger.Printf("metrics enabled on %s", config.Server.MetricsPath)
	}

	handler := internal.NewRateLimitHandler(mux,
		config.Server.RateLimitRPS,
		config.Server.RateLimitBurst,
		5*time.Minute,
	)

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatalf("listen: %v", err)
		}
		if config.Server.MaxConns > 0 {
			listener = netutil.LimitListener(listener, config.Server.MaxConns)
		}
		logger.Printf("listening on %s", addr)
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("serve: %v", err)
		}
	}()

	<-shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
