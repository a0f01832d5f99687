package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"clinic-portal/internal/config"
	"clinic-portal/internal/handler"
	"clinic-portal/internal/logger"
	"clinic-portal/internal/middleware"
	"clinic-portal/internal/platform"
	"clinic-portal/internal/portal"
	"clinic-portal/internal/refresh"
	"clinic-portal/internal/rpc"
	"clinic-portal/internal/session"
	"clinic-portal/internal/view"
)

func main() {
	root := &cobra.Command{
		Use:          "portal",
		Short:        "Clinic scheduling portal for patients and doctors",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), appointmentsCmd(), leavesCmd(), tokenCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web portal and its gRPC API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// platformClient dials the clinic platform over the configured transport.
// The returned close func releases the connection.
func platformClient(cfg *config.Config) (*platform.Client, func(), error) {
	switch cfg.PlatformTransport {
	case config.TransportGRPC:
		f, err := rpc.DialGRPC(cfg.PlatformGRPCAddr, cfg.PlatformService)
		if err != nil {
			return nil, nil, fmt.Errorf("dial platform: %w", err)
		}
		f.SetTimeout(cfg.PlatformTimeout)
		return platform.New(f, cfg.MethodPrefix), func() { f.Close() }, nil
	default:
		f := rpc.NewHTTPFetcher(cfg.PlatformURL, cfg.PlatformTimeout)
		return platform.New(f, cfg.MethodPrefix), func() {}, nil
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Env, cfg.LogLevel, os.Stdout)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	dash, err := config.LoadDashboards(cfg.DashboardsFile)
	if err != nil {
		return err
	}
	log.Info().Strs("profiles", dash.Names()).Msg("dashboards loaded")
	renderer, err := view.New()
	if err != nil {
		return err
	}

	base, closePlatform, err := platformClient(cfg)
	if err != nil {
		return err
	}
	defer closePlatform()

	ctx, cancel := context.WithCancel(log.WithContext(context.Background()))
	defer cancel()

	store := session.NewStore(base, cfg.SessionTTL, cfg.DashboardProfile)
	go store.Run(ctx, time.Minute)

	rl := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go rl.Run(ctx)

	// shared data refreshes under the service account
	refresher := refresh.New(base.WithToken(cfg.ServiceToken), log, cfg.PlatformTimeout)
	if err := refresher.RunOnce(ctx); err != nil {
		log.Warn().Err(err).Msg("initial refresh failed")
	}
	if err := refresher.Start(cfg.RefreshSchedule); err != nil {
		return err
	}

	// grpc
	srv := rpc.NewServer(portal.ServiceName)
	portal.New(store, refresher, loc).Register(srv)
	gs := grpc.NewServer(
		grpc.ChainStreamInterceptor(
			middleware.RateLimitStream(rl, portal.MethodPaths(portal.Mutating...)...),
			middleware.Auth(cfg.JWTSecret),
		),
		srv.Option(),
	)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	go func() {
		log.Info().Str("port", cfg.GRPCPort).Strs("procedures", srv.Procedures()).Msg("grpc listening")
		if err := gs.Serve(lis); err != nil {
			log.Error().Err(err).Msg("grpc")
		}
	}()

	// http
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer
	e.Use(middleware.RequestID(log), middleware.Logger(log), middleware.Recovery(log))

	h := handler.New(handler.Options{
		Dashboards: dash,
		Snapshot:   refresher,
		Location:   loc,
		DeskURL:    cfg.PlatformURL,
		Secret:     cfg.JWTSecret,
		Secure:     !cfg.IsDev(),
	})
	h.Register(e, middleware.Session(cfg.JWTSecret, store), middleware.RateLimit(rl))

	go func() {
		log.Info().Str("port", cfg.Port).Str("platform", cfg.PlatformTransport).Msg("http listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http")
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	sctx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	refresher.Stop(sctx)
	gs.GracefulStop()
	if err := e.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	return nil
}

// cliLogger is the logger for one-shot commands.
func cliLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(cfg.Env, cfg.LogLevel, os.Stderr)
}
