package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/internal/database"
	"github.com/MarkoPoloResearchLab/canteen/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/canteen/internal/httpapi"
	"github.com/MarkoPoloResearchLab/canteen/internal/observability"
	"github.com/MarkoPoloResearchLab/canteen/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/canteen/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	flagConfig         = "config"
	flagDatabaseURL    = "database-url"
	flagStore          = "store"
	flagListenAddr     = "listen-addr"
	flagGRPCListenAddr = "grpc-listen-addr"
	flagRequestTimeout = "request-timeout"
	flagAllowedOrigins = "allowed-origins"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagJWTCookieName  = "jwt-cookie-name"
	flagSessionTTL     = "session-ttl"
	flagSecureCookies  = "secure-cookies"
	flagTimezone       = "timezone"
	envPrefix          = "CANTEEN"

	storeGorm = "gorm"
	storePgx  = "pgx"

	defaultDatabaseURL    = "sqlite:///tmp/canteen.db"
	defaultGRPCListenAddr = ":7000"
	defaultTimezone       = "UTC"
)

type runtimeConfig struct {
	DatabaseURL    string
	Store          string
	GRPCListenAddr string
	Location       *time.Location
	HTTP           httpapi.Config
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "canteend: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "canteend",
		Short:         "University canteen reservation server (HTTP and gRPC)",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagConfig, "", "optional config file (yaml, toml or json)")
	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL URL or SQLite path")
	cmd.Flags().String(flagStore, storeGorm, "store implementation: gorm or pgx (pgx requires PostgreSQL)")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().String(flagGRPCListenAddr, defaultGRPCListenAddr, "gRPC listen address")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request timeout for HTTP handlers")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "session JWT signing key (required)")
	cmd.Flags().String(flagJWTIssuer, "", "session JWT issuer")
	cmd.Flags().String(flagJWTCookieName, "", "session cookie name")
	cmd.Flags().Duration(flagSessionTTL, 0, "session lifetime")
	cmd.Flags().Bool(flagSecureCookies, false, "mark session cookies Secure")
	cmd.Flags().String(flagTimezone, defaultTimezone, "IANA time zone that decides the current reservation day")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagConfig, flagDatabaseURL, flagStore, flagListenAddr, flagGRPCListenAddr, flagRequestTimeout, flagAllowedOrigins, flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagSessionTTL, flagSecureCookies, flagTimezone} {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}
	if configFile := strings.TrimSpace(v.GetString(flagConfig)); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("%s is required", flagDatabaseURL)
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(v.GetString(flagStore)))
	if cfg.Store != storeGorm && cfg.Store != storePgx {
		return fmt.Errorf("%s must be %q or %q", flagStore, storeGorm, storePgx)
	}
	cfg.GRPCListenAddr = strings.TrimSpace(v.GetString(flagGRPCListenAddr))
	if cfg.GRPCListenAddr == "" {
		return fmt.Errorf("%s is required", flagGRPCListenAddr)
	}
	location, err := time.LoadLocation(strings.TrimSpace(v.GetString(flagTimezone)))
	if err != nil {
		return fmt.Errorf("%s: %w", flagTimezone, err)
	}
	cfg.Location = location

	cfg.HTTP = httpapi.Config{
		ListenAddr:        strings.TrimSpace(v.GetString(flagListenAddr)),
		RequestTimeout:    v.GetDuration(flagRequestTimeout),
		AllowedOrigins:    httpapi.ParseAllowedOrigins(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
		SessionTTL:        v.GetDuration(flagSessionTTL),
		SecureCookies:     v.GetBool(flagSecureCookies),
	}
	return cfg.HTTP.Validate()
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	connection, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = connection.Close() }()
	if err := database.PrepareSchema(connection); err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg, connection)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsLogger, err := observability.NewMetricsOperationLogger(registry)
	if err != nil {
		return fmt.Errorf("metrics init: %w", err)
	}
	operationLogger := observability.MultiOperationLogger{observability.NewZapOperationLogger(logger), metricsLogger}

	clock := func() time.Time { return time.Now().UTC() }
	service, err := restaurant.NewService(store, clock,
		restaurant.WithOperationLogger(operationLogger),
		restaurant.WithLocation(cfg.Location),
	)
	if err != nil {
		return fmt.Errorf("restaurant service init: %w", err)
	}

	listener, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcserver.LoggingInterceptor(logger)))
	grpcserver.Register(grpcServer, grpcserver.NewReservationServiceServer(service))

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		if serveErr := grpcServer.Serve(listener); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		return nil
	})
	group.Go(func() error {
		return httpapi.Run(groupCtx, cfg.HTTP, service, logger, registry)
	})
	return group.Wait()
}

func openStore(ctx context.Context, cfg *runtimeConfig, connection *database.Connection) (restaurant.Store, func(), error) {
	if cfg.Store == storeGorm {
		return gormstore.New(connection.DB), func() {}, nil
	}
	if connection.Driver != database.DriverPostgres {
		return nil, nil, fmt.Errorf("%s=%s requires a PostgreSQL database url", flagStore, storePgx)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("pgx pool: %w", err)
	}
	return pgstore.New(pool), pool.Close, nil
}
