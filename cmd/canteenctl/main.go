package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/canteen/internal/database"
	"github.com/MarkoPoloResearchLab/canteen/internal/observability"
	"github.com/MarkoPoloResearchLab/canteen/internal/seed"
	"github.com/MarkoPoloResearchLab/canteen/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/canteen/pkg/restaurant"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	flagDatabaseURL   = "database-url"
	flagSeedFile      = "file"
	flagAdminName     = "name"
	flagAdminEmail    = "email"
	flagAdminPassword = "password"
	flagAdminRole     = "role"
	envPrefix         = "CANTEEN"

	defaultDatabaseURL = "sqlite:///tmp/canteen.db"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "canteenctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "canteenctl",
		Short:         "Administrative tasks for the canteen database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlag(flagDatabaseURL, cmd.Root().PersistentFlags().Lookup(flagDatabaseURL))
		},
	}
	cmd.PersistentFlags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL URL or SQLite path")

	cmd.AddCommand(newMigrateCommand(v), newSeedCommand(v), newCreateAdminCommand(v))
	return cmd
}

func newMigrateCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update every table",
		RunE: func(cmd *cobra.Command, args []string) error {
			connection, err := openDatabase(cmd.Context(), v)
			if err != nil {
				return err
			}
			defer func() { _ = connection.Close() }()
			if err := database.Migrate(connection); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", connection.Driver)
			return nil
		},
	}
}

func newSeedCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load admins, students and menu offerings from a TOML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := strings.TrimSpace(v.GetString(flagSeedFile))
			if path == "" {
				return fmt.Errorf("%s is required", flagSeedFile)
			}
			file, err := seed.Load(path)
			if err != nil {
				return err
			}
			return withService(cmd.Context(), v, func(ctx context.Context, service *restaurant.Service) error {
				result, err := seed.Apply(ctx, service, file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %d admins, %d students, %d offerings; skipped %d\n",
					result.AdminsCreated, result.StudentsCreated, result.OfferingsCreated, result.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().String(flagSeedFile, "", "seed file path (required)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return v.BindPFlag(flagSeedFile, cmd.Flags().Lookup(flagSeedFile))
	}
	return cmd
}

func newCreateAdminCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			registration := restaurant.AdminRegistration{
				Name:     strings.TrimSpace(v.GetString(flagAdminName)),
				Email:    strings.TrimSpace(v.GetString(flagAdminEmail)),
				Password: v.GetString(flagAdminPassword),
				Role:     strings.TrimSpace(v.GetString(flagAdminRole)),
			}
			return withService(cmd.Context(), v, func(ctx context.Context, service *restaurant.Service) error {
				admin, err := service.CreateAdmin(ctx, registration)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID.String())
				return nil
			})
		},
	}
	cmd.Flags().String(flagAdminName, "", "display name")
	cmd.Flags().String(flagAdminEmail, "", "login email (required)")
	cmd.Flags().String(flagAdminPassword, "", "login password, or CANTEEN_PASSWORD (required)")
	cmd.Flags().String(flagAdminRole, "", "role label")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		for _, flagName := range []string{flagAdminName, flagAdminEmail, flagAdminPassword, flagAdminRole} {
			if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
				return err
			}
		}
		return nil
	}
	return cmd
}

func openDatabase(ctx context.Context, v *viper.Viper) (*database.Connection, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	connection, err := database.Open(ctx, v.GetString(flagDatabaseURL))
	if err != nil {
		return nil, fmt.Errorf("database open: %w", err)
	}
	return connection, nil
}

func withService(ctx context.Context, v *viper.Viper, fn func(ctx context.Context, service *restaurant.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	connection, err := openDatabase(ctx, v)
	if err != nil {
		return err
	}
	defer func() { _ = connection.Close() }()
	if err := database.PrepareSchema(connection); err != nil {
		return err
	}
	clock := func() time.Time { return time.Now().UTC() }
	service, err := restaurant.NewService(gormstore.New(connection.DB), clock,
		restaurant.WithOperationLogger(observability.NewZapOperationLogger(logger)),
	)
	if err != nil {
		return fmt.Errorf("restaurant service init: %w", err)
	}
	return fn(ctx, service)
}
