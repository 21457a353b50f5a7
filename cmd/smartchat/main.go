package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/smartchat/internal/profile"
	"github.com/hrygo/smartchat/plugin/dialog"
	"github.com/hrygo/smartchat/plugin/enrichment"
	"github.com/hrygo/smartchat/plugin/erp"
	apiv1 "github.com/hrygo/smartchat/server/router/api/v1"
	"github.com/hrygo/smartchat/server/service/turn"
	"github.com/hrygo/smartchat/store"
	"github.com/hrygo/smartchat/store/cache"
	"github.com/hrygo/smartchat/store/db"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "smartchat",
	Short: "Per-turn session orchestrator for a conversational support agent",
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Driver:  viper.GetString("driver"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := run(ctx, instanceProfile); err != nil {
			slog.Error("server exited with error", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod", "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8080, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", `database driver, "sqlite" or "postgres"`)
	rootCmd.PersistentFlags().String("dsn", "", "database source name")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}
	viper.SetDefault("mode", "demo")
	viper.SetDefault("port", 8080)
	viper.SetDefault("driver", "sqlite")
	viper.SetEnvPrefix("smartchat")
	viper.AutomaticEnv()
}

func run(ctx context.Context, instanceProfile *profile.Profile) error {
	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return err
	}
	if err := dbDriver.Migrate(ctx); err != nil {
		return err
	}

	var sessionCache cache.Service
	var locker cache.Locker
	if instanceProfile.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cache.RedisConfig{
			Addr:     instanceProfile.RedisAddr,
			Password: instanceProfile.RedisPassword,
			DB:       instanceProfile.RedisDB,
		})
		sessionCache = redisCache
		locker = cache.NewRedisLocker(redisCache.Client(), "smartchat:")
		slog.Info("using redis cache", "addr", instanceProfile.RedisAddr)
	} else {
		sessionCache = cache.NewLRUCache(1000, 30*time.Minute)
	}

	storeInstance := store.New(dbDriver, sessionCache, instanceProfile)
	defer storeInstance.Close()

	dialogClient := dialog.NewClient(instanceProfile.EngineURL,
		dialog.WithTimeout(instanceProfile.EngineTimeout))
	erpClient := erp.NewClient(instanceProfile.ERPBaseURL,
		erp.WithTimeout(instanceProfile.ERPTimeout))
	enrichmentClient := enrichment.NewClient(enrichment.Config{
		APIKey:  instanceProfile.AIAPIKey,
		BaseURL: instanceProfile.AIBaseURL,
		Model:   instanceProfile.AIModel,
	})

	opts := []turn.Option{}
	if locker != nil {
		opts = append(opts, turn.WithLocker(locker))
	}
	orchestrator := turn.NewOrchestrator(instanceProfile, storeInstance, dialogClient, enrichmentClient, erpClient, opts...)

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiService := apiv1.NewAPIV1Service(instanceProfile, storeInstance, orchestrator, 64)
	apiService.Register(echoServer)

	address := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- echoServer.Start(address)
	}()
	slog.Info("smartchat started",
		"version", instanceProfile.Version,
		"address", address,
		"mode", instanceProfile.Mode,
		"driver", instanceProfile.Driver,
		"engine_configured", instanceProfile.IsEngineConfigured())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := echoServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
