package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	auth "github.com/goliatone/go-pwauth"
	"github.com/goliatone/go-pwauth/activitymap"
	"github.com/goliatone/go-pwauth/directory"
	"github.com/goliatone/go-pwauth/httpauth"
	"github.com/goliatone/go-pwauth/observability/sentrysink"
)

const shutdownTimeout = 10 * time.Second

func main() {
	envFile := flag.String("env", "", "Optional dotenv file to load")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "pwauthd: %v\n", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	logger := auth.DefaultLogger()

	var settings *auth.Settings
	var err error
	if envFile != "" {
		settings, err = auth.LoadSettings(envFile)
	} else {
		settings, err = auth.LoadSettings()
	}
	if err != nil {
		return err
	}

	if err := sentrysink.Init(settings.SentryDSN, settings.Environment); err != nil {
		logger.Error("sentry init failed: %v", err)
	}
	defer sentrysink.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closer, err := directory.Open(ctx, settings)
	if err != nil {
		return err
	}
	defer closer.Close()

	service, err := auth.NewService(store, settings,
		auth.WithServiceLogger(logger),
		auth.WithServiceActivitySink(auth.MultiActivitySink{
			activitymap.Sink(logger),
			sentrysink.New(nil),
		}),
		auth.WithRetiredSigningKeys(settings.RetiredKeys()...),
	)
	if err != nil {
		return err
	}

	if err := bootstrapUser(ctx, store, service.Hasher(), settings); err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "pwauthd",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	httpauth.NewHandler(service, httpauth.WithLogger(logger)).Register(app)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s (directory=%s)", settings.HTTPAddr, settings.Directory)
		errCh <- app.Listen(settings.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

// bootstrapUser creates the configured user unless it already exists
func bootstrapUser(ctx context.Context, store directory.Store, hasher *auth.Hasher, s *auth.Settings) error {
	if s.BootstrapUser == "" {
		return nil
	}

	_, err := store.FindByIdentifier(ctx, s.BootstrapUser)
	if err == nil {
		return nil
	}
	if !auth.IsNotFound(err) {
		return err
	}

	digest, err := hasher.Hash(s.BootstrapPassword)
	if err != nil {
		return err
	}

	_, err = store.Save(ctx, auth.UserRecord{
		Identifier:     s.BootstrapUser,
		DisplayName:    s.BootstrapUser,
		Active:         true,
		PasswordDigest: digest,
	})
	return err
}
