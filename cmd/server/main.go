package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-blob-drive/blobs"
	"github.com/jrsteele09/go-blob-drive/identity"
	"github.com/jrsteele09/go-blob-drive/internal/config"
	"github.com/jrsteele09/go-blob-drive/server"
	"github.com/jrsteele09/go-blob-drive/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errPanicRecovered = errors.New("panic recovered")

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %s\n", err)
	}

	c := config.New()
	setupLogging(c)

	if err := config.Validate(c); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	for {
		err := run(c)
		if err == nil {
			break
		}
		if !errors.Is(err, errPanicRecovered) {
			log.Fatal().Err(err).Msg("Error running server")
		}
		log.Error().Err(err).Msg("Restarting server")
		time.Sleep(1 * time.Second)
	}
	log.Info().Msg("Server stopped")
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if c.IsDev() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errPanicRecovered
		}
	}()

	ctx := context.Background()

	idClient, err := identity.New(ctx, identity.Settings{
		ClientID:     c.GetClientID(),
		ClientSecret: c.GetClientSecret(),
		Authority:    c.GetAuthority(),
		RedirectURI:  c.GetRedirectURI(),
		Scopes:       c.GetScopes(),
		Timeout:      c.GetIdentityProviderTimeout(),
	})
	if err != nil {
		return fmt.Errorf("identity.New: %w", err)
	}

	sessionManager, err := sessions.Open(ctx, c)
	if err != nil {
		return fmt.Errorf("sessions.Open: %w", err)
	}
	defer func() {
		if err := sessionManager.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close session store")
		}
	}()

	blobRepo, err := blobs.NewAzureRepo(c.GetStorageConnectionString(), c.GetContainerName())
	if err != nil {
		return fmt.Errorf("blobs.NewAzureRepo: %w", err)
	}

	handler, err := server.New(c, idClient, sessionManager, blobRepo)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	displayAppname(c.GetAppName())
	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(httpServer) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(httpServer)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
