package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursehub/realtime/internal/auth"
	"github.com/coursehub/realtime/internal/config"
	"github.com/coursehub/realtime/internal/logging"
	"github.com/coursehub/realtime/internal/mock"
	"github.com/coursehub/realtime/internal/relay"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		os.Exit(runToken(os.Args[2:], os.Stdout, os.Stderr))
	}
	os.Exit(serve(os.Args[1:]))
}

func serve(args []string) int {
	fs := flag.NewFlagSet("relay", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML or TOML config file")
	port := fs.Int("port", 0, "Override listen port")
	mockMode := fs.Bool("mock", false, "Drive synthetic classroom traffic")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *port > 0 {
		cfg.Relay.Port = *port
	}
	if *mockMode {
		cfg.Relay.Mock = true
	}

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := logging.File(cfg.Log.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			return 1
		}
		defer f.Close()
		out = f
	}
	log := logging.New("relay", out, cfg.Log.Level)
	if len(cfg.Relay.JWTSecret) == 0 {
		log.Warn().Msg("no jwt secret configured, tokens are taken as usernames")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := relay.NewHub(log)
	if cfg.Relay.Mock {
		log.Info().Dur("interval", cfg.Relay.MockInterval).Msg("starting mock classroom")
		mock.NewGenerator(hub, cfg.Relay.MockInterval, time.Now().UnixNano(), log).Start(ctx)
	}

	mux := http.NewServeMux()
	relay.NewServer(cfg.Relay, hub, log).SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info().Msg("shutting down")
		cancel()
		os.Exit(0)
	}()

	if err := relay.ListenAndServe(cfg.Relay.Addr(), mux, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return 1
	}
	return 0
}

// runToken mints a signed token for local testing.
func runToken(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a YAML or TOML config file")
	secret := fs.String("secret", "", "Signing secret (defaults to relay.jwt_secret)")
	user := fs.String("user", "", "User id (subject)")
	name := fs.String("name", "", "Display name")
	ttl := fs.Duration("ttl", 24*time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *secret == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
			return 1
		}
		*secret = cfg.Relay.JWTSecret
	}
	if *secret == "" || *user == "" {
		fmt.Fprintln(stderr, "token: -secret (or relay.jwt_secret) and -user are required")
		return 2
	}
	if *name == "" {
		*name = *user
	}

	token, err := auth.Issue([]byte(*secret), *user, *name, *ttl, time.Now())
	if err != nil {
		fmt.Fprintf(stderr, "token: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, token)
	return 0
}
