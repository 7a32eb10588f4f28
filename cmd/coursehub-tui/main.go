package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coursehub/realtime/internal/app"
	"github.com/coursehub/realtime/internal/channel"
	"github.com/coursehub/realtime/internal/config"
	"github.com/coursehub/realtime/internal/logging"
	"github.com/coursehub/realtime/internal/views/notifications"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML or TOML config file")
	baseURL := flag.String("url", "", "Base URL of the realtime server (http, https, ws or wss)")
	token := flag.String("token", "", "Auth token")
	threads := flag.String("thread", "", "Comma-separated discussion thread ids")
	session := flag.String("session", "", "Live-class session id")
	noNotifications := flag.Bool("no-notifications", false, "Do not attach the notification feed")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}
	if *token != "" {
		cfg.Client.Token = *token
	}
	if *threads != "" {
		cfg.Client.Threads = splitList(*threads)
	}
	if *session != "" {
		cfg.Client.LiveClass = *session
	}

	// The alternate screen owns stdout, so logs go to a file.
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = filepath.Join(os.TempDir(), "coursehub-tui.log")
	}
	logFile, err := logging.File(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := logging.New("coursehub-tui", logFile, cfg.Log.Level)

	r := cfg.Client.Reconnect
	m := app.New(app.Options{
		Channel: channel.Options{
			BaseURL:              cfg.Client.BaseURL,
			ReconnectInterval:    r.Interval,
			MaxReconnectAttempts: r.MaxAttempts,
			MaxReconnectDelay:    r.MaxDelay,
			PingInterval:         r.PingInterval,
			Logger:               log,
		},
		Token:         cfg.Client.Token,
		Threads:       cfg.Client.Threads,
		LiveClass:     cfg.Client.LiveClass,
		Notifications: !*noNotifications,
		GlamourStyle:  notifications.DefaultStyle,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
