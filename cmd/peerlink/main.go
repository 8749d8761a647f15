// Peerlink — CLI entry point.
//
// This tool connects two machines with a WebRTC DataChannel and runs a simple
// line chat over it. The host serves a PIN-protected WebSocket for the
// signaling phase; after that the link is peer to peer.
//
// Settings come from an optional YAML file (-config), PEERLINK_* environment
// variables (a .env file is honored) and CLI flags, in increasing priority.
// Without a role it falls back to interactive prompts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"

	"github.com/1ureka/peerlink/internal/app"
	"github.com/1ureka/peerlink/internal/config"
	"github.com/1ureka/peerlink/internal/signaling"
	"github.com/1ureka/peerlink/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	configPath := flag.String("config", "", "Path to a YAML config file")
	role := flag.String("role", "", "Role: host or client")
	pin := flag.String("pin", "", "Signaling PIN (host: required from clients, random if empty; client: sent to host)")
	listen := flag.String("listen", "", "Signaling server address (host only), e.g. 127.0.0.1:8080 or :8080 for LAN")
	signalURL := flag.String("url", "", "Signaling WebSocket URL (client only)")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	// Flags win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "role":
			cfg.Role = config.Role(*role)
		case "pin":
			cfg.PIN = *pin
		case "listen":
			cfg.Listen = *listen
		case "url":
			cfg.SignalURL = *signalURL
		case "debug":
			cfg.Debug = *debugMode
		}
	})

	if cfg.Debug {
		util.EnableDebug()
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	pterm.Info.Println(fmt.Sprintf("Peerlink — v%s", version))
	pterm.Println()

	switch cfg.Role {
	case "":
		// No role → interactive mode.
		runInteractive(ctx, cfg)

	case config.RoleHost:
		run(ctx, cfg)

	case config.RoleClient:
		if cfg.SignalURL == "" {
			util.LogError("missing -url for client role")
			os.Exit(1)
		}
		if _, err := signaling.NormalizeURL(cfg.SignalURL, cfg.PIN); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		run(ctx, cfg)

	default:
		util.LogError("invalid -role: must be 'host' or 'client'")
		os.Exit(1)
	}

	util.LogInfo("session closed")
}

// ---------------------------------------------------------------------------
// Run modes
// ---------------------------------------------------------------------------

// runInteractive asks for the role and whatever that role still lacks.
func runInteractive(ctx context.Context, cfg *config.Config) {
	role, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Host  — Wait for a peer", "Client — Connect to a host"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(role, "Host") {
		cfg.Role = config.RoleHost
	} else {
		cfg.Role = config.RoleClient
		if cfg.SignalURL == "" {
			cfg.SignalURL = askURL()
		}
		if cfg.PIN == "" {
			cfg.PIN = askPIN()
		}
	}

	run(ctx, cfg)
}

// run executes the chosen role and exits on failure.
func run(ctx context.Context, cfg *config.Config) {
	util.StartStatsReporter(ctx, 5*time.Second)

	var err error
	if cfg.Role == config.RoleHost {
		err = app.RunHost(ctx, cfg)
	} else {
		err = app.RunClient(ctx, cfg)
	}

	if err != nil && ctx.Err() == nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askURL prompts the user for a valid WebSocket URL until one is entered.
func askURL() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("WebSocket URL (e.g. wss://***.asse.devtunnels.ms/ws)").
			Show()

		if _, err := signaling.NormalizeURL(raw, ""); err == nil {
			pterm.Println()
			return strings.TrimSpace(raw)
		}

		pterm.Println()
		util.LogWarning("invalid input: please enter a valid host or URL")
	}
}

// askPIN prompts for the PIN shown by the host.
func askPIN() string {
	for {
		raw, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("PIN shown by the host").
			Show()

		pin := strings.TrimSpace(raw)
		if pin != "" {
			pterm.Println()
			return pin
		}

		util.LogWarning("PIN must not be empty")
		pterm.Println()
	}
}
