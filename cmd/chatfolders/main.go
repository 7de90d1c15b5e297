package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ajramos/chatfolders/internal/config"
	"github.com/ajramos/chatfolders/internal/coordinator"
	"github.com/ajramos/chatfolders/internal/store"
	"github.com/ajramos/chatfolders/internal/tui"
	"github.com/ajramos/chatfolders/internal/version"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/chatfolders/config.json)")
	addrFlag := flag.String("addr", "", "Listen address for the browser agent endpoint (overrides config)")
	dbFlag := flag.String("db", "", "Path to the folder store database (overrides config)")
	manageFlag := flag.Bool("manage", false, "Open the folder management panel instead of serving agents")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s                      # Serve browser agents on the configured address\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --manage             # Open the folder management panel\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config custom.json # Use custom configuration\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := *configPathFlag
	if configPath == "" {
		if env := os.Getenv("CHATFOLDERS_CONFIG"); env != "" {
			configPath = env
		} else {
			configPath = config.DefaultConfigPath()
		}
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: could not load configuration: %v", err)
		cfg = config.DefaultConfig()
	}
	if *addrFlag != "" {
		cfg.ListenAddr = *addrFlag
	}
	if *dbFlag != "" {
		cfg.StorePath = *dbFlag
	}

	logger := log.New(os.Stderr, "[chatfolders] ", log.LstdFlags|log.Lmicroseconds)
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			log.Printf("Warning: could not open log file: %v", err)
		} else {
			defer f.Close()
			logger.SetOutput(f)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StorePath)
	if err != nil {
		log.Fatalf("Could not open folder store: %v", err)
	}
	defer st.Close()

	coord := coordinator.New(st, logger)

	if *manageFlag {
		subID, broadcasts := coord.Subscribe()
		defer coord.Unsubscribe(subID)
		panel := tui.NewManagePanel(coord, broadcasts, logger)
		if err := panel.Run(ctx); err != nil {
			log.Fatalf("Management panel failed: %v", err)
		}
		return
	}

	logger.Printf("serving browser agents on %s", cfg.ListenAddr)
	srv := coordinator.NewServer(cfg, coord, logger)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("Agent server failed: %v", err)
	}
}
