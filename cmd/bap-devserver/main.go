package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/bootstrap/appconfig"
	"github.com/rohenaz/bitcoin-auth-pwa-sub000/internal/composition/devserver"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "Path to bapauth.yaml (optional)")
	listen := flag.String("listen", "", "Listen address override: multiaddr (/ip4/127.0.0.1/tcp/8787) or host:port")
	flag.Parse()
	if *showVersion {
		fmt.Printf("bap-devserver version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	cfg, err := appconfig.LoadFromPath(*configPath)
	if err != nil {
		log.Fatalf("bap-devserver config: %v", err)
	}
	if *listen != "" {
		cfg.Server.Listen = *listen
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := devserver.NewServer(cfg.Server, logger)
	if err != nil {
		log.Fatalf("bap-devserver failed to initialize: %v", err)
	}
	ln, err := devserver.Listen(cfg.Server.Listen)
	if err != nil {
		log.Fatalf("bap-devserver listen: %v", err)
	}

	log.Println("bap-devserver starting")
	if err := srv.Serve(ctx, ln); err != nil {
		log.Fatalf("bap-devserver failed: %v", err)
	}
	log.Println("bap-devserver stopped")
}
