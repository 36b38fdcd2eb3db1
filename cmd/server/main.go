package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"relaychat/internal/app"
)

func main() {
	configPath := flag.String("config", os.Getenv("RELAYCHAT_CONFIG"), "path to YAML config file (optional)")
	addr := flag.String("addr", "", "listen address (overrides config)")
	uploadDir := flag.String("upload-dir", "", "directory for uploaded files (overrides config)")
	multiRoom := flag.Bool("multi-room", false, "keep memberships in previous rooms on re-join")
	flag.Parse()

	var cfg *app.ServerConfig
	if *configPath != "" {
		loaded, err := app.LoadServerConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	} else {
		cfg = app.ServerConfigFromEnv()
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *uploadDir != "" {
		cfg.UploadDir = *uploadDir
	}
	if *multiRoom {
		cfg.MultiRoom = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := app.RunServer(ctx, *cfg)
	if err != nil {
		log.Fatalf("server: %v", err)
	}
	log.Printf("relaychat server listening on %s", handle.Addr())

	if err := handle.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
