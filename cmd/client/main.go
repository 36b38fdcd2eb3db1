package main

import (
	"flag"
	"fmt"
	"os"

	"relaychat/internal/app"
)

func main() {
	defaultServer := envOrDefault("RELAYCHAT_SERVER", "ws://localhost:3000/ws")
	defaultUser := envOrDefault("RELAYCHAT_USER", "")

	serverURL := flag.String("server", defaultServer, "WebSocket URL (e.g., ws://localhost:3000/ws)")
	username := flag.String("user", defaultUser, "display name (server generates one when empty)")
	flag.Parse()

	// first positional argument is the room; empty means the lobby.
	var room string
	if args := flag.Args(); len(args) >= 1 {
		room = args[0]
	}

	cfg := app.ClientConfig{
		ServerURL: *serverURL,
		Room:      room,
		Username:  *username,
	}

	if err := app.RunClient(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
