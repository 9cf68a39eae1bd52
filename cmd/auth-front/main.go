package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/neko-rr/auth-front/internal"
	"github.com/neko-rr/auth-front/internal/config"
	"github.com/neko-rr/auth-front/internal/log"
)

var BuildVersion = "dev"

func main() {
	envFile := flag.String("env-file", ".env", "path to a .env file with configuration (optional)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting auth-front", map[string]any{
		"version": BuildVersion,
		"addr":    cfg.Addr,
	})

	authFront, err := internal.NewAuthFront(cfg, nil)
	if err != nil {
		log.LogError("Failed to create auth gateway: %v", err)
		os.Exit(1)
	}

	if err := authFront.Run(); err != nil {
		log.LogError("Failed to start server: %v", err)
		os.Exit(1)
	}
}
