package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/dgellow/oauth-front/internal"
	"github.com/dgellow/oauth-front/internal/config"
	"github.com/dgellow/oauth-front/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version": "v0.1.0",
		"server": map[string]any{
			"baseURL": "http://localhost:4000",
			"addr":    ":4000",
		},
		"auth": map[string]any{
			"storage":    "memory",
			"pendingTtl": "10m",
			"codeTtl":    "10m",
		},
		"clients": []any{
			map[string]any{
				"id":            "1",
				"type":          "confidential",
				"assertionType": "basic",
				"secret":        map[string]string{"$env": "CLIENT_1_SECRET"},
				"redirectUris":  []string{"http://localhost:3000"},
				"grantTypes":    []string{"code", "token"},
				"scopes":        []string{"read", "write"},
			},
		},
		"users": []any{
			map[string]any{
				"username":     "admin",
				"passwordHash": map[string]string{"$env": "ADMIN_PASSWORD_HASH"},
			},
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()

	if *version {
		fmt.Println(BuildVersion)
		return
	}

	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", *configInit)
		return
	}

	if *conf == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Printf("Config %s is valid\n", *conf)
		return
	}

	ctx := context.Background()
	app, err := internal.NewOAuthFront(ctx, cfg)
	if err != nil {
		log.LogError("Failed to build application: %v", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		log.LogError("Server error: %v", err)
		os.Exit(1)
	}
}
