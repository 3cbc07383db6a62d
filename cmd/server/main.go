package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/dmitrijs2005/gutscan/internal/flagx"
	"github.com/dmitrijs2005/gutscan/internal/server"
	"github.com/dmitrijs2005/gutscan/internal/server/auth"
	"github.com/dmitrijs2005/gutscan/internal/server/config"
)

func main() {
	args := os.Args[1:]

	cfg, err := config.LoadConfig(args)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// -issue-token <device> prints a signed device token and exits.
	if device := issueTokenFlag(args); device != "" {
		token, err := auth.GenerateToken(device, []byte(cfg.SecretKey), cfg.TokenValidity)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	logger, err := server.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}
}

func issueTokenFlag(args []string) string {
	var device string
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&device, "issue-token", "", "print a token for the device and exit")
	_ = fs.Parse(flagx.FilterArgs(args, []string{"-issue-token"}))
	return device
}
