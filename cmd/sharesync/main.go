package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/i5heu/sharesync"
	"github.com/i5heu/sharesync/internal/syncconfig"
	"github.com/i5heu/sharesync/pkg/hash"
	"github.com/i5heu/sharesync/pkg/pull"
	"github.com/i5heu/sharesync/pkg/synctransport"
)

const (
	logKeyError = "error"
	logKeyPath  = "path"
	logKeyLocal = "local"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	switch os.Args[1] {
	case "push-cas":
		runPushCAS(logger, os.Args[2:])
	case "push-ff":
		runPushFF(logger, os.Args[2:])
	case "pull":
		runPull(logger, os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: sharesync <command> [arguments]")
	fmt.Println("Commands:")
	fmt.Println("  push-cas -config <file> -local <hash> [-expect <hash>]")
	fmt.Println("  push-ff  -config <file> -local <hash>")
	fmt.Println("  pull     -config <file>")
}

func openClient(logger *slog.Logger, configPath string) (*sharesync.Client, syncconfig.File) {
	cfg, err := syncconfig.Load(configPath)
	if err != nil {
		logger.Error("load config", logKeyError, err)
		os.Exit(1)
	}

	client, err := sharesync.New(sharesync.Config{
		BaseURL: cfg.BaseURL,
		Path: synctransport.Path{
			RepoName: cfg.RepoName,
			Segments: cfg.Segments,
		},
		DataDir:       cfg.DataDir,
		MinimumFreeGB: cfg.MinimumFreeGB,
		BearerToken:   cfg.BearerToken,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("init client", logKeyError, err)
		os.Exit(1)
	}
	return client, cfg
}

func runPushCAS(logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("push-cas", flag.ExitOnError)
	configPath := fs.String("config", "sharesync.yaml", "path to config file")
	localStr := fs.String("local", "", "local causal hash (64 hex chars)")
	expectStr := fs.String("expect", "", "expected remote hash (64 hex chars), empty means no history expected")
	fs.Parse(args)

	if *localStr == "" {
		fmt.Println("push-cas: -local is required")
		os.Exit(1)
	}

	local, err := hash.Parse(*localStr)
	if err != nil {
		logger.Error("parse -local", logKeyError, err)
		os.Exit(1)
	}

	var expected *hash.Hash32
	if *expectStr != "" {
		h, err := hash.Parse(*expectStr)
		if err != nil {
			logger.Error("parse -expect", logKeyError, err)
			os.Exit(1)
		}
		expected = &h
	}

	client, _ := openClient(logger, *configPath)
	defer client.Close()

	ctx := context.Background()
	err = client.CheckAndSetPush(ctx, expected, hash.NewCausalHash(local), func(uploaded, remaining int) {
		logger.Info("upload progress", "uploaded", uploaded, "remaining", remaining)
	})
	if err != nil {
		logger.Error("push-cas failed", logKeyError, err, logKeyLocal, local.String())
		os.Exit(1)
	}
	fmt.Println("push-cas: ok")
}

func runPushFF(logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("push-ff", flag.ExitOnError)
	configPath := fs.String("config", "sharesync.yaml", "path to config file")
	localStr := fs.String("local", "", "local causal hash (64 hex chars)")
	fs.Parse(args)

	if *localStr == "" {
		fmt.Println("push-ff: -local is required")
		os.Exit(1)
	}

	local, err := hash.Parse(*localStr)
	if err != nil {
		logger.Error("parse -local", logKeyError, err)
		os.Exit(1)
	}

	client, _ := openClient(logger, *configPath)
	defer client.Close()

	ctx := context.Background()
	err = client.FastForwardPush(ctx, hash.NewCausalHash(local), func(uploaded, remaining int) {
		logger.Info("upload progress", "uploaded", uploaded, "remaining", remaining)
	})
	if err != nil {
		logger.Error("push-ff failed", logKeyError, err, logKeyLocal, local.String())
		os.Exit(1)
	}
	fmt.Println("push-ff: ok")
}

func runPull(logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	configPath := fs.String("config", "sharesync.yaml", "path to config file")
	fs.Parse(args)

	client, cfg := openClient(logger, *configPath)
	defer client.Close()

	ctx := context.Background()
	head, err := client.Pull(ctx, pull.Callbacks{
		OnDownloaded: func(n int) {
			logger.Info("downloaded", "count", n)
		},
		OnQueuedForDownload: func(n int) {
			logger.Info("queued for download", "count", n)
		},
	})
	if err != nil {
		logger.Error("pull failed", logKeyError, err, logKeyPath, cfg.RepoName)
		os.Exit(1)
	}
	fmt.Printf("pull: ok, head=%s\n", head.String())
}
