// Package main is the Kurabe CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kurabe/internal/cli"
	"github.com/hyperjump/kurabe/internal/config"
	"github.com/hyperjump/kurabe/internal/models"
	"github.com/hyperjump/kurabe/internal/scan"
	"github.com/hyperjump/kurabe/internal/server"
	"github.com/hyperjump/kurabe/internal/storage"
	"github.com/hyperjump/kurabe/internal/watcher"
	"github.com/hyperjump/kurabe/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kurabe/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, so "kurabe server" from a project dir uses the project's config.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "scan":
		runScan()
	case "matches":
		runMatches()
	case "user":
		runUser()
	case "reset-credits":
		runResetCredits()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kurabe version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds a logger and initializes components, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func outputFormat(s string) cli.OutputFormat {
	f, err := cli.ParseFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return f
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath, *debug)
	defer logger.Sync()
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go components.Credits.Run(ctx, cfg.Credits.CheckInterval)

	var opts []server.Option
	if len(cfg.Watch.Directories) > 0 {
		if cfg.Watch.OwnerID == "" {
			logger.Fatal("watch.owner_id is required when watch.directories is set")
		}
		inbox := watcher.NewInbox(func(ctx context.Context, upload *models.Upload) (*models.ScanResult, error) {
			return components.Scanner.SubmitScan(ctx, upload, cfg.Watch.OwnerID)
		}, logger)
		watchSvc := watcher.NewWatcher(cfg.Watch.Directories, cfg.Watch.Extensions, func(path string) {
			if err := inbox.Process(ctx, path); err != nil {
				logger.Warn("inbox file not processed", zap.String("path", path), zap.Error(err))
			}
		}, watcher.WithLogger(logger))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		go watchSvc.SyncExistingFiles()
		opts = append(opts, server.WithWatch(watchSvc))
	}

	srv := server.NewServer(components.Scanner, components.Credits, components.Storage, cfg, logger, opts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runScan() {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "", "server URL (empty = scan directly against the database)")
	userID := fs.String("user", "", "ID of the user paying for the scan")
	format := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 || *userID == "" {
		fmt.Println("Usage: kurabe scan --user <user-id> [flags] <file>")
		os.Exit(1)
	}
	out := outputFormat(*format)
	path := fs.Arg(0)

	var (
		result *models.ScanResult
		err    error
	)
	if *serverURL != "" {
		result, err = scanViaHTTP(*serverURL, path, *userID)
	} else {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to read file: %v\n", readErr)
			os.Exit(1)
		}
		_, logger, components := setup(*configPath, false)
		defer logger.Sync()
		defer components.Close()
		result, err = components.Scanner.SubmitScan(context.Background(),
			&models.Upload{Filename: filepath.Base(path), Content: content}, *userID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Scan failed: %s\n", describeScanError(err))
		os.Exit(1)
	}
	if err := cli.WriteScanResult(os.Stdout, result, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// describeScanError turns scan errors into messages for people.
func describeScanError(err error) string {
	switch {
	case errors.Is(err, scan.ErrInsufficientCredits):
		return "no credits left; wait for the daily reset"
	case errors.Is(err, scan.ErrUserNotFound):
		return "unknown user"
	}
	return err.Error()
}

func scanViaHTTP(serverURL, path, userID string) (*models.ScanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	endpoint, err := url.JoinPath(serverURL, "/api/v1/scans")
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", userID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var result models.ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func httpError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%s (HTTP %d)", body.Error, resp.StatusCode)
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}

func runMatches() {
	fs := flag.NewFlagSet("matches", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	minScore := fs.Float64("min-score", 0, "only show matches scoring at least this much")
	format := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kurabe matches [flags] <document-id>")
		os.Exit(1)
	}
	out := outputFormat(*format)
	docID := fs.Arg(0)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Storage.GetDocument(ctx, docID); err != nil {
		fmt.Fprintf(os.Stderr, "Document lookup failed: %v\n", err)
		os.Exit(1)
	}
	related, err := components.Storage.ListMatchesForDocument(ctx, docID, *minScore)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing matches failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMatches(os.Stdout, docID, related, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runUser() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kurabe user <create|show> [flags] <username|user-id>")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("user "+sub, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[3:]))
	if fs.NArg() < 1 {
		fmt.Printf("Usage: kurabe user %s [flags] <name>\n", sub)
		os.Exit(1)
	}
	out := outputFormat(*format)

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var (
		user *models.User
		err  error
	)
	switch sub {
	case "create":
		user, err = components.Credits.ProvisionUser(ctx, fs.Arg(0))
	case "show":
		user, _, err = components.Credits.ResetIfDue(ctx, fs.Arg(0))
	default:
		fmt.Printf("Unknown user subcommand: %s\n", sub)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "User %s failed: %v\n", sub, err)
		os.Exit(1)
	}
	if err := cli.WriteUser(os.Stdout, user, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runResetCredits() {
	fs := flag.NewFlagSet("reset-credits", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	userID := fs.String("user", "", "reset only this user (default: every user that is due)")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *userID != "" {
		user, reset, err := components.Credits.ResetIfDue(ctx, *userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
			os.Exit(1)
		}
		if !reset {
			fmt.Printf("%s is not due for a reset (credits: %d)\n", user.Username, user.Credits)
			return
		}
		fmt.Printf("%s reset to %d credits\n", user.Username, user.Credits)
		return
	}
	n, err := components.Credits.ResetAllDue(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Reset %d user(s)\n", n)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	format := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	out := outputFormat(*format)

	cfg, logger, components := setup(*configPath, false)
	defer logger.Sync()
	defer components.Close()

	stats, err := components.Storage.Stats(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	diskBytes, err := storage.DatabaseSizeBytes(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Warn("database size unavailable", zap.Error(err))
	}
	if err := cli.WriteStatus(os.Stdout, stats, cfg.Storage.DatabasePath, diskBytes, out); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// argsReorder moves flags that follow positional arguments to the front so the flag package
// sees them ("kurabe scan essay.pdf --user u1").
func argsReorder(args []string) []string {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`kurabe - Document similarity scanning service

Usage:
  kurabe server [flags]                     Start the HTTP server, inbox watcher and credit reset
  kurabe scan --user <id> [flags] <file>    Scan a file against the stored corpus
  kurabe matches [flags] <document-id>      Show stored matches of a document
  kurabe user create [flags] <username>     Create a user with the daily allowance
  kurabe user show [flags] <user-id>        Show a user's credit balance
  kurabe reset-credits [flags]              Reset the allowance of every user that is due
  kurabe status [flags]                     Show storage counts
  kurabe version                            Show version
  kurabe help                               Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/kurabe/config.yaml, or ./config.yaml if present)
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Scan Flags:
  --user string      User paying for the scan (required)
  --server string    Server URL; empty scans directly against the database

Matches Flags:
  --min-score float  Minimum similarity score (default: 0)

Reset Flags:
  --user string      Reset one user only

Examples:
  kurabe server
  kurabe user create alice
  kurabe scan --user 1f0c... essay.pdf
  kurabe scan --server http://localhost:8080 --user 1f0c... essay.pdf --output json
  kurabe matches --min-score 0.7 6b2e...`)
}
