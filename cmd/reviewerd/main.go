// Command reviewerd runs the review and grading daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/config"
	"github.com/vibestudy/vibestudy-reviewer/internal/daemon"
	"github.com/vibestudy/vibestudy-reviewer/internal/grade"
	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/review"
	"github.com/vibestudy/vibestudy-reviewer/internal/storage"
	"github.com/vibestudy/vibestudy-reviewer/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("reviewerd %s\n", version.Version)
		return
	}

	var (
		configPath = flag.String("config", "", "path to optional TOML config file")
		dbPath     = flag.String("db", defaultDBPath(), "path to sqlite archive (empty disables)")
		addr       = flag.String("addr", "", "bind address host:port (overrides config)")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting reviewerd...")

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		host, portStr, err := net.SplitHostPort(*addr)
		if err != nil {
			log.Fatalf("Invalid -addr %q: %v", *addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatalf("Invalid -addr port %q: %v", portStr, err)
		}
		cfg.Host, cfg.Port = host, port
	}

	// Provider keys hot-reload from the config file; the client swaps
	// its backend in place so orchestrators need no restart.
	client := model.NewFromConfig(cfg)
	logProvider(client)

	watcher := config.NewWatcher(*configPath, cfg, func(next *config.Config) {
		client.Reconfigure(next)
		logProvider(client)
	})
	if err := watcher.Start(); err != nil {
		log.Printf("Warning: config watcher disabled: %v", err)
	}
	defer watcher.Stop()

	var archive *storage.DB
	if *dbPath != "" {
		archive, err = storage.Open(*dbPath)
		if err != nil {
			log.Printf("Warning: archive disabled: %v", err)
		} else {
			defer archive.Close()
			log.Printf("Archive: %s", *dbPath)
		}
	}

	ttl := time.Duration(cfg.ReviewTTLSecs) * time.Second
	reviewOpts := review.Options{
		Client:    client,
		TTL:       ttl,
		MaxChecks: cfg.MaxConcurrentChecks,
	}
	gradeOpts := grade.Options{
		Client:        client,
		TTL:           ttl,
		DefaultConfig: cfg.Grade,
	}
	if archive != nil {
		reviewOpts.Archiver = archive
		gradeOpts.Archiver = archive
	}

	server := daemon.NewServer(review.NewOrchestrator(reviewOpts), grade.NewOrchestrator(gradeOpts), watcher)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received %v, shutting down...", sig)
		if err := server.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Println("reviewerd stopped")
}

func logProvider(client *model.Client) {
	if client.Configured() {
		log.Printf("Model provider: %s", client.Provider())
	} else {
		log.Println("No model provider configured; AI stages disabled")
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vibestudy-reviewer", "jobs.db")
}
