// Command goldtape manages the golden fixtures recorded by test suites:
// listing, inspecting, pruning, and watching the fixtures directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"

	"github.com/goldtape/goldtape/internal/inventory"
	"github.com/goldtape/goldtape/pkg/config"
	"github.com/goldtape/goldtape/pkg/fixture"
	pkglog "github.com/goldtape/goldtape/pkg/log"
)

func main() {
	// Project .env files feed the GOLDTAPE_* toggles; absence is fine.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("goldtape: load .env: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listCommand(os.Args[2:])
	case "show":
		err = showCommand(os.Args[2:])
	case "prune":
		err = pruneCommand(os.Args[2:])
	case "watch":
		err = watchCommand(os.Args[2:])
	case "init":
		err = initCommand(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("goldtape %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: goldtape <command> [options]\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  list   List recorded fixtures\n")
	fmt.Fprintf(os.Stderr, "  show   Print a fixture body to stdout\n")
	fmt.Fprintf(os.Stderr, "  prune  Delete fixtures (--all or --older-than)\n")
	fmt.Fprintf(os.Stderr, "  watch  Log fixture directory changes as they happen\n")
	fmt.Fprintf(os.Stderr, "  init   Create the fixtures dir and a sample .goldtape.yaml\n")
}

func loadConfig(fs *flag.FlagSet) (config.Config, error) {
	path := fs.Lookup("config").Value.String()
	if path != "" {
		return config.Load(config.WithPath(path))
	}
	return config.Load()
}

func configFlag(fs *flag.FlagSet) {
	fs.String("config", "", "Path to a goldtape configuration file")
}

func listCommand(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	entries, err := inventory.Scan(cfg.Dir, cfg.Extension)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Printf("no fixtures under %s\n", cfg.Dir)
		return nil
	}

	fmt.Printf("%-40s %10s  %s\n", "IDENTIFIER", "SIZE", "MODIFIED")
	for _, entry := range entries {
		fmt.Printf("%-40s %10d  %s\n", entry.Identifier, entry.Size, entry.ModTime.Format(time.RFC3339))
	}
	return nil
}

func showCommand(args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("show requires exactly one fixture identifier")
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	store := fixture.New(cfg.Dir, fixture.WithExtension(cfg.Extension))
	body, err := store.Read(fs.Arg(0))
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(body)
	return err
}

func pruneCommand(args []string) error {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configFlag(fs)
	olderThan := fs.Duration("older-than", 0, "Only delete fixtures last modified before this age (e.g. 720h)")
	all := fs.Bool("all", false, "Delete every fixture")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*all && *olderThan <= 0 {
		return errors.New("prune requires --all or --older-than")
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	age := *olderThan
	if *all {
		age = 0
	}
	removed, err := inventory.Prune(cfg.Dir, cfg.Extension, age, time.Now())
	if err != nil {
		return err
	}

	for _, entry := range removed {
		fmt.Printf("removed %s\n", entry.Identifier)
	}
	fmt.Printf("%d fixture(s) removed\n", len(removed))
	return nil
}

func watchCommand(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(fs)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.Dir); err != nil {
		return fmt.Errorf("watch fixtures dir %s: %w", cfg.Dir, err)
	}

	logger := pkglog.Named("watch")
	defer func() { _ = pkglog.Sync() }()
	logger.Infow("watching fixtures directory", "dir", cfg.Dir)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-stop:
			logger.Infow("stopping watch")
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case evt.Has(fsnotify.Create):
				logger.Infow("fixture created", "path", evt.Name)
			case evt.Has(fsnotify.Write):
				logger.Infow("fixture updated", "path", evt.Name)
			case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
				logger.Infow("fixture removed", "path", evt.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("watch error", "error", err)
		}
	}
}

const sampleConfigYAML = `# goldtape configuration
# Fixture storage for recorded API responses.
dir: testdata/golden
extension: .json

# update: re-record every fixture from the real API (GOLDTAPE_UPDATE).
update: false

# allowExternal: permit real outbound requests while recording
# (GOLDTAPE_ALLOW_EXTERNAL).
allowExternal: true
`

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	outputPath := fs.String("path", ".goldtape.yaml", "Destination path for the generated config")
	force := fs.Bool("force", false, "Overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*force {
		if _, err := os.Stat(*outputPath); err == nil {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", *outputPath)
		}
	}

	if err := os.WriteFile(*outputPath, []byte(sampleConfigYAML), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	cfg, err := config.Load(config.WithPath(*outputPath))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("create fixtures dir %s: %w", cfg.Dir, err)
	}

	fmt.Printf("configuration written to %s, fixtures dir %s ready\n", *outputPath, cfg.Dir)
	return nil
}
