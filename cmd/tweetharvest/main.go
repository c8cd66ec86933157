package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"tweetharvest/internal/analytics"
	"tweetharvest/internal/cmdlog"
	"tweetharvest/internal/config"
	"tweetharvest/internal/credentials"
	"tweetharvest/internal/metrics"
	"tweetharvest/internal/theme"
	"tweetharvest/internal/util"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "init":
		cmdInit()
	case "verify":
		cmdVerify()
	case "collect":
		cmdCollect()
	case "replay":
		cmdReplay()
	default:
		printHelp()
	}
}

func printHelp() {
	theme.PrintBanner()
	fmt.Println("Usage: tweetharvest <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  init        Create a config file at ./tweetharvest.yaml")
	fmt.Println("  verify      Check the credentials in the keys file")
	fmt.Println("  collect     Search each query and store the tweets")
	fmt.Println("  replay      Move dead-lettered records back into the sink")
}

// loadConfig reads path, falling back to defaults when the file does not exist.
func loadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
		cfg.ResolveEnv()
	} else if err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func cmdInit() {
	out := flag.NewFlagSet("init", flag.ExitOnError)
	path := out.String("path", "./tweetharvest.yaml", "path to write config")
	_ = out.Parse(os.Args[2:])
	cfg := config.Default()
	if err := config.Save(*path, cfg); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
	abs, _ := filepath.Abs(*path)
	theme.PrintBanner()
	fmt.Println("Config written to:", abs)
}

func cmdVerify() {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cfgPath := fs.String("config", "./tweetharvest.yaml", "config path")
	keys := fs.String("keys", "", "credentials JSON file (overrides config)")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	if *keys != "" {
		cfg.Credentials.KeysFile = *keys
	}
	log := newLogger(cfg)
	ctx, stop := signalContext()
	defer stop()
	err := cmdlog.Run(log, "verify", func() error {
		creds, err := credentials.Load(cfg.Credentials.KeysFile)
		if err != nil {
			return err
		}
		me, err := newSession(cfg, creds, log).VerifyCredentials(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Authenticated as @%s (%s), %d followers\n", me.Username, me.Name, me.FollowersCount)
		return nil
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdCollect() {
	fs := flag.NewFlagSet("collect", flag.ExitOnError)
	cfgPath := fs.String("config", "./tweetharvest.yaml", "config path")
	keys := fs.String("keys", "", "credentials JSON file (overrides config)")
	since := fs.String("since", "", "first day, YYYY-MM-DD")
	until := fs.String("until", "", "day after the last one, YYYY-MM-DD")
	limit := fs.Int("limit", 0, "tweets per query (0 keeps config)")
	queries := fs.String("queries", "", "comma-separated queries, in addition to positional ones")
	mongoHost := fs.String("mongo-host", "", "MongoDB host")
	mongoPort := fs.Int("mongo-port", 0, "MongoDB port")
	_ = fs.Parse(os.Args[2:])

	cfg := loadConfig(*cfgPath)
	if *keys != "" {
		cfg.Credentials.KeysFile = *keys
	}
	if *since != "" {
		cfg.Search.Since = *since
	}
	if *until != "" {
		cfg.Search.Until = *until
	}
	if *limit > 0 {
		cfg.Search.Limit = *limit
	}
	if *mongoHost != "" {
		cfg.Storage.Mongo.Host = *mongoHost
	}
	if *mongoPort > 0 {
		cfg.Storage.Mongo.Port = *mongoPort
	}
	qs := append(util.SplitAndTrim(*queries), fs.Args()...)
	if len(qs) == 0 {
		qs = cfg.Search.Queries
	}

	log := newLogger(cfg)
	ctx, stop := signalContext()
	defer stop()
	metrics.StartServer(cfg.Metrics.Addr)
	err := cmdlog.Run(log, "collect", func() error {
		if len(qs) == 0 {
			return errors.New("no queries: pass them as arguments or set search.queries")
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		stats, err := runCollect(ctx, cfg, qs, log)
		t := analytics.Summarize(stats)
		for _, s := range analytics.ByStored(stats) {
			fmt.Printf("%-30s fetched=%d stored=%d write_errors=%d backoffs=%d took=%s\n", s.Query, s.Fetched, s.Stored, s.WriteErrors, s.Backoffs, s.Duration.Round(time.Second))
		}
		fmt.Printf("total: queries=%d fetched=%d stored=%d write_errors=%d dead_lettered=%d\n", t.Queries, t.Fetched, t.Stored, t.WriteErrors, t.DeadLettered)
		return err
	})
	if err != nil {
		os.Exit(1)
	}
}

func cmdReplay() {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	cfgPath := fs.String("config", "./tweetharvest.yaml", "config path")
	n := fs.Int("n", 1000, "records to move")
	_ = fs.Parse(os.Args[2:])
	cfg := loadConfig(*cfgPath)
	log := newLogger(cfg)
	ctx, stop := signalContext()
	defer stop()
	err := cmdlog.Run(log, "replay", func() error {
		st, err := runReplay(ctx, cfg, *n, log)
		fmt.Printf("Replayed %d records, %d parked again\n", st.Moved, st.Reparked)
		return err
	})
	if err != nil {
		os.Exit(1)
	}
}
