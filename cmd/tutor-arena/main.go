// Command tutor-arena plays one difficulty against another and reports the
// score, to check that stronger tiers actually beat weaker ones.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/zap"

	corechess "github.com/park285/cheese-chess-tutor/internal/chess"
	"github.com/park285/cheese-chess-tutor/internal/obslog"
)

type options struct {
	TierA       string
	TierB       string
	Games       int
	Concurrency int
	MaxPlies    int
	Seed        int64
}

func main() {
	var opts options
	flag.StringVar(&opts.TierA, "a", corechess.DifficultyHard, "first difficulty")
	flag.StringVar(&opts.TierB, "b", corechess.DifficultyEasy, "second difficulty")
	flag.IntVar(&opts.Games, "games", 20, "number of games; colors alternate")
	flag.IntVar(&opts.Concurrency, "concurrency", max(1, runtime.NumCPU()/2), "games played at once")
	flag.IntVar(&opts.MaxPlies, "max-plies", 200, "adjudicate a draw after this many plies")
	flag.Int64Var(&opts.Seed, "seed", 1, "base random seed")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
	}
	logger := obslog.Named("arena")
	defer func() { _ = obslog.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	score, err := run(ctx, opts, logger)
	if err != nil {
		logger.Error("arena_failed", zap.Error(err))
		_ = obslog.Close()
		os.Exit(1)
	}
	fmt.Println(score)
}

func validate(opts options) (options, error) {
	a, err := corechess.GetPreset(opts.TierA)
	if err != nil {
		return opts, err
	}
	b, err := corechess.GetPreset(opts.TierB)
	if err != nil {
		return opts, err
	}
	if opts.Games <= 0 {
		return opts, fmt.Errorf("games must be positive")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxPlies <= 0 {
		opts.MaxPlies = 200
	}
	opts.TierA, opts.TierB = a.Name, b.Name
	return opts, nil
}
