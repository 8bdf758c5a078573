package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	kibitz "kibitz/pkg/kibitz"
)

func main() {
	startTime := time.Now()
	configPath := flag.String("config", "", "path to config.json (searched upwards from the working directory when empty)")
	inputDir := flag.String("input", "games", "input directory for PGN files")
	outputPath := flag.String("output", "review.parquet", "output parquet file")
	processNum := flag.Int("process-num", 4, "number of parallel workers")
	resume := flag.Bool("resume", false, "resume from existing output parquet")
	verify := flag.Bool("verify", false, "check every move with the full legal move generator")
	maxVariation := flag.Int("max-variation", 8, "maximum length of grafted engine lines")
	flag.Parse()

	cfgPath, cfgDir, err := resolveConfigPath(*configPath)
	if err != nil {
		fatal(err)
	}
	cfg, err := kibitz.LoadConfig(cfgPath)
	if err != nil {
		fatal(err)
	}
	enginePath, err := cfg.EnginePath(cfgDir)
	if err != nil {
		fatal(err)
	}
	if _, err := os.Stat(enginePath); err != nil {
		fatal(fmt.Errorf("engine binary not found at %s: %w", enginePath, err))
	}
	files, err := kibitz.CollectPGN(*inputDir)
	if err != nil {
		fatal(err)
	}
	if len(files) == 0 {
		fatal(fmt.Errorf("no .pgn files found in %s", *inputDir))
	}

	rv := reviewer{
		enginePath: enginePath,
		options:    cfg.EngineOptions(),
		record: kibitz.RecordOptions{
			MoveTimeMs:   cfg.Millis,
			Threshold:    cfg.Threshold,
			MaxVariation: *maxVariation,
		},
	}
	if *verify {
		rv.record.Verifier = kibitz.Verifier{}
	}

	workers := max(1, min(*processNum, len(files)))
	if dir := filepath.Dir(*outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fatal(err)
		}
	}
	target := *outputPath
	if *resume {
		if _, err := os.Stat(*outputPath); err == nil {
			target = *outputPath + ".tmp"
		} else {
			*resume = false
		}
	}

	// A signal or a worker that cannot start its engine cancels ctx, which
	// stops the feeder and every other worker.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := make(chan kibitz.GameRecord, workers)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- kibitz.WriteParquet(target, results, int64(workers))
	}()

	// Files with at least one stored game are not reviewed again.
	seen := make(map[string]struct{})
	if *resume {
		err := kibitz.ScanParquet(*outputPath, int64(workers), func(record kibitz.GameRecord) error {
			seen[sourceFile(record.GameID)] = struct{}{}
			results <- record
			return nil
		})
		if err != nil {
			fatal(err)
		}
	}

	var processed int64
	done := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		reportProgress(len(files), &processed, done)
		close(progressDone)
	}()

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rv.run(ctx, jobs, results, &processed); err != nil {
				cancel(err)
			}
		}()
	}

feed:
	for _, path := range files {
		if _, ok := seen[filepath.Base(path)]; ok {
			atomic.AddInt64(&processed, 1)
			continue
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- path:
		}
	}
	close(jobs)
	wg.Wait()
	close(done)
	<-progressDone
	close(results)
	if err := <-writeErr; err != nil {
		fatal(err)
	}
	if *resume {
		if err := os.Rename(target, *outputPath); err != nil {
			fatal(err)
		}
	}
	if err := context.Cause(ctx); err != nil && !isCanceled(err) {
		fatal(err)
	}
	elapsed := time.Since(startTime).Round(time.Second)
	fmt.Fprintf(os.Stderr, "elapsed: %s, processed: %d\n", elapsed, atomic.LoadInt64(&processed))
}

// reviewer owns one engine process and analyses whole PGN files with it.
type reviewer struct {
	enginePath string
	options    map[string]string
	record     kibitz.RecordOptions
}

// run reviews files from jobs until the channel closes or ctx ends. It
// restarts the engine once per file when the engine fails, and returns an
// error only when the engine cannot be started.
func (rv reviewer) run(ctx context.Context, jobs <-chan string, results chan<- kibitz.GameRecord, processed *int64) error {
	if ctx.Err() != nil {
		return nil
	}
	session, err := startSession(ctx, rv.enginePath, rv.options)
	if err != nil {
		return err
	}
	defer func() { session.Close() }()

	cache := make(map[kibitz.Packed256]kibitz.Evaluation)
	for path := range jobs {
		if ctx.Err() != nil {
			return nil
		}
		fileStart := time.Now()
		records, err := kibitz.BuildGameRecords(ctx, path, session, rv.record, cache)
		if isEngineFailure(err) && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "engine failed on %s, restarting: %v\n", path, err)
			_ = session.Close()
			if session, err = startSession(ctx, rv.enginePath, rv.options); err != nil {
				return err
			}
			records, err = kibitz.BuildGameRecords(ctx, path, session, rv.record, cache)
		}
		if isCanceled(err) {
			return nil
		}
		for _, record := range records {
			results <- record
		}
		elapsed := time.Since(fileStart).Round(time.Millisecond)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to process %s (%s): %v\n", path, elapsed, err)
		} else {
			fmt.Fprintf(os.Stderr, "processed %s: %d games (%s)\n", path, len(records), elapsed)
		}
		atomic.AddInt64(processed, 1)
	}
	return nil
}

func reportProgress(total int, processed *int64, done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			count := int(atomic.LoadInt64(processed))
			fmt.Fprintf(os.Stderr, "\rprogress: %d/%d (%d%%)\n", count, total, count*100/total)
			return
		case <-ticker.C:
			count := int(atomic.LoadInt64(processed))
			fmt.Fprintf(os.Stderr, "\rprogress: %d/%d (%d%%)", count, total, count*100/total)
		}
	}
}

// sourceFile recovers the PGN file name from a game id of the form
// "name.pgn#3".
func sourceFile(gameID string) string {
	if i := strings.LastIndexByte(gameID, '#'); i >= 0 {
		return gameID[:i]
	}
	return gameID
}

func startSession(ctx context.Context, enginePath string, options map[string]string) (*kibitz.Session, error) {
	session, err := kibitz.StartSession(ctx, enginePath)
	if err != nil {
		return nil, err
	}
	if err := session.Handshake(ctx, options); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func isEngineFailure(err error) bool {
	var engineErr *kibitz.EngineError
	return errors.As(err, &engineErr)
}

func resolveConfigPath(arg string) (string, string, error) {
	if arg != "" {
		abs, err := filepath.Abs(arg)
		if err != nil {
			return "", "", err
		}
		return abs, filepath.Dir(abs), nil
	}
	return kibitz.FindConfigPath()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
