package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	kibitz "kibitz/pkg/kibitz"
)

// posInfo holds the FEN and move counts of a qualified position.
type posInfo struct {
	fen   string
	moves map[string]uint32
}

type bookEntry struct {
	packed kibitz.Packed256
	fen    string
	move   string
}

func main() {
	inputDir := flag.String("input", "games", "input directory for PGN files")
	outputPath := flag.String("output", "book.txt", "output book file")
	threshold := flag.Int("threshold", 3, "minimum occurrence count to include in book")
	maxPly := flag.Int("max-ply", 30, "maximum ply to process per game")
	maxFiles := flag.Int("max-files", 0, "maximum number of files to process (0=all)")
	workers := flag.Int("workers", 0, "number of parallel workers (0=NumCPU)")
	flag.Parse()

	if *workers <= 0 {
		*workers = runtime.NumCPU()
	}

	start := time.Now()

	totalFiles, err := kibitz.CountPGN(*inputDir)
	if err != nil {
		fatal(err)
	}
	if totalFiles == 0 {
		fatal(fmt.Errorf("no .pgn files found in %s", *inputDir))
	}
	if *maxFiles > 0 && totalFiles > *maxFiles {
		totalFiles = *maxFiles
	}
	fmt.Fprintf(os.Stderr, "files: %d, workers: %d, max-ply: %d, threshold: %d\n",
		totalFiles, *workers, *maxPly, *threshold)

	// Pass 1 only keeps Packed256 -> count so that no FEN strings are built
	// for positions that never reach the threshold.
	fmt.Fprintf(os.Stderr, "pass 1: counting positions...\n")
	counts, errFiles := runPass1(*inputDir, *maxFiles, *maxPly, *workers, totalFiles)

	total := 0
	for _, c := range counts {
		total += int(c)
	}
	fmt.Fprintf(os.Stderr, "  unique positions: %d, total occurrences: %d, file errors: %d\n",
		len(counts), total, errFiles)

	qual := qualify(counts, uint32(*threshold))
	counts = nil
	runtime.GC()

	fmt.Fprintf(os.Stderr, "  qualified positions (>=%d): %d\n", *threshold, len(qual))
	if len(qual) == 0 {
		fmt.Fprintln(os.Stderr, "no positions meet the threshold; nothing to write")
		return
	}

	fmt.Fprintf(os.Stderr, "pass 2: collecting moves...\n")
	data := runPass2(*inputDir, *maxFiles, *maxPly, qual, *workers, totalFiles)
	fmt.Fprintf(os.Stderr, "  book entries: %d\n", len(data))

	f, err := os.Create(*outputPath)
	if err != nil {
		fatal(err)
	}
	if err := writeBook(f, data); err != nil {
		f.Close()
		fatal(err)
	}
	if err := f.Close(); err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stderr, "wrote %s (%d positions) in %v\n",
		*outputPath, len(data), time.Since(start).Round(time.Millisecond))
}

// iteratePositions replays every game of a PGN file up to maxPly and calls
// fn for each position together with the move played from it. Positions
// are keyed without clocks, so transpositions meet. A game that stops
// replaying still contributes the positions before the bad move.
func iteratePositions(path string, maxPly int, fn func(packed kibitz.Packed256, b *kibitz.Board, move string)) error {
	records, err := kibitz.LoadPGN(path)
	if err != nil {
		return err
	}
	var failed error
	for _, record := range records {
		game, err := record.Game()
		if err != nil && failed == nil {
			failed = err
		}
		if game == nil {
			continue
		}
		tree := game.Tree()
		line := tree.MainLine()
		for i := 0; i+1 < len(line) && i < maxPly; i++ {
			b, err := tree.Position(line[i])
			if err != nil {
				break
			}
			m, ok := tree.MoveAt(line[i+1])
			if !ok {
				break
			}
			packed, err := kibitz.PackPosition256(b)
			if err != nil {
				break
			}
			fn(packed, &b, m.Coordinate())
		}
	}
	return failed
}

func feedFiles(inputDir string, maxFiles int, ch chan<- string) {
	sent := 0
	_ = kibitz.WalkPGN(inputDir, func(path string) error {
		if maxFiles > 0 && sent >= maxFiles {
			return filepath.SkipAll
		}
		ch <- path
		sent++
		return nil
	})
	close(ch)
}

func runPass1(inputDir string, maxFiles, maxPly, workers, totalFiles int) (map[kibitz.Packed256]uint32, int) {
	counts := make(map[kibitz.Packed256]uint32)
	var mu sync.Mutex
	var processed, errCount atomic.Int64

	ch := make(chan string, workers*4)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kibitz.Packed256, 0, 64)
			for path := range ch {
				batch = batch[:0]
				err := iteratePositions(path, maxPly, func(packed kibitz.Packed256, _ *kibitz.Board, _ string) {
					batch = append(batch, packed)
				})
				if err != nil {
					errCount.Add(1)
				}
				if len(batch) > 0 {
					mu.Lock()
					for _, p := range batch {
						counts[p]++
					}
					mu.Unlock()
				}
				if n := processed.Add(1); n%1000 == 0 {
					fmt.Fprintf(os.Stderr, "\r  %d/%d", n, totalFiles)
				}
			}
		}()
	}

	feedFiles(inputDir, maxFiles, ch)
	wg.Wait()
	fmt.Fprintf(os.Stderr, "\r  %d/%d\n", processed.Load(), totalFiles)

	return counts, int(errCount.Load())
}

func qualify(counts map[kibitz.Packed256]uint32, threshold uint32) map[kibitz.Packed256]bool {
	qual := make(map[kibitz.Packed256]bool)
	for k, c := range counts {
		if c >= threshold {
			qual[k] = true
		}
	}
	return qual
}

func runPass2(inputDir string, maxFiles, maxPly int, qual map[kibitz.Packed256]bool, workers, totalFiles int) map[kibitz.Packed256]*posInfo {
	data := make(map[kibitz.Packed256]*posInfo)
	var mu sync.Mutex
	var processed atomic.Int64

	ch := make(chan string, workers*4)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]bookEntry, 0, 16)
			for path := range ch {
				batch = batch[:0]
				_ = iteratePositions(path, maxPly, func(packed kibitz.Packed256, b *kibitz.Board, move string) {
					if !qual[packed] {
						return
					}
					batch = append(batch, bookEntry{packed, bookFEN(b), move})
				})
				if len(batch) > 0 {
					mu.Lock()
					addEntries(data, batch)
					mu.Unlock()
				}
				if n := processed.Add(1); n%1000 == 0 {
					fmt.Fprintf(os.Stderr, "\r  %d/%d", n, totalFiles)
				}
			}
		}()
	}

	feedFiles(inputDir, maxFiles, ch)
	wg.Wait()
	fmt.Fprintf(os.Stderr, "\r  %d/%d\n", processed.Load(), totalFiles)

	return data
}

func addEntries(data map[kibitz.Packed256]*posInfo, batch []bookEntry) {
	for _, e := range batch {
		info := data[e.packed]
		if info == nil {
			info = &posInfo{fen: e.fen, moves: make(map[string]uint32)}
			data[e.packed] = info
		}
		info.moves[e.move]++
	}
}

// bookFEN drops the move clocks, which differ between transpositions.
func bookFEN(b *kibitz.Board) string {
	fields := strings.Fields(b.FEN())
	return strings.Join(fields[:4], " ")
}

// writeBook writes one "fen" line per position followed by its moves in
// coordinate form, most played first.
func writeBook(out io.Writer, data map[kibitz.Packed256]*posInfo) error {
	w := bufio.NewWriter(out)
	fmt.Fprintln(w, "#KIBITZ-BOOK 1")

	entries := make([]*posInfo, 0, len(data))
	for _, info := range data {
		entries = append(entries, info)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].fen < entries[j].fen
	})

	for _, e := range entries {
		fmt.Fprintf(w, "fen %s\n", e.fen)
		type mc struct {
			move  string
			count uint32
		}
		ms := make([]mc, 0, len(e.moves))
		for m, c := range e.moves {
			ms = append(ms, mc{m, c})
		}
		sort.Slice(ms, func(i, j int) bool {
			if ms[i].count != ms[j].count {
				return ms[i].count > ms[j].count
			}
			return ms[i].move < ms[j].move
		})
		for _, m := range ms {
			fmt.Fprintf(w, "%s %d\n", m.move, m.count)
		}
	}
	return w.Flush()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
