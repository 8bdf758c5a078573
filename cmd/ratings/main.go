package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	kibitz "kibitz/pkg/kibitz"
)

type ratingStats struct {
	binSize     int
	known       int
	unknown     int
	min         int
	max         int
	initialized bool
	bins        map[int]int
}

type playerRatingAgg struct {
	sum   int64
	count int
}

func newRatingStats(binSize int) *ratingStats {
	return &ratingStats{
		binSize: binSize,
		bins:    make(map[int]int),
	}
}

func (rs *ratingStats) Add(rating int32) {
	if rating <= 0 {
		rs.unknown++
		return
	}
	value := int(rating)
	rs.known++
	if !rs.initialized {
		rs.min = value
		rs.max = value
		rs.initialized = true
	} else {
		if value < rs.min {
			rs.min = value
		}
		if value > rs.max {
			rs.max = value
		}
	}
	binStart := (value / rs.binSize) * rs.binSize
	rs.bins[binStart]++
}

// players gathers one averaged rating per player name.
type players struct {
	unique map[string]struct{}
	agg    map[string]*playerRatingAgg
}

func newPlayers() *players {
	return &players{unique: make(map[string]struct{}), agg: make(map[string]*playerRatingAgg)}
}

func (p *players) add(name string, rating int32) {
	if name == "" {
		return
	}
	p.unique[name] = struct{}{}
	if rating <= 0 {
		return
	}
	entry, ok := p.agg[name]
	if !ok {
		entry = &playerRatingAgg{}
		p.agg[name] = entry
	}
	entry.sum += int64(rating)
	entry.count++
}

func main() {
	pgnDir := flag.String("pgn-dir", "", "input directory for PGN files")
	parquetPath := flag.String("parquet", "", "input parquet file")
	binSize := flag.Int("bin-size", 100, "rating bin size")
	minGames := flag.Int("min-games", 2, "minimum games per player to count")
	flag.Parse()

	if *binSize <= 0 {
		fatal(fmt.Errorf("bin-size must be > 0"))
	}
	if *minGames <= 0 {
		fatal(fmt.Errorf("min-games must be > 0"))
	}
	if (*pgnDir == "") == (*parquetPath == "") {
		fatal(fmt.Errorf("specify exactly one of -pgn-dir or -parquet"))
	}

	seen := newPlayers()
	failed := 0
	if *parquetPath != "" {
		err := kibitz.ScanParquet(*parquetPath, 4, func(record kibitz.GameRecord) error {
			seen.add(record.White, record.WhiteElo)
			seen.add(record.Black, record.BlackElo)
			return nil
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("input parquet: %s\n", *parquetPath)
	} else {
		files, err := kibitz.CollectPGN(*pgnDir)
		if err != nil {
			fatal(err)
		}
		if len(files) == 0 {
			fatal(fmt.Errorf("no .pgn files found in %s", *pgnDir))
		}
		failed = addPGNPlayers(seen, files, os.Stderr)
		fmt.Printf("pgn dir: %s\n", *pgnDir)
	}

	ratings, unknownPlayers, playersAtLeast := summarize(seen, *binSize, *minGames)
	fmt.Printf("failed files: %d\n", failed)
	fmt.Printf("unique players: %d\n", len(seen.unique))
	fmt.Printf("ratings: known=%d unknown=%d (players without rating=%d)\n", ratings.known, ratings.unknown, unknownPlayers)
	fmt.Printf("players with >= %d rated games: %d\n", *minGames, playersAtLeast)
	if ratings.known > 0 {
		fmt.Printf("rating range: %d-%d\n", ratings.min, ratings.max)
	}
	fmt.Printf("rating distribution (bin size=%d):\n", ratings.binSize)
	keys := make([]int, 0, len(ratings.bins))
	for key := range ratings.bins {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	for _, start := range keys {
		end := start + ratings.binSize - 1
		fmt.Printf("%d-%d,%d\n", start, end, ratings.bins[start])
	}
}

func addPGNPlayers(seen *players, files []string, errOut io.Writer) int {
	failed := 0
	for _, path := range files {
		list, err := kibitz.LoadPGNPlayers(path)
		if err != nil {
			fmt.Fprintf(errOut, "failed to parse %s: %v\n", path, err)
			failed++
			continue
		}
		for _, p := range list {
			seen.add(p.White, p.WhiteElo)
			seen.add(p.Black, p.BlackElo)
		}
	}
	return failed
}

// summarize bins every player by the average of their rated games.
func summarize(seen *players, binSize, minGames int) (*ratingStats, int, int) {
	ratings := newRatingStats(binSize)
	unknown := 0
	atLeast := 0
	for name := range seen.unique {
		agg, ok := seen.agg[name]
		if !ok || agg.count == 0 {
			unknown++
			continue
		}
		if agg.count >= minGames {
			atLeast++
		}
		ratings.Add(int32(agg.sum / int64(agg.count)))
	}
	return ratings, unknown, atLeast
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
