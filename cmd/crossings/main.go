package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	kibitz "kibitz/pkg/kibitz"
)

type side int

const (
	noSide side = iota
	whiteSide
	blackSide
)

type scenario struct {
	threshold  int
	bucketFrom int
	bucketTo   int
}

type stats struct {
	totalGames    int
	crossings     int
	wins          int
	excludedGames int
}

// main prints, per rating bucket and threshold, how often the player whose
// evaluation first crossed the threshold went on to win.
func main() {
	inputPath := flag.String("input", "review.parquet", "input parquet file")
	thresholdsArg := flag.String("thresholds", "300", "comma-separated eval thresholds in centipawns")
	ratingDiffMax := flag.Int("rating-diff-max", 100, "max rating difference between players")
	binSize := flag.Int("player-bin-size", 100, "player rating bucket size")
	playerMin := flag.Int("player-min", 0, "minimum player rating (0 to auto-detect)")
	playerMax := flag.Int("player-max", 0, "maximum player rating (0 to auto-detect)")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	flag.Parse()

	thresholds, err := parseIntList(*thresholdsArg)
	if err != nil {
		fatal(err)
	}
	if len(thresholds) == 0 {
		fatal(fmt.Errorf("thresholds must be non-empty"))
	}
	if *binSize <= 0 {
		fatal(fmt.Errorf("player-bin-size must be > 0"))
	}
	if *ratingDiffMax < 0 {
		fatal(fmt.Errorf("rating-diff-max must be >= 0"))
	}

	records, err := readRecords(*inputPath, *parallel)
	if err != nil {
		fatal(err)
	}

	minRating, maxRating := ratingMinMax(records)
	if *playerMin > 0 {
		minRating = *playerMin
	}
	if *playerMax > 0 {
		maxRating = *playerMax
	}
	scenarios := buildScenarios(thresholds, minRating, maxRating, *binSize)
	results := tally(records, scenarios, *ratingDiffMax)
	printCSV(scenarios, results)
}

func readRecords(path string, parallel int64) ([]kibitz.GameRecord, error) {
	var records []kibitz.GameRecord
	var read int64
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				fmt.Fprintf(os.Stderr, "\rread: %d\n", atomic.LoadInt64(&read))
				return
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\rread: %d", atomic.LoadInt64(&read))
			}
		}
	}()
	err := kibitz.ScanParquet(path, parallel, func(record kibitz.GameRecord) error {
		records = append(records, record)
		atomic.AddInt64(&read, 1)
		return nil
	})
	close(done)
	return records, err
}

// tally counts each rated player of each game once per scenario whose
// bucket holds their rating. Games with a large rating gap are skipped.
func tally(records []kibitz.GameRecord, scenarios []scenario, ratingDiffMax int) map[scenario]*stats {
	results := make(map[scenario]*stats, len(scenarios))
	for _, sc := range scenarios {
		results[sc] = &stats{}
	}
	for _, record := range records {
		if record.WhiteElo <= 0 || record.BlackElo <= 0 {
			continue
		}
		diff := int(record.WhiteElo - record.BlackElo)
		if diff < 0 {
			diff = -diff
		}
		if diff > ratingDiffMax {
			continue
		}
		winner := winnerSide(record.Result)
		for _, sc := range scenarios {
			crossing := firstCrossingSide(record.MoveEvals, sc.threshold)
			for _, player := range []struct {
				rating int32
				side   side
			}{{record.WhiteElo, whiteSide}, {record.BlackElo, blackSide}} {
				if !inBucket(int(player.rating), sc) {
					continue
				}
				st := results[sc]
				st.totalGames++
				switch {
				case crossing == noSide || winner == noSide:
					st.excludedGames++
				case crossing == player.side:
					st.crossings++
					if winner == player.side {
						st.wins++
					}
				}
			}
		}
	}
	return results
}

func buildScenarios(thresholds []int, minRating, maxRating, binSize int) []scenario {
	var scenarios []scenario
	for bucketStart := minRating; bucketStart <= maxRating; bucketStart += binSize {
		for _, threshold := range thresholds {
			scenarios = append(scenarios, scenario{
				threshold:  threshold,
				bucketFrom: bucketStart,
				bucketTo:   bucketStart + binSize,
			})
		}
	}
	sort.Slice(scenarios, func(i, j int) bool {
		if scenarios[i].bucketFrom == scenarios[j].bucketFrom {
			return scenarios[i].threshold < scenarios[j].threshold
		}
		return scenarios[i].bucketFrom < scenarios[j].bucketFrom
	})
	return scenarios
}

// ratingMinMax ignores unrated players.
func ratingMinMax(records []kibitz.GameRecord) (int, int) {
	lo, hi := 0, 0
	initialized := false
	for _, record := range records {
		for _, value := range []int{int(record.WhiteElo), int(record.BlackElo)} {
			if value <= 0 {
				continue
			}
			if !initialized {
				lo, hi = value, value
				initialized = true
				continue
			}
			if value < lo {
				lo = value
			}
			if value > hi {
				hi = value
			}
		}
	}
	return lo, hi
}

// inBucket reports whether rating falls within [bucketFrom, bucketTo).
func inBucket(rating int, sc scenario) bool {
	return rating >= sc.bucketFrom && rating < sc.bucketTo
}

// firstCrossingSide returns the side favoured by the first evaluation at or
// beyond the threshold. Scores are from White's point of view.
func firstCrossingSide(evals []kibitz.MoveEval, threshold int) side {
	for _, eval := range evals {
		switch eval.ScoreType {
		case "none":
			continue
		case "mate":
			if eval.ScoreValue >= 0 {
				return whiteSide
			}
			return blackSide
		}
		if eval.ScoreValue >= int32(threshold) {
			return whiteSide
		}
		if eval.ScoreValue <= -int32(threshold) {
			return blackSide
		}
	}
	return noSide
}

func winnerSide(result string) side {
	switch result {
	case "1-0":
		return whiteSide
	case "0-1":
		return blackSide
	default:
		return noSide
	}
}

// parseIntList parses comma-separated integers with optional whitespace.
func parseIntList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func printCSV(scenarios []scenario, results map[scenario]*stats) {
	fmt.Println("player_bucket_from,player_bucket_to,threshold,total_games,crossings,wins,win_rate,excluded")
	for _, sc := range scenarios {
		st := results[sc]
		winRate := 0.0
		if st.crossings > 0 {
			winRate = float64(st.wins) / float64(st.crossings)
		}
		fmt.Printf("%d,%d,%d,%d,%d,%d,%.6f,%d\n",
			sc.bucketFrom,
			sc.bucketTo,
			sc.threshold,
			st.totalGames,
			st.crossings,
			st.wins,
			winRate,
			st.excludedGames,
		)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
