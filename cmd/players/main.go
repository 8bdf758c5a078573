package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	kibitz "kibitz/pkg/kibitz"
)

type stats struct {
	crossings int
	wins      int
}

type playerStats struct {
	games       int
	ratingSum   int64
	ratingCount int
	moves       int
	blunders    int
	byThreshold map[int]*stats
}

func (p *playerStats) avgRating() float64 {
	if p.ratingCount == 0 {
		return 0
	}
	return float64(p.ratingSum) / float64(p.ratingCount)
}

// main prints one CSV row per player with their blunder rate and how often
// they converted a first threshold crossing into a win.
func main() {
	input := flag.String("input", "review.parquet", "input parquet file")
	thresholdsArg := flag.String("thresholds", "300,500,1000", "comma-separated eval thresholds")
	minGames := flag.Int("min-games", 10, "minimum games per player")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	flag.Parse()

	if *minGames <= 0 {
		fatal(fmt.Errorf("min-games must be > 0"))
	}
	thresholds, err := parseIntList(*thresholdsArg)
	if err != nil {
		fatal(err)
	}
	if len(thresholds) == 0 {
		fatal(fmt.Errorf("thresholds must be non-empty"))
	}
	sort.Ints(thresholds)

	records, err := kibitz.ReadParquet(*input, *parallel)
	if err != nil {
		fatal(err)
	}
	players := collect(records, thresholds, *minGames)
	printCSV(players, thresholds)
}

// collect aggregates the players with at least minGames games.
func collect(records []kibitz.GameRecord, thresholds []int, minGames int) map[string]*playerStats {
	gameCounts := make(map[string]int)
	for _, record := range records {
		if record.White != "" {
			gameCounts[record.White]++
		}
		if record.Black != "" {
			gameCounts[record.Black]++
		}
	}
	players := make(map[string]*playerStats)
	for name, count := range gameCounts {
		if count < minGames {
			continue
		}
		perThreshold := make(map[int]*stats, len(thresholds))
		for _, th := range thresholds {
			perThreshold[th] = &stats{}
		}
		players[name] = &playerStats{byThreshold: perThreshold}
	}

	for _, record := range records {
		crossing := firstCrossingSide(record.MoveEvals, thresholds)
		winner := winnerSide(record.Result)
		for _, seat := range []struct {
			name   string
			rating int32
			side   string
		}{{record.White, record.WhiteElo, "w"}, {record.Black, record.BlackElo, "b"}} {
			player, ok := players[seat.name]
			if !ok {
				continue
			}
			player.games++
			if seat.rating > 0 {
				player.ratingSum += int64(seat.rating)
				player.ratingCount++
			}
			for _, eval := range record.MoveEvals {
				if moverSide(eval.FEN) != seat.side {
					continue
				}
				player.moves++
				if eval.Blunder {
					player.blunders++
				}
			}
			for _, th := range thresholds {
				if crossing[th] != seat.side {
					continue
				}
				st := player.byThreshold[th]
				st.crossings++
				if winner == seat.side {
					st.wins++
				}
			}
		}
	}
	return players
}

func printCSV(players map[string]*playerStats, thresholds []int) {
	headers := []string{"player", "avg_rating", "games", "blunder_rate"}
	for _, th := range thresholds {
		headers = append(headers, fmt.Sprintf("win_rate_%d", th))
	}
	fmt.Println(strings.Join(headers, ","))

	order := make([]string, 0, len(players))
	for name := range players {
		order = append(order, name)
	}
	sort.Slice(order, func(i, j int) bool {
		left, right := players[order[i]].avgRating(), players[order[j]].avgRating()
		if left == right {
			return order[i] < order[j]
		}
		return left > right
	})
	for _, name := range order {
		player := players[name]
		blunderRate := 0.0
		if player.moves > 0 {
			blunderRate = float64(player.blunders) / float64(player.moves)
		}
		row := []string{strconv.Quote(name), fmt.Sprintf("%.1f", player.avgRating()), strconv.Itoa(player.games), fmt.Sprintf("%.6f", blunderRate)}
		for _, th := range thresholds {
			st := player.byThreshold[th]
			winRate := 0.0
			if st.crossings > 0 {
				winRate = float64(st.wins) / float64(st.crossings)
			}
			row = append(row, fmt.Sprintf("%.6f", winRate))
		}
		fmt.Println(strings.Join(row, ","))
	}
}

// moverSide is the side that played the move leading to fen, which is the
// side not to move in it.
func moverSide(fen string) string {
	fields := strings.Fields(fen)
	if len(fields) < 2 {
		return ""
	}
	if fields[1] == "w" {
		return "b"
	}
	return "w"
}

func parseIntList(raw string) ([]int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		segment := strings.TrimSpace(part)
		if segment == "" {
			continue
		}
		value, err := strconv.Atoi(segment)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

// firstCrossingSide finds, for every threshold at once, the side the first
// crossing evaluation favours: "w", "b" or "" when none crossed.
func firstCrossingSide(evals []kibitz.MoveEval, thresholds []int) map[int]string {
	result := make(map[int]string, len(thresholds))
	remaining := make(map[int]struct{}, len(thresholds))
	for _, th := range thresholds {
		remaining[th] = struct{}{}
	}
	for _, eval := range evals {
		if len(remaining) == 0 {
			break
		}
		if eval.ScoreType == "none" {
			continue
		}
		for th := range remaining {
			switch {
			case eval.ScoreType == "mate" && eval.ScoreValue >= 0, eval.ScoreType == "cp" && eval.ScoreValue >= int32(th):
				result[th] = "w"
			case eval.ScoreType == "mate", eval.ScoreValue <= -int32(th):
				result[th] = "b"
			default:
				continue
			}
			delete(remaining, th)
		}
	}
	return result
}

func winnerSide(result string) string {
	switch result {
	case "1-0":
		return "w"
	case "0-1":
		return "b"
	default:
		return ""
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
