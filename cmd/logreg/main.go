package main

// logreg fits a logistic regression of White's result on who first crossed
// an evaluation threshold, with one sample per decisive game.
//
// Features:
//   intercept          : White's baseline at the mean rating with no first crossing
//   elo_diff_scaled    : (white_elo - black_elo) / elo-scale
//   first_crossed      : 1 if White reached +threshold before Black reached -threshold
//   elo_x_first        : centered White rating times first_crossed
//
// A positive elo_x_first means stronger players convert an early advantage
// more reliably.

import (
	"flag"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	kibitz "kibitz/pkg/kibitz"
)

type sample struct {
	x []float64
	y float64
}

type counts struct {
	total   int
	skipped int
}

var featureNames = []string{"intercept", "elo_diff_scaled", "first_crossed", "elo_x_first"}

func main() {
	input := flag.String("input", "output.parquet", "input parquet file")
	threshold := flag.Int("threshold", 300, "eval threshold for first crossing")
	iter := flag.Int("iter", 300, "gradient descent iterations")
	lr := flag.Float64("lr", 0.05, "learning rate")
	eloScale := flag.Float64("elo-scale", 100, "scale factor for rating diff")
	maxAbsDiff := flag.Int("max-abs-diff", 0, "max absolute rating diff (0=disabled)")
	parallel := flag.Int64("parallel", 4, "parquet read parallelism")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "number of gradient workers")
	ratingsArg := flag.String("ratings", "1200,1500,1800,2100,2400,2700", "comma-separated ratings to predict for")
	flag.Parse()

	if *iter <= 0 {
		fatal(fmt.Errorf("iter must be > 0"))
	}
	if *lr <= 0 {
		fatal(fmt.Errorf("lr must be > 0"))
	}
	if *eloScale <= 0 {
		fatal(fmt.Errorf("elo-scale must be > 0"))
	}
	if *threshold <= 0 {
		fatal(fmt.Errorf("threshold must be > 0"))
	}
	if *workers <= 0 {
		fatal(fmt.Errorf("workers must be > 0"))
	}
	ratings, err := parseIntList(*ratingsArg)
	if err != nil {
		fatal(err)
	}
	records, err := kibitz.ReadParquet(*input, *parallel)
	if err != nil {
		fatal(err)
	}

	samples, cts, meanElo := buildSamples(records, *threshold, *eloScale, *maxAbsDiff)
	if len(samples) == 0 {
		fatal(fmt.Errorf("no samples available after filtering (total=%d skipped=%d)", cts.total, cts.skipped))
	}
	weights, loss := fitLogReg(samples, *iter, *lr, *workers)

	fmt.Println("data:")
	fmt.Printf("  input: %s\n", *input)
	fmt.Printf("  threshold: %d\n", *threshold)
	fmt.Printf("  elo-scale: %.0f\n", *eloScale)
	fmt.Printf("  games: %d (skipped=%d)\n", len(samples), cts.skipped)
	fmt.Printf("  max-abs-diff: %d\n", *maxAbsDiff)
	fmt.Printf("  mean-white-elo: %.0f\n", meanElo)
	fmt.Printf("  workers: %d\n", *workers)
	fmt.Println("model:")
	fmt.Printf("  features: %s\n", strings.Join(featureNames, ", "))
	fmt.Printf("  final-loss: %.6f\n", loss)

	printModel(weights, *eloScale, meanElo, ratings)
}

// buildSamples keeps rated decisive games with a crossing and centers the
// White rating on the mean of the kept games.
func buildSamples(records []kibitz.GameRecord, threshold int, eloScale float64, maxAbsDiff int) ([]sample, counts, float64) {
	type accepted struct {
		white, black float64
		whiteFirst   bool
		whiteWin     bool
	}
	var games []accepted
	cts := counts{total: len(records)}
	var sumElo float64
	for _, record := range records {
		crossing := firstCrossingSide(record.MoveEvals, threshold)
		winner := winnerSide(record.Result)
		if crossing == "none" || winner == "none" || record.WhiteElo == 0 || record.BlackElo == 0 {
			cts.skipped++
			continue
		}
		if maxAbsDiff > 0 && absInt(int(record.WhiteElo-record.BlackElo)) > maxAbsDiff {
			cts.skipped++
			continue
		}
		games = append(games, accepted{
			white:      float64(record.WhiteElo),
			black:      float64(record.BlackElo),
			whiteFirst: crossing == "white",
			whiteWin:   winner == "white",
		})
		sumElo += float64(record.WhiteElo)
	}
	meanElo := 0.0
	if len(games) > 0 {
		meanElo = sumElo / float64(len(games))
	}
	samples := make([]sample, 0, len(games))
	for _, g := range games {
		samples = append(samples, makeSample(g.white, g.black, g.whiteFirst, g.whiteWin, eloScale, meanElo))
	}
	return samples, cts, meanElo
}

func makeSample(white, black float64, whiteFirst, whiteWin bool, eloScale, meanElo float64) sample {
	first := 0.0
	if whiteFirst {
		first = 1.0
	}
	label := 0.0
	if whiteWin {
		label = 1.0
	}
	diff := (white - black) / eloScale
	centered := (white - meanElo) / eloScale
	return sample{
		x: []float64{1.0, diff, first, centered * first},
		y: label,
	}
}

// fitLogReg minimises the mean negative log-likelihood by batch gradient
// descent, splitting each gradient over workers.
func fitLogReg(samples []sample, iter int, lr float64, workers int) ([]float64, float64) {
	weights := make([]float64, len(samples[0].x))
	if workers > len(samples) {
		workers = len(samples)
	}
	for i := 0; i < iter; i++ {
		grad := make([]float64, len(weights))
		partials := make([][]float64, workers)
		var wg sync.WaitGroup
		chunk := (len(samples) + workers - 1) / workers
		for w := 0; w < workers; w++ {
			start := w * chunk
			if start >= len(samples) {
				break
			}
			end := start + chunk
			if end > len(samples) {
				end = len(samples)
			}
			partials[w] = make([]float64, len(weights))
			wg.Add(1)
			go func(local []float64, part []sample) {
				defer wg.Done()
				for _, s := range part {
					diff := sigmoid(dot(weights, s.x)) - s.y
					for j := range local {
						local[j] += diff * s.x[j]
					}
				}
			}(partials[w], samples[start:end])
		}
		wg.Wait()
		for _, local := range partials {
			for j := range local {
				grad[j] += local[j]
			}
		}
		scale := lr / float64(len(samples))
		for j := range weights {
			weights[j] -= grad[j] * scale
		}
	}
	return weights, meanLoss(weights, samples)
}

func meanLoss(weights []float64, samples []sample) float64 {
	var total float64
	for _, s := range samples {
		p := sigmoid(dot(weights, s.x))
		p = math.Min(math.Max(p, 1e-15), 1-1e-15)
		total += -s.y*math.Log(p) - (1-s.y)*math.Log(1-p)
	}
	return total / float64(len(samples))
}

func printModel(weights []float64, eloScale, meanElo float64, ratings []int) {
	fmt.Println("coefficients (log-odds):")
	for i, w := range weights {
		fmt.Printf("  %s = %.6f\n", featureNames[i], w)
	}
	fmt.Println("odds ratios (1.0 = no change):")
	for i := 1; i < len(weights); i++ {
		fmt.Printf("  %s = %.4f\n", featureNames[i], math.Exp(weights[i]))
	}
	fmt.Println("predicted white win rates (equal ratings, mean rating):")
	fmt.Printf("  first-cross=1: %.3f\n", predict(weights, 0, 1, 0))
	fmt.Printf("  first-cross=0: %.3f\n", predict(weights, 0, 0, 0))
	if len(ratings) == 0 {
		return
	}
	fmt.Println("expected win rates by rating (first-cross=1, equal ratings):")
	for _, rating := range ratings {
		centered := (float64(rating) - meanElo) / eloScale
		fmt.Printf("  rating=%d: win_rate=%.3f\n", rating, predict(weights, 0, 1, centered))
	}
}

func predict(weights []float64, diff, first, centered float64) float64 {
	return sigmoid(dot(weights, []float64{1.0, diff, first, centered * first}))
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	ez := math.Exp(z)
	return ez / (1 + ez)
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func firstCrossingSide(evals []kibitz.MoveEval, threshold int) string {
	for _, eval := range evals {
		switch eval.ScoreType {
		case "none":
			continue
		case "mate":
			if eval.ScoreValue >= 0 {
				return "white"
			}
			return "black"
		}
		if eval.ScoreValue >= int32(threshold) {
			return "white"
		}
		if eval.ScoreValue <= -int32(threshold) {
			return "black"
		}
	}
	return "none"
}

func winnerSide(result string) string {
	switch result {
	case "1-0":
		return "white"
	case "0-1":
		return "black"
	default:
		return "none"
	}
}

func parseIntList(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var values []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid int %q: %w", part, err)
		}
		values = append(values, value)
	}
	return values, nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
