package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	kibitz "kibitz/pkg/kibitz"
)

func main() {
	input := flag.String("input", "", "PGN file to replay")
	gameIndex := flag.Int("game", 0, "1-based game to print (0=all)")
	verify := flag.Bool("verify", false, "check every move with the full legal move generator")
	status := flag.Bool("status", false, "mark checks, mates and stalemates after each ply")
	flag.Parse()

	if *input == "" {
		fatal(fmt.Errorf("-input is required"))
	}
	records, err := kibitz.LoadPGN(*input)
	if err != nil {
		fatal(err)
	}
	if *gameIndex < 0 || *gameIndex > len(records) {
		fatal(fmt.Errorf("game %d out of range (file has %d)", *gameIndex, len(records)))
	}

	var opts []kibitz.Option
	if *verify {
		opts = append(opts, kibitz.WithVerifier(kibitz.Verifier{}))
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	failed := 0
	for i, record := range records {
		if *gameIndex != 0 && i+1 != *gameIndex {
			continue
		}
		game, err := record.Game(opts...)
		if game != nil {
			fmt.Fprintf(out, "[Game %d] %s - %s %s\n", i+1, record.Tags["White"], record.Tags["Black"], record.Result)
			writeFENs(out, game, *status)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "game %d: %v\n", i+1, err)
			failed++
		}
	}
	if failed > 0 {
		out.Flush()
		os.Exit(1)
	}
}

// writeFENs prints "ply move fen" for the start and every main-line ply.
func writeFENs(w io.Writer, game *kibitz.Game, status bool) {
	tree := game.Tree()
	for ply, id := range tree.MainLine() {
		b, err := tree.Position(id)
		if err != nil {
			return
		}
		move := "-"
		if m, ok := tree.MoveAt(id); ok {
			move = m.Notation
		}
		fmt.Fprintf(w, "%d %s %s", ply, move, b.FEN())
		if status {
			if mark := statusMark(b); mark != "" {
				fmt.Fprintf(w, " %s", mark)
			}
		}
		fmt.Fprintln(w)
	}
}

func statusMark(b kibitz.Board) string {
	s := kibitz.PositionStatus(b)
	switch {
	case s.Checkmate():
		return "checkmate"
	case s.Stalemate():
		return "stalemate"
	case s.InCheck:
		return "check"
	}
	return ""
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
