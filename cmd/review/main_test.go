package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	kibitz "kibitz/pkg/kibitz"
)

func TestSourceFile(t *testing.T) {
	cases := map[string]string{
		"games/a.pgn#3":   "games/a.pgn",
		"odd#name.pgn#12": "odd#name.pgn",
		"plain.pgn":       "plain.pgn",
	}
	for in, want := range cases {
		if got := sourceFile(in); got != want {
			t.Fatalf("sourceFile(%q): got %q want %q", in, got, want)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	engineErr := &kibitz.PlyError{Ply: 4, Notation: "Nf3", Err: &kibitz.EngineError{Op: "read", Err: io.EOF}}
	if !isEngineFailure(engineErr) {
		t.Fatalf("wrapped engine error not detected")
	}
	if isEngineFailure(&kibitz.PlyError{Ply: 4, Err: kibitz.ErrUnknownNode}) {
		t.Fatalf("game error classified as engine failure")
	}
	if !isCanceled(fmt.Errorf("game 2: %w", context.Canceled)) {
		t.Fatalf("canceled not detected")
	}
	if isCanceled(errors.New("boom")) {
		t.Fatalf("plain error classified as canceled")
	}
}

func TestRunReturnsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rv := reviewer{enginePath: "/nonexistent/engine"}
	var processed int64
	if err := rv.run(ctx, make(chan string), make(chan kibitz.GameRecord), &processed); err != nil {
		t.Fatalf("canceled run should not start an engine: %v", err)
	}
}

func TestRunReportsMissingEngine(t *testing.T) {
	rv := reviewer{enginePath: "/nonexistent/engine"}
	var processed int64
	jobs := make(chan string)
	close(jobs)
	if err := rv.run(context.Background(), jobs, make(chan kibitz.GameRecord), &processed); err == nil {
		t.Fatalf("expected an error for a missing engine")
	}
}
