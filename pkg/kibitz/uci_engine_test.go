package kibitz_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	kibitz "kibitz/pkg/kibitz"
)

// configuredEngine starts the engine named by config.json, skipping when
// there is no config or no binary.
func configuredEngine(t *testing.T) (*kibitz.Session, kibitz.Config) {
	t.Helper()
	cfgPath, cfgDir, err := kibitz.FindConfigPath()
	if err != nil {
		t.Skipf("no config.json: %v", err)
	}
	cfg, err := kibitz.LoadConfig(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config.json: %v", err)
	}
	enginePath, err := cfg.EnginePath(cfgDir)
	if err != nil {
		t.Fatalf("bad engine path: %v", err)
	}
	if _, err := os.Stat(enginePath); err != nil {
		t.Skipf("engine binary not found at %s: %v", enginePath, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := kibitz.StartSession(context.Background(), enginePath)
	if err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	if err := session.Handshake(ctx, cfg.EngineOptions()); err != nil {
		t.Fatalf("handshake failed: %v", err)
	}
	return session, cfg
}

func TestEngineAnalyzesTestdataGame(t *testing.T) {
	session, cfg := configuredEngine(t)

	games, err := kibitz.LoadGamesFromPGN(filepath.Join("testdata", "game001.pgn"))
	if err != nil {
		t.Fatalf("failed to load game: %v", err)
	}
	tree := games[0].Tree()
	analyzer := &kibitz.Analyzer{
		Engine:     session,
		MoveTimeMs: 50,
		Threshold:  cfg.Threshold,
		Verifier:   kibitz.Verifier{},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	reports, err := analyzer.Run(ctx, tree)
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if len(reports) != len(tree.MainLine())-1 {
		t.Fatalf("unexpected report count: got %d want %d", len(reports), len(tree.MainLine())-1)
	}
	for _, r := range reports {
		if r.Eval.Score.Kind == "" {
			t.Fatalf("ply %d has no score", r.Ply)
		}
		if _, ok := tree.Score(r.Node); !ok {
			t.Fatalf("ply %d score not stored", r.Ply)
		}
		if r.Alternative != kibitz.NoNode && tree.Original(r.Alternative) != r.Node {
			t.Fatalf("ply %d alternative does not point back", r.Ply)
		}
	}
}
