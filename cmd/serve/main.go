package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	kibitz "kibitz/pkg/kibitz"
)

func main() {
	input := flag.String("input", "", "PGN file holding the game to show")
	gameIndex := flag.Int("game", 1, "1-based game in the file")
	addr := flag.String("addr", ":3000", "listen address")
	configPath := flag.String("config", "", "path to config.json (searched upwards when empty)")
	noEngine := flag.Bool("no-engine", false, "serve the game without analysis")
	origins := flag.String("origins", "*", "allowed CORS origins")
	flag.Parse()

	if *input == "" {
		log.Fatal("-input is required")
	}
	game, err := loadGame(*input, *gameIndex)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := NewHub()
	server := NewServer(game, hub)
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: *origins,
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(func(c *fiber.Ctx) error {
		log.Printf("%s %s", c.Method(), c.Path())
		return c.Next()
	})
	server.Routes(app)

	if !*noEngine {
		session, cfg, err := startEngine(ctx, *configPath)
		if err != nil {
			log.Fatal(err)
		}
		defer session.Close()
		analyzer := &kibitz.Analyzer{
			Engine:     session,
			MoveTimeMs: cfg.Millis,
			Threshold:  cfg.Threshold,
			Verifier:   kibitz.Verifier{},
		}
		go func() {
			if err := server.Analyze(ctx, analyzer); err != nil {
				log.Printf("analysis stopped: %v", err)
				return
			}
			log.Printf("analysis finished")
		}()
	}

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()
	log.Printf("serving %s on %s", *input, *addr)
	if err := app.Listen(*addr); err != nil {
		log.Fatal(err)
	}
}

func loadGame(path string, index int) (*kibitz.Game, error) {
	records, err := kibitz.LoadPGN(path)
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(records) {
		return nil, fmt.Errorf("game %d out of range (file has %d)", index, len(records))
	}
	return records[index-1].Game()
}

func startEngine(ctx context.Context, configPath string) (*kibitz.Session, kibitz.Config, error) {
	var cfgPath, cfgDir string
	var err error
	if configPath != "" {
		cfgPath, err = filepath.Abs(configPath)
		cfgDir = filepath.Dir(cfgPath)
	} else {
		cfgPath, cfgDir, err = kibitz.FindConfigPath()
	}
	if err != nil {
		return nil, kibitz.Config{}, err
	}
	cfg, err := kibitz.LoadConfig(cfgPath)
	if err != nil {
		return nil, cfg, err
	}
	enginePath, err := cfg.EnginePath(cfgDir)
	if err != nil {
		return nil, cfg, err
	}
	session, err := kibitz.StartSession(ctx, enginePath)
	if err != nil {
		return nil, cfg, err
	}
	if err := session.Handshake(ctx, cfg.EngineOptions()); err != nil {
		session.Close()
		return nil, cfg, err
	}
	return session, cfg, nil
}
