package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	kibitz "kibitz/pkg/kibitz"
)

// Server exposes one game's history tree. The analyzer is the only writer;
// HTTP handlers only navigate and read scores.
type Server struct {
	game     *kibitz.Game
	hub      *Hub
	analyzer atomic.Pointer[kibitz.Analyzer]
}

func NewServer(game *kibitz.Game, hub *Hub) *Server {
	return &Server{game: game, hub: hub}
}

type gameView struct {
	Tags     kibitz.TagPairs `json:"tags"`
	Result   string          `json:"result"`
	Root     kibitz.NodeID   `json:"root"`
	MainLine []kibitz.NodeID `json:"main_line"`
}

type nodeView struct {
	ID          kibitz.NodeID `json:"id"`
	FEN         string        `json:"fen"`
	Move        string        `json:"move,omitempty"`
	Coordinate  string        `json:"coordinate,omitempty"`
	Depth       int           `json:"depth"`
	Previous    kibitz.NodeID `json:"previous"`
	Next        kibitz.NodeID `json:"next"`
	Alternative kibitz.NodeID `json:"alternative"`
	Original    kibitz.NodeID `json:"original"`
	Score       *int          `json:"score,omitempty"`
}

type plyView struct {
	Ply         int           `json:"ply"`
	Node        kibitz.NodeID `json:"node"`
	Move        string        `json:"move"`
	Score       int           `json:"score"`
	Best        string        `json:"best"`
	Loss        int           `json:"loss"`
	Blunder     bool          `json:"blunder"`
	Alternative kibitz.NodeID `json:"alternative"`
}

// Routes mounts the API and the websocket endpoint on app.
func (s *Server) Routes(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/game", s.GetGame)
	api.Get("/node/:id", s.GetNode)
	api.Get("/node/:id/line", s.GetLine)
	api.Get("/node/:id/svg", s.GetSVG)
	api.Post("/analysis/stop", s.StopAnalysis)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})
	app.Get("/ws/analysis", websocket.New(s.hub.HandleConnection, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))
}

func (s *Server) GetGame(c *fiber.Ctx) error {
	tree := s.game.Tree()
	return c.JSON(gameView{
		Tags:     s.game.Tags(),
		Result:   s.game.Result(),
		Root:     tree.Root(),
		MainLine: tree.MainLine(),
	})
}

func (s *Server) GetNode(c *fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return badRequest(c, err)
	}
	tree := s.game.Tree()
	b, err := tree.Position(id)
	if err != nil {
		return notFound(c, err)
	}
	view := nodeView{
		ID:          id,
		FEN:         b.FEN(),
		Depth:       tree.Depth(id),
		Previous:    tree.Previous(id),
		Next:        tree.Next(id),
		Alternative: tree.Alternative(id),
		Original:    tree.Original(id),
	}
	if m, ok := tree.MoveAt(id); ok {
		view.Move = m.Notation
		view.Coordinate = m.Coordinate()
	}
	if score, ok := tree.Score(id); ok {
		view.Score = &score
	}
	return c.JSON(view)
}

func (s *Server) GetLine(c *fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return badRequest(c, err)
	}
	line := s.game.Tree().Line(id)
	if len(line) == 0 {
		return notFound(c, kibitz.ErrUnknownNode)
	}
	return c.JSON(fiber.Map{"line": line})
}

func (s *Server) GetSVG(c *fiber.Ctx) error {
	id, err := nodeParam(c)
	if err != nil {
		return badRequest(c, err)
	}
	tree := s.game.Tree()
	b, err := tree.Position(id)
	if err != nil {
		return notFound(c, err)
	}
	opts := kibitz.SVGOptions{
		SquareSize: c.QueryInt("size", 45),
		Flipped:    c.QueryBool("flipped", false),
	}
	if m, ok := tree.MoveAt(id); ok {
		opts.Highlight = &m
	}
	var buf bytes.Buffer
	if err := kibitz.RenderSVG(&buf, b, opts); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set(fiber.HeaderContentType, "image/svg+xml")
	return c.Send(buf.Bytes())
}

func (s *Server) StopAnalysis(c *fiber.Ctx) error {
	analyzer := s.analyzer.Load()
	if analyzer == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no analysis running"})
	}
	analyzer.Stop()
	return c.JSON(fiber.Map{"status": "stopping"})
}

// Analyze runs analyzer over the main line and streams every ply to the
// hub. It blocks until the analysis ends.
func (s *Server) Analyze(ctx context.Context, analyzer *kibitz.Analyzer) error {
	s.analyzer.Store(analyzer)
	analyzer.OnPly = func(r kibitz.PlyReport) {
		s.hub.Broadcast(MessageTypePly, plyView{
			Ply:         r.Ply,
			Node:        r.Node,
			Move:        r.Notation,
			Score:       r.Eval.Score.Centipawns(),
			Best:        r.Best,
			Loss:        r.Loss,
			Blunder:     r.Blunder,
			Alternative: r.Alternative,
		})
		if r.GraftErr != nil {
			log.Printf("ply %d: no alternative line: %v", r.Ply, r.GraftErr)
		}
	}
	reports, err := analyzer.Run(ctx, s.game.Tree())
	if err != nil && !errors.Is(err, kibitz.ErrAnalysisStopped) {
		s.hub.Broadcast(MessageTypeError, err.Error())
		return err
	}
	s.hub.Broadcast(MessageTypeDone, fiber.Map{"plies": len(reports)})
	return nil
}

func nodeParam(c *fiber.Ctx) (kibitz.NodeID, error) {
	raw := c.Params("id")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id < 0 {
		return kibitz.NoNode, fmt.Errorf("invalid node id %q", raw)
	}
	return kibitz.NodeID(id), nil
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func notFound(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
}
