package kibitz

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MateScore is the centipawn value a forced mate is reported as.
const MateScore = 100000

// Engine manages a UCI engine process.
type Engine struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu     sync.Mutex
	closed bool
}

// Start launches an external UCI engine process.
func Start(ctx context.Context, path string, args ...string) (*Engine, error) {
	if path == "" {
		return nil, &EngineError{Op: "start", Err: errors.New("engine path is required")}
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = filepath.Dir(path)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &EngineError{Op: "stdin pipe", Err: err}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &EngineError{Op: "stdout pipe", Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &EngineError{Op: "stderr pipe", Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &EngineError{Op: "start", Err: err}
	}
	return &Engine{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// Reader returns a protocol reader for engine stdout.
func (e *Engine) Reader() *Reader {
	return NewReader(e.stdout)
}

func (e *Engine) Stderr() io.Reader {
	return e.stderr
}

// Send sends a single command line to the engine.
func (e *Engine) Send(line string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return &EngineError{Op: "send", Err: errors.New("engine is closed")}
	}
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := io.WriteString(e.stdin, line); err != nil {
		return &EngineError{Op: "send", Err: err}
	}
	return nil
}

// Close asks the engine to quit and kills it if it is still running after
// three seconds.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	_ = e.Send("quit")
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	done := make(chan error, 1)
	go func() { done <- e.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		_ = e.cmd.Process.Kill()
		return &EngineError{Op: "close", Err: errors.New("engine did not exit in time")}
	}
}

// Reader reads and parses UCI protocol lines.
type Reader struct {
	scanner *bufio.Scanner
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner}
}

// ParseLine converts a raw line into a protocol event.
func ParseLine(line string) (Event, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, errors.New("empty line")
	}
	fields := strings.Fields(line)
	switch fields[0] {
	case "id":
		if len(fields) < 3 {
			return Event{}, fmt.Errorf("invalid id: %q", line)
		}
		return Event{Type: EventID, Key: fields[1], Value: strings.Join(fields[2:], " ")}, nil
	case "uciok":
		return Event{Type: EventUCIOK}, nil
	case "readyok":
		return Event{Type: EventReadyOK}, nil
	case "bestmove":
		if len(fields) < 2 {
			return Event{}, fmt.Errorf("invalid bestmove: %q", line)
		}
		e := Event{Type: EventBestMove, Move: fields[1]}
		if e.Move == "(none)" || e.Move == "0000" {
			e.Move = ""
		}
		if len(fields) >= 4 && fields[2] == "ponder" {
			e.Ponder = fields[3]
		}
		return e, nil
	case "info":
		return Event{Type: EventInfo, Raw: line}, nil
	default:
		return Event{Type: EventUnknown, Raw: line}, nil
	}
}

// Next blocks until a line is available or EOF occurs.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		if strings.TrimSpace(r.scanner.Text()) == "" {
			continue
		}
		return ParseLine(r.scanner.Text())
	}
	if err := r.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// EventType represents a UCI protocol event type.
type EventType int

const (
	EventUnknown EventType = iota
	EventID
	EventUCIOK
	EventReadyOK
	EventInfo
	EventBestMove
)

// Event is a parsed UCI protocol line.
type Event struct {
	Type   EventType
	Key    string
	Value  string
	Move   string
	Ponder string
	Raw    string
}

// Score is an engine evaluation: centipawns ("cp"), moves to mate
// ("mate"), or "none" when the engine had nothing to search.
type Score struct {
	Kind  string
	Value int
}

// String returns a stable text representation for comments/logging.
func (s Score) String() string {
	switch s.Kind {
	case "cp":
		return fmt.Sprintf("cp %d", s.Value)
	case "mate":
		return fmt.Sprintf("mate %d", s.Value)
	case "none":
		return "none"
	}
	return "unknown"
}

// Centipawns folds mate scores into ±MateScore.
func (s Score) Centipawns() int {
	if s.Kind != "mate" {
		return s.Value
	}
	if s.Value < 0 {
		return -MateScore
	}
	return MateScore
}

// Evaluation is the result of one search.
type Evaluation struct {
	Score    Score
	BestMove string
	PV       []string
	Depth    int
}

// Session manages a UCI engine session and event stream.
type Session struct {
	engine *Engine
	reader *Reader
	events chan Event
	errCh  chan error
}

// StartSession launches a UCI engine and starts a reader goroutine.
func StartSession(ctx context.Context, path string, args ...string) (*Session, error) {
	engine, err := Start(ctx, path, args...)
	if err != nil {
		return nil, err
	}
	reader := engine.Reader()
	events := make(chan Event, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		for {
			event, err := reader.Next()
			if err != nil {
				select {
				case errCh <- err:
				default:
				}
				return
			}
			events <- event
		}
	}()
	return &Session{engine: engine, reader: reader, events: events, errCh: errCh}, nil
}

func (s *Session) Close() error {
	if s == nil || s.engine == nil {
		return nil
	}
	return s.engine.Close()
}

// Stderr returns the engine's stderr reader for diagnostics.
func (s *Session) Stderr() io.Reader {
	if s == nil || s.engine == nil {
		return nil
	}
	return s.engine.Stderr()
}

// Handshake runs the UCI handshake and sends the given options between
// uciok and isready.
func (s *Session) Handshake(ctx context.Context, options map[string]string) error {
	if err := s.engine.Send("uci"); err != nil {
		return err
	}
	if _, err := s.waitForEvent(ctx, EventUCIOK); err != nil {
		return err
	}
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.engine.Send(fmt.Sprintf("setoption name %s value %s", name, options[name])); err != nil {
			return err
		}
	}
	if err := s.engine.Send("ucinewgame"); err != nil {
		return err
	}
	if err := s.engine.Send("isready"); err != nil {
		return err
	}
	_, err := s.waitForEvent(ctx, EventReadyOK)
	return err
}

// Evaluate runs a bounded search of the FEN position. The score is from
// White's point of view. An engine with no legal move to search answers
// with a "none" score and an empty line.
func (s *Session) Evaluate(ctx context.Context, fen string, moveTimeMs int) (Evaluation, error) {
	if err := s.engine.Send("position fen " + fen); err != nil {
		return Evaluation{}, err
	}
	if moveTimeMs <= 0 {
		moveTimeMs = 1
	}
	if err := s.engine.Send(fmt.Sprintf("go movetime %d", moveTimeMs)); err != nil {
		return Evaluation{}, err
	}
	turn := "w"
	if fields := strings.Fields(fen); len(fields) >= 2 {
		turn = fields[1]
	}

	var eval Evaluation
	haveScore := false
	for {
		event, err := s.nextEvent(ctx)
		if err != nil {
			return Evaluation{}, err
		}
		switch event.Type {
		case EventInfo:
			if info, ok := parseInfo(event.Raw); ok {
				eval.Score = info.Score
				eval.Depth = info.Depth
				if len(info.PV) > 0 {
					eval.PV = info.PV
				}
				haveScore = true
			}
		case EventBestMove:
			eval.BestMove = event.Move
			if event.Move == "" {
				return Evaluation{Score: Score{Kind: "none"}}, nil
			}
			if !haveScore {
				return Evaluation{BestMove: event.Move}, errors.New("no score in engine output")
			}
			if len(eval.PV) == 0 || eval.PV[0] != event.Move {
				eval.PV = []string{event.Move}
			}
			if turn == "b" {
				eval.Score = flipScore(eval.Score)
			}
			return eval, nil
		}
	}
}

func flipScore(score Score) Score {
	score.Value = -score.Value
	return score
}

func (s *Session) waitForEvent(ctx context.Context, want EventType) (Event, error) {
	for {
		event, err := s.nextEvent(ctx)
		if err != nil {
			return Event{}, err
		}
		if event.Type == want {
			return event, nil
		}
	}
}

func (s *Session) nextEvent(ctx context.Context) (Event, error) {
	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case err := <-s.errCh:
		if err == nil {
			err = errors.New("engine stdout closed")
		}
		return Event{}, &EngineError{Op: "read", Err: err}
	case event, ok := <-s.events:
		if !ok {
			return Event{}, &EngineError{Op: "read", Err: errors.New("engine stdout closed")}
		}
		return event, nil
	}
}

type infoLine struct {
	Score Score
	Depth int
	PV    []string
}

// parseInfo reads the score, depth and principal variation of an info
// line. Lines without a score, and bound-only scores, are ignored.
func parseInfo(line string) (infoLine, bool) {
	fields := strings.Fields(line)
	var info infoLine
	haveScore := false
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "depth":
			if i+1 < len(fields) {
				info.Depth, _ = strconv.Atoi(fields[i+1])
				i++
			}
		case "score":
			if i+2 >= len(fields) {
				return infoLine{}, false
			}
			kind := fields[i+1]
			value, err := strconv.Atoi(fields[i+2])
			if err != nil || (kind != "cp" && kind != "mate") {
				return infoLine{}, false
			}
			if i+3 < len(fields) && (fields[i+3] == "lowerbound" || fields[i+3] == "upperbound") {
				return infoLine{}, false
			}
			info.Score = Score{Kind: kind, Value: value}
			haveScore = true
			i += 2
		case "pv":
			info.PV = append([]string(nil), fields[i+1:]...)
			i = len(fields)
		case "string":
			i = len(fields)
		}
	}
	return info, haveScore
}
