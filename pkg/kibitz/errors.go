package kibitz

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrAmbiguousMove = errors.New("ambiguous move")
)

// IllegalMoveError reports a move that no piece can make, or one that was
// handed to the board in an unusable state.
type IllegalMoveError struct {
	Move   string
	Reason string
}

func (e *IllegalMoveError) Error() string {
	if e.Move == "" {
		return "illegal move: " + e.Reason
	}
	return fmt.Sprintf("illegal move %q: %s", e.Move, e.Reason)
}

func (e *IllegalMoveError) Is(target error) bool {
	return target == ErrIllegalMove
}

// AmbiguousMoveError reports a move that more than one piece can make.
type AmbiguousMoveError struct {
	Move       string
	Candidates []Square
}

func (e *AmbiguousMoveError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, sq := range e.Candidates {
		names[i] = sq.String()
	}
	return fmt.Sprintf("ambiguous move %q: candidates %s", e.Move, strings.Join(names, ","))
}

func (e *AmbiguousMoveError) Is(target error) bool {
	return target == ErrAmbiguousMove
}

// PlyError ties a failure to the ply (1-based) and text that caused it.
type PlyError struct {
	Ply      int
	Notation string
	Err      error
}

func (e *PlyError) Error() string {
	return fmt.Sprintf("ply %d (%s): %v", e.Ply, e.Notation, e.Err)
}

func (e *PlyError) Unwrap() error {
	return e.Err
}

// EngineError is a failure talking to the engine process, as opposed to a
// problem with the game itself.
type EngineError struct {
	Op  string
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}
