package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kibitz "kibitz/pkg/kibitz"
)

type recordingConn struct {
	mu     sync.Mutex
	msgs   []Message
	fail   bool
	closed bool
}

func (c *recordingConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("gone")
	}
	c.msgs = append(c.msgs, v.(Message))
	return nil
}

func (c *recordingConn) Close() error {
	c.closed = true
	return nil
}

type levelEngine struct{}

func (levelEngine) Evaluate(ctx context.Context, fen string, moveTimeMs int) (kibitz.Evaluation, error) {
	return kibitz.Evaluation{Score: kibitz.Score{Kind: "cp", Value: 0}, BestMove: "a2a3", PV: []string{"a2a3"}}, nil
}

func newTestServer(t *testing.T) (*Server, *fiber.App) {
	t.Helper()
	game, err := kibitz.PlayNotation(kibitz.SAN{}, []string{"e4", "e5", "Nf3"})
	require.NoError(t, err)
	server := NewServer(game, NewHub())
	app := fiber.New()
	server.Routes(app)
	return server, app
}

func getJSON(t *testing.T, app *fiber.App, path string, v interface{}) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if v != nil {
		require.NoError(t, json.Unmarshal(body, v), string(body))
	}
	return resp.StatusCode
}

func TestGetGameAndNodes(t *testing.T) {
	_, app := newTestServer(t)

	var game gameView
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/api/game", &game))
	assert.Equal(t, []kibitz.NodeID{0, 1, 2, 3}, game.MainLine)
	assert.Equal(t, "*", game.Result)

	var node nodeView
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/api/node/3", &node))
	assert.Equal(t, "Nf3", node.Move)
	assert.Equal(t, "g1f3", node.Coordinate)
	assert.Equal(t, kibitz.NodeID(2), node.Previous)
	assert.Equal(t, kibitz.NoNode, node.Next)
	assert.Equal(t, 3, node.Depth)
	assert.Nil(t, node.Score)

	var line map[string][]kibitz.NodeID
	assert.Equal(t, fiber.StatusOK, getJSON(t, app, "/api/node/1/line", &line))
	assert.Equal(t, []kibitz.NodeID{1, 2, 3}, line["line"])

	assert.Equal(t, fiber.StatusNotFound, getJSON(t, app, "/api/node/42", nil))
	assert.Equal(t, fiber.StatusBadRequest, getJSON(t, app, "/api/node/abc", nil))
}

func TestGetSVG(t *testing.T) {
	_, app := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("GET", "/api/node/1/svg?size=20", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 64, strings.Count(string(body), "<rect"))
}

func TestStopWithoutAnalysis(t *testing.T) {
	_, app := newTestServer(t)
	resp, err := app.Test(httptest.NewRequest("POST", "/api/analysis/stop", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestAnalyzeBroadcastsAndScores(t *testing.T) {
	server, app := newTestServer(t)
	early := &recordingConn{}
	_, err := server.hub.Register(early)
	require.NoError(t, err)
	broken := &recordingConn{fail: true}
	_, err = server.hub.Register(broken)
	require.NoError(t, err)

	analyzer := &kibitz.Analyzer{Engine: levelEngine{}, Threshold: 200}
	require.NoError(t, server.Analyze(context.Background(), analyzer))

	require.Len(t, early.msgs, 4)
	assert.Equal(t, MessageTypePly, early.msgs[0].Type)
	assert.Equal(t, MessageTypeDone, early.msgs[3].Type)
	var ply plyView
	require.NoError(t, json.Unmarshal(early.msgs[2].Payload, &ply))
	assert.Equal(t, 3, ply.Ply)
	assert.Equal(t, "Nf3", ply.Move)
	assert.True(t, broken.closed)
	assert.Equal(t, 1, server.hub.Viewers())

	// a late viewer gets the history
	late := &recordingConn{}
	_, err = server.hub.Register(late)
	require.NoError(t, err)
	assert.Len(t, late.msgs, 4)

	var node nodeView
	getJSON(t, app, "/api/node/2", &node)
	require.NotNil(t, node.Score)
	assert.Equal(t, 0, *node.Score)
}
