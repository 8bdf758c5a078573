package kibitz

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// TagPairs are the bracketed header tags of a PGN game.
type TagPairs map[string]string

var rosterTags = []string{"Event", "Site", "Date", "Round", "White", "Black", "Result"}

// String renders the tags in PGN order: the seven-tag roster first, the
// remaining tags sorted by name.
func (t TagPairs) String() string {
	var sb strings.Builder
	for _, name := range rosterTags {
		if value, ok := t[name]; ok {
			fmt.Fprintf(&sb, "[%s %q]\n", name, value)
		}
	}
	rest := maps.Keys(t)
	slices.Sort(rest)
	for _, name := range rest {
		if slices.Contains(rosterTags, name) {
			continue
		}
		fmt.Fprintf(&sb, "[%s %q]\n", name, t[name])
	}
	return sb.String()
}

// Players is the player information a PGN game carries.
type Players struct {
	White    string
	WhiteElo int32
	Black    string
	BlackElo int32
}

func (t TagPairs) Players() Players {
	return Players{
		White:    t["White"],
		WhiteElo: parseInt32(t["WhiteElo"]),
		Black:    t["Black"],
		BlackElo: parseInt32(t["BlackElo"]),
	}
}

func parseInt32(raw string) int32 {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return int32(value)
}

// Record is one game as written in a PGN file.
type Record struct {
	Tags   TagPairs
	Moves  []string
	Result string
}

// StartBoard is the standard start, or the position of the FEN tag.
func (r Record) StartBoard() (Board, error) {
	if fen, ok := r.Tags["FEN"]; ok && fen != "" {
		return ParseFEN(fen)
	}
	return NewBoard(), nil
}

// Game replays the record.
func (r Record) Game(opts ...Option) (*Game, error) {
	start, err := r.StartBoard()
	if err != nil {
		return nil, err
	}
	src := NewNotationSource(SAN{}, r.Moves, start.Turn())
	all := append([]Option{WithTags(r.Tags), WithResult(r.Result)}, opts...)
	return Play(start, src, all...)
}

func readPGN(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return DecodePGN(data)
}

// DecodePGN returns the text of a PGN file. Files that are not UTF-8 are
// read as Windows-1252, which covers the Latin-1 files older databases
// export.
func DecodePGN(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		data = data[3:]
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	reader := transform.NewReader(bytes.NewReader(data), charmap.Windows1252.NewDecoder())
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(decoded) {
		return "", errors.New("failed to decode Windows-1252 PGN")
	}
	return string(decoded), nil
}

func isResultToken(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

// ParsePGN splits text into games. Comments, variations and numeric
// annotation glyphs are skipped; only the main line is kept.
func ParsePGN(text string) ([]Record, error) {
	var records []Record
	cur := Record{Tags: TagPairs{}}
	inMoves := false
	flush := func(result string) {
		cur.Result = result
		records = append(records, cur)
		cur = Record{Tags: TagPairs{}}
		inMoves = false
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '%' && (i == 0 || text[i-1] == '\n'):
			i = skipLine(text, i)
		case c == ';':
			i = skipLine(text, i)
		case c == '{':
			end := strings.IndexByte(text[i:], '}')
			if end < 0 {
				return records, errors.New("pgn: unterminated comment")
			}
			i += end + 1
		case c == '(':
			depth := 0
			for ; i < len(text); i++ {
				if text[i] == '(' {
					depth++
				} else if text[i] == ')' {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			if depth != 0 {
				return records, errors.New("pgn: unterminated variation")
			}
			i++
		case c == '[':
			if inMoves {
				flush("*")
			}
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				return records, errors.New("pgn: unterminated tag")
			}
			name, value, err := parseTag(text[i+1 : i+end])
			if err != nil {
				return records, err
			}
			cur.Tags[name] = value
			i += end + 1
		case isSpace(c):
			i++
		default:
			j := i
			for j < len(text) && !isSpace(text[j]) && !strings.ContainsRune("{;([)", rune(text[j])) {
				j++
			}
			tok := text[i:j]
			i = j
			if tok == "" {
				i++
				continue
			}
			if isResultToken(tok) {
				flush(tok)
				continue
			}
			if strings.HasPrefix(tok, "$") || tok[0] == '!' || tok[0] == '?' {
				continue
			}
			if move := stripMoveNumber(tok); move != "" {
				cur.Moves = append(cur.Moves, move)
				inMoves = true
			}
		}
	}
	if inMoves || len(cur.Tags) > 0 {
		result := "*"
		if r, ok := cur.Tags["Result"]; ok && r != "" {
			result = r
		}
		flush(result)
	}
	return records, nil
}

func skipLine(text string, i int) int {
	end := strings.IndexByte(text[i:], '\n')
	if end < 0 {
		return len(text)
	}
	return i + end + 1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// stripMoveNumber removes a leading "12." or "12..." from a token.
func stripMoveNumber(tok string) string {
	i := 0
	for i < len(tok) && tok[i] >= '0' && tok[i] <= '9' {
		i++
	}
	if i == 0 || i == len(tok) || tok[i] != '.' {
		if i == len(tok) {
			return ""
		}
		return tok
	}
	for i < len(tok) && tok[i] == '.' {
		i++
	}
	return tok[i:]
}

func parseTag(body string) (string, string, error) {
	body = strings.TrimSpace(body)
	sp := strings.IndexAny(body, " \t")
	if sp < 0 {
		return "", "", fmt.Errorf("pgn: invalid tag %q", body)
	}
	name := body[:sp]
	raw := strings.TrimSpace(body[sp:])
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return "", "", fmt.Errorf("pgn: invalid tag value %q", raw)
	}
	value := strings.ReplaceAll(raw[1:len(raw)-1], `\"`, `"`)
	value = strings.ReplaceAll(value, `\\`, `\`)
	return name, value, nil
}

// LoadPGN reads every game record of a PGN file.
func LoadPGN(path string) ([]Record, error) {
	text, err := readPGN(path)
	if err != nil {
		return nil, err
	}
	records, err := ParsePGN(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// LoadGamesFromPGN replays every game of a PGN file. It stops at the first
// game that fails to replay and reports its index.
func LoadGamesFromPGN(path string, opts ...Option) ([]*Game, error) {
	records, err := LoadPGN(path)
	if err != nil {
		return nil, err
	}
	games := make([]*Game, 0, len(records))
	for i, record := range records {
		game, err := record.Game(opts...)
		if err != nil {
			return games, fmt.Errorf("%s game %d: %w", path, i+1, err)
		}
		games = append(games, game)
	}
	return games, nil
}

func LoadPGNPlayers(path string) ([]Players, error) {
	records, err := LoadPGN(path)
	if err != nil {
		return nil, err
	}
	players := make([]Players, len(records))
	for i, record := range records {
		players[i] = record.Tags.Players()
	}
	return players, nil
}

func isPGN(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pgn")
}

func CollectPGN(root string) ([]string, error) {
	var files []string
	if err := WalkPGN(root, func(path string) error {
		files = append(files, path)
		return nil
	}); err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// WalkPGN calls fn for every .pgn file under root without collecting the
// paths first. fn may return filepath.SkipAll to stop early.
func WalkPGN(root string, fn func(path string) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isPGN(path) {
			return nil
		}
		return fn(path)
	})
}

func CountPGN(root string) (int, error) {
	count := 0
	err := WalkPGN(root, func(string) error {
		count++
		return nil
	})
	return count, err
}
