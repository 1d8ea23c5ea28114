package othello

import (
	"errors"
	"fmt"
	"strings"
)

// Size is the board edge length.
const Size = 8

// Cell is the content of one board square.
type Cell uint8

const (
	Empty Cell = iota
	Black
	White
)

// Color identifies a side. Only Black and White are valid colors.
type Color = Cell

func (c Cell) String() string {
	switch c {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "empty"
	}
}

// Opponent returns the other side; Empty maps to Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// ParseColor accepts "black"/"b" and "white"/"w".
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "black", "b":
		return Black, true
	case "white", "w":
		return White, true
	default:
		return Empty, false
	}
}

// Coord is a 0-based (row, col) position.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// InBounds reports whether c lies on the 8x8 board.
func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

var (
	ErrOutOfBounds     = errors.New("coordinate out of bounds")
	ErrCellOccupied    = errors.New("cell occupied")
	ErrNoFlipDirection = errors.New("move flips nothing")
	ErrInvalidColor    = errors.New("invalid color")
)

// directions covers the 4 orthogonal and 4 diagonal rays.
var directions = [8]Coord{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// Board is a fixed 8x8 grid. The zero value is an empty board; use NewBoard for the opening.
type Board struct {
	cells [Size][Size]Cell
}

// NewBoard returns a board in the standard opening position.
func NewBoard() *Board {
	b := &Board{}
	b.Reset()
	return b
}

// Reset restores the opening position.
func (b *Board) Reset() {
	b.cells = [Size][Size]Cell{}
	b.cells[3][3] = White
	b.cells[4][4] = White
	b.cells[3][4] = Black
	b.cells[4][3] = Black
}

// Clone returns an independent copy of the board.
func (b *Board) Clone() *Board {
	cp := *b
	return &cp
}

// At returns the cell at c, or Empty when c is out of bounds.
func (b *Board) At(c Coord) Cell {
	if !c.InBounds() {
		return Empty
	}
	return b.cells[c.Row][c.Col]
}

// Set writes a cell directly. Intended for fixtures; game play goes through ApplyMove.
func (b *Board) Set(c Coord, v Cell) {
	if c.InBounds() {
		b.cells[c.Row][c.Col] = v
	}
}

// Cells returns the grid in row-major order.
func (b *Board) Cells() []Cell {
	out := make([]Cell, 0, Size*Size)
	for r := 0; r < Size; r++ {
		out = append(out, b.cells[r][:]...)
	}
	return out
}

// flipsInDirection scans outward from c and returns the opponent run that would be
// captured, or nil when the ray leaves the board or hits Empty before a friendly disc.
func (b *Board) flipsInDirection(c Coord, d Coord, color Color) []Coord {
	opp := color.Opponent()
	var run []Coord
	cur := Coord{c.Row + d.Row, c.Col + d.Col}
	for cur.InBounds() {
		switch b.cells[cur.Row][cur.Col] {
		case opp:
			run = append(run, cur)
		case color:
			if len(run) == 0 {
				return nil
			}
			return run
		default:
			return nil
		}
		cur = Coord{cur.Row + d.Row, cur.Col + d.Col}
	}
	return nil
}

func (b *Board) hasFlip(c Coord, color Color) bool {
	for _, d := range directions {
		if len(b.flipsInDirection(c, d, color)) > 0 {
			return true
		}
	}
	return false
}

// checkMove reports why a move is illegal, or nil.
func (b *Board) checkMove(c Coord, color Color) error {
	if color != Black && color != White {
		return ErrInvalidColor
	}
	if !c.InBounds() {
		return ErrOutOfBounds
	}
	if b.cells[c.Row][c.Col] != Empty {
		return ErrCellOccupied
	}
	if !b.hasFlip(c, color) {
		return ErrNoFlipDirection
	}
	return nil
}

// CheckMove is IsLegal with the reason attached.
func (b *Board) CheckMove(c Coord, color Color) error { return b.checkMove(c, color) }

// IsLegal reports whether color may play at c.
func (b *Board) IsLegal(c Coord, color Color) bool { return b.checkMove(c, color) == nil }

// ValidMoves lists legal coordinates for color in row-major order.
func (b *Board) ValidMoves(color Color) []Coord {
	if color != Black && color != White {
		return nil
	}
	var out []Coord
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			c := Coord{r, col}
			if b.cells[r][col] == Empty && b.hasFlip(c, color) {
				out = append(out, c)
			}
		}
	}
	return out
}

// HasValidMove is ValidMoves without the allocation.
func (b *Board) HasValidMove(color Color) bool {
	for r := 0; r < Size; r++ {
		for col := 0; col < Size; col++ {
			if b.cells[r][col] == Empty && b.hasFlip(Coord{r, col}, color) {
				return true
			}
		}
	}
	return false
}

// ApplyMove places color at c and flips every captured run. All rays are evaluated against
// the pre-move board before anything is written. The board is untouched on error.
func (b *Board) ApplyMove(c Coord, color Color) ([]Coord, error) {
	if err := b.checkMove(c, color); err != nil {
		return nil, fmt.Errorf("apply %s for %s: %w", c, color, err)
	}
	var flipped []Coord
	for _, d := range directions {
		flipped = append(flipped, b.flipsInDirection(c, d, color)...)
	}
	b.cells[c.Row][c.Col] = color
	for _, f := range flipped {
		b.cells[f.Row][f.Col] = color
	}
	return flipped, nil
}

// Score returns exact disc counts.
func (b *Board) Score() (black, white int) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch b.cells[r][c] {
			case Black:
				black++
			case White:
				white++
			}
		}
	}
	return black, white
}

// IsTerminal is true when the board is full or neither side can move.
func (b *Board) IsTerminal() bool {
	black, white := b.Score()
	if black+white == Size*Size {
		return true
	}
	return !b.HasValidMove(Black) && !b.HasValidMove(White)
}

// String renders the grid with B/W/. per cell, one row per line.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch b.cells[r][c] {
			case Black:
				sb.WriteByte('B')
			case White:
				sb.WriteByte('W')
			default:
				sb.WriteByte('.')
			}
		}
		if r < Size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseBoard builds a board from the String format. Whitespace-only lines are ignored.
func ParseBoard(s string) (*Board, error) {
	var rows []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			rows = append(rows, line)
		}
	}
	if len(rows) != Size {
		return nil, fmt.Errorf("parse board: want %d rows, got %d", Size, len(rows))
	}
	b := &Board{}
	for r, line := range rows {
		if len(line) != Size {
			return nil, fmt.Errorf("parse board: row %d has %d cells", r, len(line))
		}
		for c := 0; c < Size; c++ {
			switch line[c] {
			case 'B', 'b':
				b.cells[r][c] = Black
			case 'W', 'w':
				b.cells[r][c] = White
			case '.', '-':
			default:
				return nil, fmt.Errorf("parse board: bad cell %q at (%d,%d)", line[c], r, c)
			}
		}
	}
	return b, nil
}
