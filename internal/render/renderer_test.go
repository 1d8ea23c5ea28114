package render

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"

	"github.com/park285/Cheese-Othello/internal/othello"
)

func luminance(r, g, b, _ uint32) uint32 { return (r*299 + g*587 + b*114) / 1000 >> 8 }

func TestRenderOpeningPNG(t *testing.T) {
	r := NewPNGRenderer(64)
	b := othello.NewBoard()
	last := othello.Coord{Row: 2, Col: 3}
	raw, err := r.RenderPNG(context.Background(), b, Options{
		Header:     "Room ABC234",
		Status:     "black to move",
		Last:       &last,
		ValidMoves: b.ValidMoves(othello.Black),
	})
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w, h := img.Bounds().Dx(), img.Bounds().Dy(); w != 64*8+56 || h != 64*8+92 {
		t.Fatalf("size %dx%d", w, h)
	}
	center := func(c othello.Coord) (int, int) { return 28 + c.Col*64 + 32, 64 + c.Row*64 + 32 }

	x, y := center(othello.Coord{Row: 3, Col: 3})
	if l := luminance(img.At(x, y).RGBA()); l < 180 {
		t.Fatalf("white disc at (3,3) too dark: %d", l)
	}
	x, y = center(othello.Coord{Row: 3, Col: 4})
	if l := luminance(img.At(x, y).RGBA()); l > 100 {
		t.Fatalf("black disc at (3,4) too bright: %d", l)
	}
}

func TestRenderErrors(t *testing.T) {
	r := NewPNGRenderer(0)
	if _, err := r.RenderPNG(context.Background(), nil, Options{}); !errors.Is(err, ErrNilBoard) {
		t.Fatalf("nil board: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.RenderPNG(ctx, othello.NewBoard(), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled ctx: %v", err)
	}
}

func TestDiscImageCached(t *testing.T) {
	a, err := discImage(othello.Black, 40)
	if err != nil {
		t.Fatalf("discImage: %v", err)
	}
	b, _ := discImage(othello.Black, 40)
	if a != b {
		t.Fatalf("expected cached image")
	}
}

func TestTruncateWithEllipsis(t *testing.T) {
	d := truncateWithEllipsis(nil, "  abc ", 10)
	if d != "abc" {
		t.Fatalf("nil face: %q", d)
	}
}
