package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Othello/internal/othello"
)

// Options decorate a board snapshot.
type Options struct {
	Header     string
	Status     string
	Last       *othello.Coord
	Flipped    []othello.Coord
	ValidMoves []othello.Coord
}

type Renderer interface {
	RenderPNG(ctx context.Context, board *othello.Board, opts Options) ([]byte, error)
}

type pngRenderer struct {
	cellSize int
}

// NewPNGRenderer returns a renderer drawing cellSize-pixel cells; values below 24 use 64.
func NewPNGRenderer(cellSize int) Renderer {
	if cellSize < 24 {
		cellSize = 64
	}
	return &pngRenderer{cellSize: cellSize}
}

var (
	feltColor      = color.RGBA{R: 24, G: 112, B: 72, A: 255}
	feltAltColor   = color.RGBA{R: 28, G: 120, B: 78, A: 255}
	gridColor      = color.RGBA{R: 10, G: 60, B: 36, A: 255}
	backdropColor  = color.RGBA{R: 18, G: 20, B: 30, A: 255}
	hudPanelColor  = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudShadowColor = color.NRGBA{A: 50}
	hudTextColor   = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordColor     = color.NRGBA{R: 160, G: 200, B: 180, A: 255}
	hintColor      = color.NRGBA{R: 255, G: 255, B: 255, A: 70}
	lastMoveColor  = color.NRGBA{R: 255, G: 228, B: 120, A: 110}
	flippedColor   = color.NRGBA{R: 148, G: 207, B: 255, A: 70}
)

var ErrNilBoard = errors.New("board is nil")

func (r *pngRenderer) RenderPNG(ctx context.Context, board *othello.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, ErrNilBoard
	}
	const (
		sideMargin   = 28
		topMargin    = 64
		bottomMargin = 28
		panelHeight  = 28
		panelRadius  = 10
		panelPadding = 14
	)
	cell := r.cellSize
	boardPx := cell * othello.Size
	origin := image.Pt(sideMargin, topMargin)
	boardRect := image.Rect(origin.X, origin.Y, origin.X+boardPx, origin.Y+boardPx)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, boardPx+sideMargin*2, boardPx+topMargin+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backdropColor), image.Point{}, imagedraw.Src)

	drawCells(img, cell, origin)
	for _, c := range opts.Flipped {
		overlayCell(img, c, cell, origin, flippedColor)
	}
	if opts.Last != nil {
		overlayCell(img, *opts.Last, cell, origin, lastMoveColor)
	}
	if err := drawDiscs(img, board, cell, origin); err != nil {
		return nil, err
	}
	for _, c := range opts.ValidMoves {
		center := image.Pt(origin.X+c.Col*cell+cell/2, origin.Y+c.Row*cell+cell/2)
		drawDisc(img, center, cell/8, hintColor)
	}
	drawCoordinates(img, cell, origin)

	black, white := board.Score()
	drawer := &font.Drawer{Dst: img, Face: basicfont.Face7x13}
	header := strings.TrimSpace(opts.Header)
	if header == "" {
		header = "Othello"
	}
	score := fmt.Sprintf("B %d - W %d", black, white)

	top := boardRect.Min.Y - 16 - panelHeight
	headerRect := image.Rect(boardRect.Min.X, top, boardRect.Min.X+measure(drawer, header)+panelPadding*2, top+panelHeight)
	if headerRect.Max.X > boardRect.Max.X-120 {
		headerRect.Max.X = boardRect.Max.X - 120
	}
	scoreRect := image.Rect(boardRect.Max.X-measure(drawer, score)-panelPadding*2, top, boardRect.Max.X, top+panelHeight)
	for _, rc := range []image.Rectangle{headerRect, scoreRect} {
		drawRoundedPanel(img, rc.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
		drawRoundedPanel(img, rc, panelRadius, hudPanelColor)
	}
	header = truncateWithEllipsis(basicfont.Face7x13, header, headerRect.Dx()-panelPadding*2)
	if s := strings.TrimSpace(opts.Status); s != "" {
		header = truncateWithEllipsis(basicfont.Face7x13, header+" - "+s, headerRect.Dx()-panelPadding*2)
	}
	drawCenteredString(drawer, headerRect, header, hudTextColor)
	drawCenteredString(drawer, scoreRect, score, hudTextColor)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawCells(dst *image.RGBA, cell int, origin image.Point) {
	for r := 0; r < othello.Size; r++ {
		for c := 0; c < othello.Size; c++ {
			clr := feltColor
			if (r+c)%2 == 1 {
				clr = feltAltColor
			}
			imagedraw.Draw(dst, cellRect(othello.Coord{Row: r, Col: c}, cell, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
	for i := 0; i <= othello.Size; i++ {
		x := origin.X + i*cell
		y := origin.Y + i*cell
		imagedraw.Draw(dst, image.Rect(x-1, origin.Y, x+1, origin.Y+cell*othello.Size), image.NewUniform(gridColor), image.Point{}, imagedraw.Src)
		imagedraw.Draw(dst, image.Rect(origin.X, y-1, origin.X+cell*othello.Size, y+1), image.NewUniform(gridColor), image.Point{}, imagedraw.Src)
	}
}

func drawDiscs(dst *image.RGBA, board *othello.Board, cell int, origin image.Point) error {
	inset := cell / 10
	for r := 0; r < othello.Size; r++ {
		for c := 0; c < othello.Size; c++ {
			at := othello.Coord{Row: r, Col: c}
			v := board.At(at)
			if v == othello.Empty {
				continue
			}
			disc, err := discImage(v, cell-inset*2)
			if err != nil {
				return err
			}
			rect := cellRect(at, cell, origin).Inset(inset)
			imagedraw.Draw(dst, rect, disc, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func drawCoordinates(dst *image.RGBA, cell int, origin image.Point) {
	drawer := &font.Drawer{Dst: dst, Face: basicfont.Face7x13, Src: image.NewUniform(coordColor)}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	for i := 0; i < othello.Size; i++ {
		label := strconv.Itoa(i)
		center := origin.X + i*cell + cell/2
		drawCenteredText(drawer, label, center, origin.Y+cell*othello.Size+ascent+6)
		drawCenteredText(drawer, label, origin.X-12, origin.Y+i*cell+cell/2+ascent/2)
	}
}

func overlayCell(dst *image.RGBA, c othello.Coord, cell int, origin image.Point, clr color.Color) {
	if !c.InBounds() {
		return
	}
	imagedraw.Draw(dst, cellRect(c, cell, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func cellRect(c othello.Coord, cell int, origin image.Point) image.Rectangle {
	x := origin.X + c.Col*cell
	y := origin.Y + c.Row*cell
	return image.Rect(x, y, x+cell, y+cell)
}

func measure(d *font.Drawer, s string) int { return d.MeasureString(s).Round() }

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	text = strings.TrimSpace(text)
	if drawer == nil || text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	x := rect.Min.X + (rect.Dx()-drawer.MeasureString(text).Round())/2
	if x < rect.Min.X {
		x = rect.Min.X
	}
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(x, baseline)
	drawer.DrawString(text)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	text = strings.TrimSpace(text)
	if text == "" || maxWidth <= 0 || face == nil {
		return text
	}
	d := font.Drawer{Face: face}
	if d.MeasureString(text).Round() <= maxWidth {
		return text
	}
	const ellipsis = "..."
	if d.MeasureString(ellipsis).Round() > maxWidth {
		return ""
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		if s := string(runes) + ellipsis; d.MeasureString(s).Round() <= maxWidth {
			return s
		}
	}
	return ellipsis
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if img == nil || rect.Empty() {
		return
	}
	if m := min(rect.Dx(), rect.Dy()) / 2; radius > m {
		radius = m
	}
	fill := image.NewUniform(clr)
	if radius <= 0 {
		imagedraw.Draw(img, rect, fill, image.Point{}, imagedraw.Over)
		return
	}
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	for _, c := range []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	} {
		drawQuarterDisc(img, c, radius, rect, clr)
	}
}

// drawQuarterDisc fills the part of a disc outside the panel's straight strips but inside rect.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, rect image.Rectangle, clr color.Color) {
	inner := image.Rect(rect.Min.X+radius, rect.Min.Y+radius, rect.Max.X-radius, rect.Max.Y-radius)
	strips := []image.Rectangle{
		image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius),
	}
	rr := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y > rr {
				continue
			}
			p := image.Pt(center.X+x, center.Y+y)
			if !p.In(rect) || p.In(inner) || p.In(strips[0]) || p.In(strips[1]) {
				continue
			}
			blendPixel(img, p.X, p.Y, clr)
		}
	}
}

func drawDisc(img *image.RGBA, center image.Point, radius int, clr color.Color) {
	if radius <= 0 {
		blendPixel(img, center.X, center.Y, clr)
		return
	}
	rr := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			if x*x+y*y <= rr {
				blendPixel(img, center.X+x, center.Y+y, clr)
			}
		}
	}
}

// blendPixel composites clr over the pixel at (x, y) using straight alpha.
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	blend := func(s uint32, d uint8) uint8 {
		return uint8((s + uint32(d)*0x101*inv/0xffff) >> 8)
	}
	img.SetRGBA(x, y, color.RGBA{
		R: blend(sr, dst.R),
		G: blend(sg, dst.G),
		B: blend(sb, dst.B),
		A: blend(sa, dst.A),
	})
}
