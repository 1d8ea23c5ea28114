package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/Cheese-Othello/internal/othello"
)

//go:embed assets/discs/*.svg
var discFiles embed.FS

type discKey struct {
	color othello.Color
	size  int
}

var (
	discCache   = map[discKey]image.Image{}
	discCacheMu sync.RWMutex
)

// discImage rasterises the disc SVG for color at size x size, cached per pair.
func discImage(c othello.Color, size int) (image.Image, error) {
	key := discKey{color: c, size: size}
	discCacheMu.RLock()
	if img, ok := discCache[key]; ok {
		discCacheMu.RUnlock()
		return img, nil
	}
	discCacheMu.RUnlock()

	name := "assets/discs/black.svg"
	if c == othello.White {
		name = "assets/discs/white.svg"
	}
	data, err := discFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read disc asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse disc svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	discCacheMu.Lock()
	discCache[key] = img
	discCacheMu.Unlock()
	return img, nil
}
