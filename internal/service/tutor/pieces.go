package tutor

import (
	"bytes"
	"fmt"
	"image"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece silhouettes on a 45x45 canvas. {fill} and {stroke} are replaced per
// side before parsing.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="13" r="5"/>
<path d="M17 21 L28 21 L26.5 26 L30.5 35 L14.5 35 L18.5 26 Z"/>
<rect x="11" y="35" width="23" height="4" rx="1"/>`,
	nchess.Knight: `<path d="M14 35 C14 28 20 26 21 21 C18 22.5 15 24.5 12 23.5 C10 21.5 11 18.5 14 16.5 C17 13.5 19 10 22 9 L24 6 L26 10 C32 12 36 19 35 35 Z"/>
<circle cx="19" cy="14.5" r="1.3" fill="{stroke}"/>
<rect x="11" y="35" width="25" height="4" rx="1"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5"/>
<path d="M22.5 11 C16 15 14 21 17 26 L28 26 C31 21 29 15 22.5 11 Z"/>
<path d="M17 26 L28 26 L29.5 31 L15.5 31 Z"/>
<path d="M10 38 C14 36 18 35 22.5 33 C27 35 31 36 35 38 L35 40 L10 40 Z"/>`,
	nchess.Rook: `<path d="M11 9 L15 9 L15 12 L20 12 L20 9 L25 9 L25 12 L30 12 L30 9 L34 9 L34 16 L31 19 L31 31 L34 34 L34 36 L11 36 L11 34 L14 31 L14 19 L11 16 Z"/>
<rect x="9" y="36" width="27" height="4" rx="1"/>`,
	nchess.Queen: `<path d="M9 14 L13 30 L32 30 L36 14 L29 25 L27 11 L22.5 24 L18 11 L16 25 Z"/>
<circle cx="9" cy="12" r="2.2"/><circle cx="18" cy="9" r="2.2"/><circle cx="27" cy="9" r="2.2"/><circle cx="36" cy="12" r="2.2"/>
<path d="M13 30 L32 30 L33 35 L12 35 Z"/>
<rect x="11" y="35" width="23" height="4" rx="1"/>`,
	nchess.King: `<path d="M21.5 4 L23.5 4 L23.5 7 L26 7 L26 9 L23.5 9 L23.5 12 L21.5 12 L21.5 9 L19 9 L19 7 L21.5 7 Z"/>
<path d="M22.5 13 C17 13 16 18 22.5 25 C29 18 28 13 22.5 13 Z"/>
<path d="M11 32 C6 24 12 17 22.5 25 C33 17 39 24 34 32 Z"/>
<path d="M11 32 L34 32 L34 38 L11 38 Z"/>`,
}

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %v", piece)
	}
	fill, stroke := "#f8f8f8", "#1c1c1c"
	if piece.Color() == nchess.Black {
		fill, stroke = "#2b2b2b", "#0a0a0a"
	}
	body := strings.NewReplacer("{fill}", fill, "{stroke}", stroke).Replace(shape)
	doc := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">` +
		`<g fill="` + fill + `" stroke="` + stroke + `" stroke-width="1.5" stroke-linejoin="round">` +
		body + `</g></svg>`
	return []byte(doc), nil
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}
	pieceCacheMu.RLock()
	img, ok := pieceCache[key]
	pieceCacheMu.RUnlock()
	if ok {
		return img, nil
	}

	doc, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = rgba
	pieceCacheMu.Unlock()
	return rgba, nil
}
