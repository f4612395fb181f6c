package tutor

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

type PlayerMarker struct {
	Square nchess.Square
}

type RenderOptions struct {
	// Highlight marks the engine's last move.
	Highlight *MoveHighlight
	Player    *PlayerMarker
	// Arrow points out a suggested move.
	Arrow     *MoveHighlight
	Material  MaterialScore
	HUDHeader string
	HUDTurn   string
}

type BoardRenderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

type svgBoardRenderer struct {
	face font.Face
}

func NewSVGBoardRenderer() BoardRenderer {
	return &svgBoardRenderer{face: basicfont.Face7x13}
}

const (
	squareSize = 64
	boardSize  = squareSize * 8
	sideMargin = 28
	topMargin  = 64
	footHeight = 44
	panelPadX  = 14
	panelH     = 30
	panelR     = 8
)

var (
	lightSquare       = color.RGBA{233, 207, 163, 255}
	darkSquare        = color.RGBA{187, 136, 96, 255}
	backgroundColor   = color.RGBA{22, 24, 34, 255}
	engineMoveFill    = color.NRGBA{R: 148, G: 207, B: 255, A: 120}
	playerMarkerFill  = color.NRGBA{R: 255, G: 228, B: 120, A: 130}
	suggestionArrow   = color.NRGBA{R: 40, G: 196, B: 110, A: 190}
	hudPanelColor     = color.NRGBA{R: 36, G: 40, B: 58, A: 255}
	hudTextColor      = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	coordinateColor   = color.NRGBA{R: 170, G: 176, B: 200, A: 255}
	boardFiles        = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
	boardRanksTopDown = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
)

func (r *svgBoardRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := boardSize + sideMargin*2
	height := topMargin + boardSize + footHeight
	origin := image.Pt(sideMargin, topMargin)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	r.drawHUD(img, opts, origin)
	drawSquares(img, origin)
	if h := opts.Highlight; h != nil {
		drawSquareOverlay(img, h.From, origin, engineMoveFill)
		drawSquareOverlay(img, h.To, origin, engineMoveFill)
	}
	if p := opts.Player; p != nil {
		drawSquareOverlay(img, p.Square, origin, playerMarkerFill)
	}
	if err := drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	if a := opts.Arrow; a != nil {
		drawArrow(img, a.From, a.To, origin, suggestionArrow)
	}
	r.drawCoordinates(img, origin)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawSquares(dst *image.RGBA, origin image.Point) {
	for _, rank := range boardRanksTopDown {
		for _, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			clr := lightSquare
			if (int(file)+int(rank))%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
}

func drawPieces(dst *image.RGBA, board *nchess.Board, origin image.Point) error {
	for sq, piece := range board.SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		img, err := renderPieceImage(piece, squareSize)
		if err != nil {
			return err
		}
		imagedraw.Draw(dst, squareRect(sq, origin), img, image.Point{}, imagedraw.Over)
	}
	return nil
}

func (r *svgBoardRenderer) drawHUD(img *image.RGBA, opts RenderOptions, origin image.Point) {
	drawer := &font.Drawer{Dst: img, Face: r.face}

	header := strings.TrimSpace(opts.HUDHeader)
	if header == "" {
		header = "Player vs Tutor"
	}
	score := "0"
	if diff := opts.Material.Diff(); diff != 0 {
		score = fmt.Sprintf("%+d", diff)
	}

	top := (topMargin - panelH) / 2
	scoreW := drawer.MeasureString(score).Round() + panelPadX*2
	scoreRect := image.Rect(origin.X+boardSize-scoreW, top, origin.X+boardSize, top+panelH)

	maxHeaderW := boardSize - scoreW - 12
	header = truncateWithEllipsis(r.face, header, maxHeaderW-panelPadX*2)
	headerW := drawer.MeasureString(header).Round() + panelPadX*2
	headerRect := image.Rect(origin.X, top, origin.X+headerW, top+panelH)

	drawRoundedPanel(img, headerRect, panelR, hudPanelColor)
	drawRoundedPanel(img, scoreRect, panelR, hudPanelColor)
	drawCenteredString(drawer, headerRect, header, hudTextColor)
	drawCenteredString(drawer, scoreRect, score, hudTextColor)

	if turn := strings.TrimSpace(opts.HUDTurn); turn != "" {
		footTop := origin.Y + boardSize + 18
		turn = truncateWithEllipsis(r.face, turn, boardSize-panelPadX*2)
		turnW := drawer.MeasureString(turn).Round() + panelPadX*2
		left := origin.X + (boardSize-turnW)/2
		drawCenteredString(drawer, image.Rect(left, footTop, left+turnW, footTop+20), turn, hudTextColor)
	}
}

func (r *svgBoardRenderer) drawCoordinates(img *image.RGBA, origin image.Point) {
	drawer := &font.Drawer{Dst: img, Face: r.face, Src: image.NewUniform(coordinateColor)}
	ascent := r.face.Metrics().Ascent.Ceil()
	for row, rank := range boardRanksTopDown {
		y := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, rank.String(), origin.X-sideMargin/2, y)
	}
	for col, file := range boardFiles {
		x := origin.X + col*squareSize + squareSize/2
		drawCenteredText(drawer, file.String(), x, origin.Y+boardSize+ascent+2)
	}
}

func squareRect(sq nchess.Square, origin image.Point) image.Rectangle {
	x := origin.X + int(sq.File())*squareSize
	y := origin.Y + (7-int(sq.Rank()))*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareCenter(sq nchess.Square, origin image.Point) pointF {
	rect := squareRect(sq, origin)
	return pointF{X: float64(rect.Min.X + squareSize/2), Y: float64(rect.Min.Y + squareSize/2)}
}

func drawSquareOverlay(img *image.RGBA, sq nchess.Square, origin image.Point, clr color.Color) {
	imagedraw.Draw(img, squareRect(sq, origin), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawArrow(img *image.RGBA, from, to nchess.Square, origin image.Point, clr color.Color) {
	if from == to {
		return
	}
	start := squareCenter(from, origin)
	end := squareCenter(to, origin)
	dx, dy := end.X-start.X, end.Y-start.Y
	length := math.Hypot(dx, dy)
	dirX, dirY := dx/length, dy/length
	perpX, perpY := -dirY, dirX

	halfWidth := squareSize * 0.12
	headLength := squareSize * 0.42
	headHalf := squareSize * 0.26
	shaft := length - headLength
	if shaft < 0 {
		shaft = length * 0.5
	}
	base := pointF{X: start.X + dirX*shaft, Y: start.Y + dirY*shaft}

	offset := func(p pointF, w float64) pointF {
		return pointF{X: p.X + perpX*w, Y: p.Y + perpY*w}
	}
	fillTriangleF(img, offset(start, -halfWidth), offset(start, halfWidth), offset(base, halfWidth), clr)
	fillTriangleF(img, offset(start, -halfWidth), offset(base, halfWidth), offset(base, -halfWidth), clr)
	fillTriangleF(img, end, offset(base, -headHalf), offset(base, headHalf), clr)
}

func truncateWithEllipsis(face font.Face, text string, maxWidth int) string {
	drawer := font.Drawer{Face: face}
	if maxWidth <= 0 || drawer.MeasureString(text).Round() <= maxWidth {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if drawer.MeasureString(candidate).Round() <= maxWidth {
			return candidate
		}
	}
	return ""
}

func drawRoundedPanel(img *image.RGBA, rect image.Rectangle, radius int, clr color.Color) {
	if rect.Empty() {
		return
	}
	if limit := min(rect.Dx(), rect.Dy()) / 2; radius > limit {
		radius = limit
	}
	fill := image.NewUniform(clr)
	imagedraw.Draw(img, image.Rect(rect.Min.X+radius, rect.Min.Y, rect.Max.X-radius, rect.Max.Y), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Min.X, rect.Min.Y+radius, rect.Min.X+radius, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	imagedraw.Draw(img, image.Rect(rect.Max.X-radius, rect.Min.Y+radius, rect.Max.X, rect.Max.Y-radius), fill, image.Point{}, imagedraw.Over)
	corners := []image.Point{
		{rect.Min.X + radius, rect.Min.Y + radius},
		{rect.Max.X - radius - 1, rect.Min.Y + radius},
		{rect.Min.X + radius, rect.Max.Y - radius - 1},
		{rect.Max.X - radius - 1, rect.Max.Y - radius - 1},
	}
	for _, c := range corners {
		drawQuarterDisc(img, c, radius, rect, clr)
	}
}

// drawQuarterDisc fills the part of a disc around center that lies in the
// panel's corner region outside the already painted cross.
func drawQuarterDisc(img *image.RGBA, center image.Point, radius int, panel image.Rectangle, clr color.Color) {
	r2 := radius * radius
	for y := -radius; y <= radius; y++ {
		for x := -radius; x <= radius; x++ {
			p := image.Pt(center.X+x, center.Y+y)
			if x*x+y*y > r2 || !p.In(panel) {
				continue
			}
			if p.X >= panel.Min.X+radius && p.X < panel.Max.X-radius {
				continue
			}
			if p.Y >= panel.Min.Y+radius && p.Y < panel.Max.Y-radius {
				continue
			}
			blendPixel(img, p.X, p.Y, clr)
		}
	}
}

func drawCenteredString(drawer *font.Drawer, rect image.Rectangle, text string, clr color.Color) {
	if text == "" {
		return
	}
	metrics := drawer.Face.Metrics()
	x := rect.Min.X + (rect.Dx()-drawer.MeasureString(text).Round())/2
	baseline := rect.Min.Y + (rect.Dy()+metrics.Ascent.Ceil()-metrics.Descent.Ceil())/2
	drawer.Src = image.NewUniform(clr)
	drawer.Dot = fixed.P(max(x, rect.Min.X), baseline)
	drawer.DrawString(text)
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !image.Pt(x, y).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 0xffff - sa
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(dst.R)*0x101*inv/0xffff) >> 8),
		G: uint8((sg + uint32(dst.G)*0x101*inv/0xffff) >> 8),
		B: uint8((sb + uint32(dst.B)*0x101*inv/0xffff) >> 8),
		A: uint8((sa + uint32(dst.A)*0x101*inv/0xffff) >> 8),
	})
}

type pointF struct {
	X float64
	Y float64
}

func fillTriangleF(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func pointInTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	return alpha >= 0 && beta >= 0 && 1-alpha-beta >= 0
}
