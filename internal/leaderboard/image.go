package leaderboard

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // background decoding
	"image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp" // background decoding
)

// Canvas geometry in pixels.
const (
	CanvasWidth  = 800
	HeaderHeight = 140
	RowHeight    = 56
	MinContent   = 200
	FooterHeight = 90

	marginX      = 48
	maxTitleRune = 30
)

var (
	colorBackground = color.RGBA{R: 0x1e, G: 0x1e, B: 0x2e, A: 0xff}
	colorOverlay    = color.RGBA{A: 0x99}
	colorStripe     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x12}
	colorDivider    = color.RGBA{R: 0x58, G: 0x5b, B: 0x70, A: 0xff}
	colorText       = color.RGBA{R: 0xcd, G: 0xd6, B: 0xf4, A: 0xff}
	colorMuted      = color.RGBA{R: 0xa6, G: 0xad, B: 0xc8, A: 0xff}
	colorGold       = color.RGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff}
	colorSilver     = color.RGBA{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff}
	colorBronze     = color.RGBA{R: 0xcd, G: 0x7f, B: 0x32, A: 0xff}
)

// RendererConfig names optional assets. Missing or unreadable assets fall
// back to the embedded Go fonts and a solid background.
type RendererConfig struct {
	FontPath       string
	BoldFontPath   string
	BackgroundPath string
}

// Renderer draws leaderboard images. Font faces are not safe for concurrent
// use, so Render is serialised.
type Renderer struct {
	mu         sync.Mutex
	title      font.Face
	subtitle   font.Face
	row        font.Face
	rank       font.Face
	footer     font.Face
	background image.Image
}

// NewRenderer loads fonts and the background, degrading on any failure.
func NewRenderer(cfg RendererConfig, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log := logger.With("component", "leaderboard_renderer")

	regular := loadFont(cfg.FontPath, goregular.TTF, log)
	bold := loadFont(cfg.BoldFontPath, gobold.TTF, log)

	return &Renderer{
		title:      newFace(bold, 34, log),
		subtitle:   newFace(regular, 20, log),
		row:        newFace(regular, 24, log),
		rank:       newFace(bold, 24, log),
		footer:     newFace(regular, 18, log),
		background: loadBackground(cfg.BackgroundPath, log),
	}
}

// loadFont parses the font at path, falling back to the embedded font. It
// returns nil only if both fail.
func loadFont(path string, embedded []byte, log *slog.Logger) *opentype.Font {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var f *opentype.Font
			if f, err = opentype.Parse(data); err == nil {
				return f
			}
		}
		log.Warn("Failed to load font, using embedded font", "path", path, "error", err)
	}
	f, err := opentype.Parse(embedded)
	if err != nil {
		log.Error("Failed to parse embedded font", "error", err)
		return nil
	}
	return f
}

func newFace(f *opentype.Font, size float64, log *slog.Logger) font.Face {
	if f == nil {
		return basicfont.Face7x13
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Error("Failed to create font face, using basic font", "size", size, "error", err)
		return basicfont.Face7x13
	}
	return face
}

func loadBackground(path string, log *slog.Logger) image.Image {
	if path == "" {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		log.Warn("Failed to open background, using solid color", "path", path, "error", err)
		return nil
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		log.Warn("Failed to decode background, using solid color", "path", path, "error", err)
		return nil
	}
	log.Info("Loaded leaderboard background", "path", path, "format", format)
	return img
}

// CanvasHeight is header + max(MinContent, rows*RowHeight) + footer.
func CanvasHeight(rows int) int {
	return HeaderHeight + max(MinContent, rows*RowHeight) + FooterHeight
}

// Render draws res as a PNG. Identical input yields identical bytes.
func (r *Renderer) Render(res *Result) ([]byte, error) {
	if res == nil {
		return nil, errors.New("cannot render nil leaderboard")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	height := CanvasHeight(len(res.Rows))
	canvas := image.NewRGBA(image.Rect(0, 0, CanvasWidth, height))
	r.paintBackground(canvas)

	drawCentered(canvas, r.title, truncate(res.Title, maxTitleRune), 62, colorText)
	subtitle := fmt.Sprintf("%s leaderboard · %d messages", res.Scope.Label(), res.Total)
	drawCentered(canvas, r.subtitle, subtitle, 102, colorMuted)
	fill(canvas, image.Rect(marginX, HeaderHeight-12, CanvasWidth-marginX, HeaderHeight-10), colorDivider)

	if len(res.Rows) == 0 {
		drawCentered(canvas, r.row, "No data yet", HeaderHeight+MinContent/2, colorMuted)
	}
	for i, row := range res.Rows {
		top := HeaderHeight + i*RowHeight
		if i%2 == 0 {
			fill(canvas, image.Rect(marginX/2, top, CanvasWidth-marginX/2, top+RowHeight), colorStripe)
		}
		baseline := centeredBaseline(r.row, top, RowHeight)

		drawText(canvas, r.rank, "#"+strconv.Itoa(row.Rank), marginX, baseline, rankColor(row.Rank))
		drawText(canvas, r.row, DisplayName(row), marginX+80, baseline, colorText)

		count := strconv.FormatInt(row.Count, 10)
		drawText(canvas, r.rank, count, CanvasWidth-marginX-measure(r.rank, count), baseline, colorText)
	}

	footerTop := height - FooterHeight
	fill(canvas, image.Rect(marginX, footerTop+8, CanvasWidth-marginX, footerTop+10), colorDivider)
	footer := "Keep chatting to climb the board"
	if res.Requester != nil {
		footer = fmt.Sprintf("Your rank: #%d · %d messages", res.Requester.Rank, res.Requester.Count)
	}
	drawCentered(canvas, r.footer, footer, centeredBaseline(r.footer, footerTop+10, FooterHeight-10), colorMuted)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode leaderboard image: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) paintBackground(canvas *image.RGBA) {
	if r.background == nil {
		fill(canvas, canvas.Bounds(), colorBackground)
		return
	}
	draw.CatmullRom.Scale(canvas, canvas.Bounds(), r.background, r.background.Bounds(), draw.Src, nil)
	fill(canvas, canvas.Bounds(), colorOverlay)
}

func rankColor(rank int) color.Color {
	switch rank {
	case 1:
		return colorGold
	case 2:
		return colorSilver
	case 3:
		return colorBronze
	default:
		return colorText
	}
}

// fill composites c over rect.
func fill(dst *image.RGBA, rect image.Rectangle, c color.Color) {
	draw.Draw(dst, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

func drawText(dst *image.RGBA, face font.Face, s string, x, baseline int, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func drawCentered(dst *image.RGBA, face font.Face, s string, baseline int, c color.Color) {
	x := (dst.Bounds().Dx() - measure(face, s)) / 2
	drawText(dst, face, s, max(x, 0), baseline, c)
}

// centeredBaseline vertically centres a line of face inside [top, top+height).
func centeredBaseline(face font.Face, top, height int) int {
	m := face.Metrics()
	return top + (height+m.Ascent.Ceil()-m.Descent.Ceil())/2
}
