package autosign

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	defaultFontName  = "Helvetica"
	defaultFontColor = "#000000"
	maxFontPoints    = 24
	minFontPoints    = 6
)

// In pdfcpu, y is inverted. pos: tl anchors the watermark at the top-left corner
// of the page and the offset moves it down by y.
func positionDescription(x, y float64) string {
	return fmt.Sprintf("pos:tl, off:%.1f %.1f, rotation:0", x, -y)
}

// imageScale returns the factor that fits an image of w x h inside the box
// without distortion.
func imageScale(w, h int, boxW, boxH float64) float64 {
	if w <= 0 || h <= 0 {
		return 1
	}
	return math.Min(boxW/float64(w), boxH/float64(h))
}

// fontPoints sizes text to the box height, clamped to a readable range.
func fontPoints(boxH float64) int {
	points := int(math.Floor(boxH * 0.7))
	if points > maxFontPoints {
		return maxFontPoints
	}
	if points < minFontPoints {
		return minFontPoints
	}
	return points
}

func imageDescription(f FieldValue, w, h int) string {
	return fmt.Sprintf("%s, scale:%.4f abs", positionDescription(f.X, f.Y), imageScale(w, h, f.Width, f.Height))
}

func textDescription(f FieldValue) string {
	color := f.FontColor
	if color == "" {
		color = defaultFontColor
	}
	return fmt.Sprintf("font:%s, points:%d, fillcolor:%s, %s, scale:1 abs",
		defaultFontName, fontPoints(f.Height), color, positionDescription(f.X, f.Y))
}

func imageSize(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrUnsupportedImageType, err)
	}
	return cfg.Width, cfg.Height, nil
}

// applyField stamps one field onto inFile and writes the result to outFile.
func applyField(inFile, outFile string, f FieldValue) error {
	onTop := true

	switch f.Kind {
	case FieldKindImage:
		w, h, err := imageSize(f.ImagePath)
		if err != nil {
			return err
		}
		return api.AddImageWatermarksFile(inFile, outFile, f.selectedPages(), onTop, f.ImagePath, imageDescription(f, w, h), nil)
	case FieldKindText:
		// pdfcpu reads a literal "\n" as a line break, real ones are flattened
		text := strings.ReplaceAll(strings.TrimSpace(f.Text), "\n", " ")
		return api.AddTextWatermarksFile(inFile, outFile, f.selectedPages(), onTop, text, textDescription(f), nil)
	default:
		return fmt.Errorf("%w: %s", ErrInvalidField, f.Key)
	}
}
