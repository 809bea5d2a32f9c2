package autosign

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

type FieldKind int

const (
	FieldKindText FieldKind = iota + 1
	FieldKindImage
)

var (
	ErrInvalidField         = errors.New("autosign: invalid field")
	ErrUnsupportedImageType = errors.New("autosign: unsupported image type")
)

// FieldValue is one filled spot. Coordinates are PDF points from the top-left
// corner of the page, the same convention the editor uses.
type FieldValue struct {
	Key    string
	Page   uint
	X      float64
	Y      float64
	Width  float64
	Height float64
	Kind   FieldKind
	// Text fields
	Text      string
	FontColor string
	// Image fields, a png or jpeg on disk
	ImagePath string
}

func (f FieldValue) Validate() error {
	if f.Page < 1 {
		return fmt.Errorf("%w: %s: page must be at least 1", ErrInvalidField, f.Key)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: %s: width and height must be positive", ErrInvalidField, f.Key)
	}

	switch f.Kind {
	case FieldKindText:
		if strings.TrimSpace(f.Text) == "" {
			return fmt.Errorf("%w: %s: empty text", ErrInvalidField, f.Key)
		}
	case FieldKindImage:
		switch strings.ToLower(filepath.Ext(f.ImagePath)) {
		case ".png", ".jpg", ".jpeg":
		default:
			return fmt.Errorf("%w: %s", ErrUnsupportedImageType, f.ImagePath)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %d", ErrInvalidField, f.Key, f.Kind)
	}

	return nil
}

func (f FieldValue) selectedPages() []string {
	return []string{fmt.Sprintf("%d", f.Page)}
}
