package autosign

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFieldValidate(t *testing.T) {
	tests := []struct {
		name    string
		field   FieldValue
		wantErr error
	}{
		{"text", FieldValue{Key: "a", Page: 1, Width: 10, Height: 10, Kind: FieldKindText, Text: "Alice"}, nil},
		{"png", FieldValue{Key: "a", Page: 2, Width: 10, Height: 10, Kind: FieldKindImage, ImagePath: "sig.PNG"}, nil},
		{"page zero", FieldValue{Key: "a", Width: 10, Height: 10, Kind: FieldKindText, Text: "x"}, ErrInvalidField},
		{"no size", FieldValue{Key: "a", Page: 1, Kind: FieldKindText, Text: "x"}, ErrInvalidField},
		{"blank text", FieldValue{Key: "a", Page: 1, Width: 10, Height: 10, Kind: FieldKindText, Text: "  "}, ErrInvalidField},
		{"svg", FieldValue{Key: "a", Page: 1, Width: 10, Height: 10, Kind: FieldKindImage, ImagePath: "sig.svg"}, ErrUnsupportedImageType},
		{"unknown kind", FieldValue{Key: "a", Page: 1, Width: 10, Height: 10}, ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestImageScaleFitsBox(t *testing.T) {
	tests := []struct {
		w, h       int
		boxW, boxH float64
		want       float64
	}{
		{200, 100, 100, 100, 0.5},
		{100, 200, 100, 100, 0.5},
		{50, 20, 100, 40, 2},
		{0, 0, 100, 40, 1},
	}
	for _, tt := range tests {
		if got := imageScale(tt.w, tt.h, tt.boxW, tt.boxH); got != tt.want {
			t.Errorf("imageScale(%d, %d, %.0f, %.0f) = %v, want %v", tt.w, tt.h, tt.boxW, tt.boxH, got, tt.want)
		}
	}
}

func TestFontPointsClamp(t *testing.T) {
	if got := fontPoints(4); got != minFontPoints {
		t.Errorf("fontPoints(4) = %d", got)
	}
	if got := fontPoints(20); got != 14 {
		t.Errorf("fontPoints(20) = %d, want 14", got)
	}
	if got := fontPoints(200); got != maxFontPoints {
		t.Errorf("fontPoints(200) = %d", got)
	}
}

func TestDescriptionsInvertY(t *testing.T) {
	f := FieldValue{X: 100, Y: 250, Width: 100, Height: 20}

	if got := textDescription(f); !strings.Contains(got, "off:100.0 -250.0") || !strings.Contains(got, "fillcolor:#000000") {
		t.Errorf("textDescription() = %q", got)
	}
	if got := imageDescription(f, 200, 40); !strings.Contains(got, "pos:tl") || !strings.Contains(got, "scale:0.5000 abs") {
		t.Errorf("imageDescription() = %q", got)
	}
}

func TestSortFieldsIsStableByPageAndKey(t *testing.T) {
	got := sortFields([]FieldValue{
		{Key: "b", Page: 2},
		{Key: "z", Page: 1},
		{Key: "a", Page: 2},
	})
	var keys []string
	for _, f := range got {
		keys = append(keys, f.Key)
	}
	if strings.Join(keys, ",") != "z,a,b" {
		t.Errorf("order = %v", keys)
	}
}

func TestRenderRejectsInvalidFieldsBeforeTouchingFiles(t *testing.T) {
	r := NewRenderer(*NewConfig(t.TempDir()))
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := r.Render("missing.pdf", out, []FieldValue{{Key: "a", Page: 0, Width: 1, Height: 1, Kind: FieldKindText, Text: "x"}})
	if !errors.Is(err, ErrInvalidField) {
		t.Fatalf("Render() error = %v, want ErrInvalidField", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Errorf("output written for an invalid render")
	}
}

func TestGenerateQRCode(t *testing.T) {
	out := filepath.Join(t.TempDir(), "qr.png")
	if err := GenerateQRCode("https://sign.example.com/verify/doc-1", out, QRCodeSize); err != nil {
		t.Fatalf("GenerateQRCode() error = %v", err)
	}

	w, h, err := imageSize(out)
	if err != nil {
		t.Fatalf("imageSize() error = %v", err)
	}
	if w != QRCodeSize || h != QRCodeSize {
		t.Errorf("qr size = %dx%d, want %d", w, h, QRCodeSize)
	}
}
