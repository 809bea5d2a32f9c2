// Package autosign renders filled signature fields onto a template PDF.
package autosign

import (
	"fmt"
	"io"
	"os"
	"sort"
)

type Renderer struct {
	cfg Config
}

func NewRenderer(cfg Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// sortFields orders by page then key so repeated renders stamp in the same order.
func sortFields(fields []FieldValue) []FieldValue {
	sorted := append([]FieldValue(nil), fields...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Page != sorted[j].Page {
			return sorted[i].Page < sorted[j].Page
		}
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// Render writes templatePath with every field stamped on it to outPath.
func (r *Renderer) Render(templatePath, outPath string, fields []FieldValue) error {
	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return err
		}
	}

	tmpDir, err := os.MkdirTemp(r.cfg.TmpDir, "render_*")
	if err != nil {
		return fmt.Errorf("failed to create render directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	current := templatePath
	for i, f := range sortFields(fields) {
		next := fmt.Sprintf("%s/step_%03d.pdf", tmpDir, i)
		if err := applyField(current, next, f); err != nil {
			return fmt.Errorf("failed to stamp field %s: %w", f.Key, err)
		}
		current = next
	}

	return copyFile(current, outPath)
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}
