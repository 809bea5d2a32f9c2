package autosign

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	// Directory where rendered documents are written
	OutputDir string
	// Directory for intermediate files, each render cleans up after itself
	TmpDir string
}

func NewDefaultConfig() *Config {
	return NewConfig(filepath.Join(os.TempDir(), "autosign"))
}

func NewConfig(baseDir string) *Config {
	cfg := Config{
		OutputDir: filepath.Join(baseDir, "render", "output"),
		TmpDir:    filepath.Join(baseDir, "render", "tmp"),
	}

	// 0755 mean owner can read, write and execute
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		fmt.Printf("Error creating output directory: %v\n", err)
	}
	if err := os.MkdirAll(cfg.TmpDir, 0755); err != nil {
		fmt.Printf("Error creating tmp directory: %v\n", err)
	}

	return &cfg
}
