package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
)

// readMapFile is the loader's fetcher for local map files.
func readMapFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.FromSlash(path))
}

// atlasInfo is the handle stored for a resolved tileset image.
type atlasInfo struct {
	Width, Height int
	Format        string
}

// resolveAtlas reads only the image header. A missing file is reported as
// absent rather than as an error.
func resolveAtlas(ctx context.Context, path string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.FromSlash(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return atlasInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}
