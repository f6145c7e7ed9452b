// Package source enumerates local directory trees as sync source objects.
package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sandeepkandula/objsync/sync"
)

// Dir is a Source walking a local directory. Directories are emitted as
// containers before their children; the root itself has an empty relative
// path.
type Dir struct {
	root string
}

// NewDir returns a Source for the directory at root.
func NewDir(root string) (*Dir, error) {
	if err := validateSrc(root); err != nil {
		return nil, err
	}
	return &Dir{root: root}, nil
}

func (d *Dir) Walk(ctx context.Context, fn func(*sync.SourceObject) error) error {
	return filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel) // object paths use forward slashes
		if rel == "." {
			rel = ""
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		switch {
		case info.IsDir():
			return fn(&sync.SourceObject{
				RelativePath: rel,
				Container:    true,
				Metadata:     &sync.GenericMetadata{Sys: sync.SystemMetadata{MTime: info.ModTime()}},
			})
		case info.Mode().IsRegular():
			return fn(fileObject(path, rel, info))
		default:
			slog.Debug("source", "op", "SKIPPED", "path", rel, "mode", info.Mode().String())
			return nil
		}
	})
}

func fileObject(path, rel string, info fs.FileInfo) *sync.SourceObject {
	return &sync.SourceObject{
		RelativePath: rel,
		Size:         info.Size(),
		Content: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
		Metadata: &sync.GenericMetadata{
			Sys: sync.SystemMetadata{
				MTime:       info.ModTime(),
				ContentType: contentType(path),
			},
		},
	}
}

func contentType(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		slog.Warn("source: detect content type", "path", path, "error", err)
		return "application/octet-stream"
	}
	return mtype.String()
}

func validateSrc(src string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %q is not a directory", src)
	}
	return nil
}
