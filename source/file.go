package source

import (
	"context"
	"fmt"
	"os"

	"github.com/sandeepkandula/objsync/sync"
)

// File is a Source producing one regular file, with an empty relative path.
// It pairs with a destination root naming a single object.
type File struct {
	path string
}

// NewFile returns a Source for the regular file at path.
func NewFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("source %q is not a regular file", path)
	}
	return &File{path: path}, nil
}

func (f *File) Walk(ctx context.Context, fn func(*sync.SourceObject) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(f.path)
	if err != nil {
		return err
	}
	return fn(fileObject(f.path, "", info))
}

// New returns a File source when path is a regular file and a Dir source
// otherwise.
func New(path string) (sync.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	if info.Mode().IsRegular() {
		return NewFile(path)
	}
	return NewDir(path)
}
