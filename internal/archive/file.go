package archive

import (
	"context"
	"os"
	"path/filepath"
)

// FileArchiver writes each upload into a local directory.
type FileArchiver struct {
	Dir    string
	Prefix string
}

func NewFileArchiver(dir, prefix string) *FileArchiver {
	return &FileArchiver{Dir: dir, Prefix: prefix}
}

func (a *FileArchiver) Archive(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := filepath.Join(a.Dir, filepath.FromSlash(ObjectKey(a.Prefix, name, content)))
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, content, 0o600); err != nil {
		return "", err
	}
	return target, nil
}
