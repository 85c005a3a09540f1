// Package archive keeps a copy of uploaded images before they are moderated.
package archive

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/davidahmann/counterpoint/internal/config"
	"github.com/davidahmann/counterpoint/internal/digest"
)

// Archiver stores content and returns where it went.
type Archiver interface {
	Archive(ctx context.Context, name string, content []byte) (string, error)
}

// None discards everything.
type None struct{}

func (None) Archive(context.Context, string, []byte) (string, error) { return "", nil }

// ObjectKey names an archived object by content digest and base file name, so
// two uploads with the same name do not overwrite each other.
func ObjectKey(prefix, name string, content []byte) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	sum := digest.Hex(content)
	key := sum[:16] + "_" + base
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

func Open(cfg config.ArchiveConfig) (Archiver, error) {
	switch cfg.Driver {
	case "", "none":
		return None{}, nil
	case "file":
		return NewFileArchiver(cfg.Dir, cfg.Prefix), nil
	case "s3":
		return NewS3Archiver(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Driver)
	}
}
