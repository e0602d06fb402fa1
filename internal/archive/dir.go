package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/vksync/internal/filex"
	"github.com/dmitrijs2005/vksync/internal/models"
)

// DirArchive keeps payloads as files under a local directory, laid out like
// the S3 object keys.
type DirArchive struct {
	root string
}

func NewDirArchive(root string) (*DirArchive, error) {
	abs, err := filex.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	return &DirArchive{root: abs}, nil
}

// Path is where Store puts the payload for entity and key.
func (a *DirArchive) Path(entity string, key models.Key) string {
	return filepath.Join(a.root, filepath.FromSlash(ObjectKey(entity, key)))
}

func (a *DirArchive) Store(_ context.Context, entity string, key models.Key, payload []byte) error {
	if strings.ContainsAny(entity, `/\`) || entity == ".." {
		return fmt.Errorf("archive: bad entity name %q", entity)
	}

	path := a.Path(entity, key)
	if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, key, err)
	}
	if err := filex.WriteFileAtomic(path, payload); err != nil {
		return fmt.Errorf("archive %s %s: %w", entity, key, err)
	}
	return nil
}
