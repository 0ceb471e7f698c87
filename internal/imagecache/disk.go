package imagecache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/alnah/go-mdlatex/internal/fileutil"
)

// File permission constants.
const (
	dirPermissions  = 0o750
	filePermissions = 0o644
)

// Disk stores one file per key. File names are the SHA-256 of the key, so
// formulas with path separators or unusual characters are safe.
type Disk struct {
	dir    string
	logger *zap.Logger
}

// NewDisk creates a disk tier rooted at dir, creating the directory if needed.
func NewDisk(dir string, logger *zap.Logger) (*Disk, error) {
	if dir == "" {
		return nil, errors.New("disk cache directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, fmt.Errorf("creating disk cache directory: %w", err)
	}
	return &Disk{
		dir:    dir,
		logger: logger.With(zap.String("component", "disk_cache")),
	}, nil
}

// Get reads the file for key.
func (d *Disk) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(d.path(key)) // #nosec G304 -- name derived from hash
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("disk cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}
	return data, true
}

// Put writes the file for key atomically.
func (d *Disk) Put(key string, data []byte) {
	if len(data) == 0 {
		return
	}
	if err := fileutil.WriteFileAtomic(d.path(key), data, filePermissions); err != nil {
		d.logger.Warn("disk cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// ClearMemory is a no-op: the disk tier survives memory pressure.
func (d *Disk) ClearMemory() {}

// Dir returns the cache directory.
func (d *Disk) Dir() string {
	return d.dir
}

func (d *Disk) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(d.dir, hex.EncodeToString(sum[:])+".img")
}

var _ Cache = (*Disk)(nil)
