package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// Local reads objects from <root>/<bucket>/<key>.
type Local struct {
	root   string
	logger logger.ILogger
}

// NewLocal creates a fetcher rooted at root.
func NewLocal(root string, log logger.ILogger) *Local {
	return &Local{
		root:   filepath.Clean(root),
		logger: log.SubLogger("LocalFetcher"),
	}
}

// Fetch reads the file backing bucket/key. A bucket must name one directory
// under the root and a key must stay inside its bucket.
func (f *Local) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bucketDir := filepath.Join(f.root, bucket)
	if !within(f.root, bucketDir) {
		return nil, fmt.Errorf("bucket path escapes root: bucket=%s", bucket)
	}
	path := filepath.Join(bucketDir, filepath.FromSlash(key))
	if !within(bucketDir, path) {
		return nil, fmt.Errorf("object path escapes bucket: bucket=%s, key=%s", bucket, key)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	f.logger.Debugf("fetched object: path=%s, bytes=%d", path, len(data))
	return data, nil
}

// within reports whether path lies strictly below dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
