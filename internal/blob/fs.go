package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const metaSuffix = ".meta.json"

// FSBucket stores objects as files under a root directory. Each object has
// a JSON sidecar holding its content type and metadata.
type FSBucket struct {
	root string
}

// NewFSBucket creates root if needed.
func NewFSBucket(root string) (*FSBucket, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("creating blob dir: %w", err)
	}
	return &FSBucket{root: root}, nil
}

// Root returns the bucket directory.
func (b *FSBucket) Root() string { return b.root }

// pathFor maps a slash-separated key to a file under root.
func (b *FSBucket) pathFor(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || strings.HasSuffix(clean, metaSuffix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(b.root, filepath.FromSlash(clean)), nil
}

// Put writes r to key. The file appears atomically.
func (b *FSBucket) Put(ctx context.Context, key string, r io.Reader, size int64, obj Object) error {
	p, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("creating object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp object: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing object %s: %w", key, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("writing object %s: wrote %d bytes, expected %d", key, n, size)
	}

	obj.Key = key
	obj.Size = n
	meta, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	if err := os.WriteFile(p+metaSuffix, meta, 0o640); err != nil {
		return fmt.Errorf("writing object metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("committing object %s: %w", key, err)
	}
	return nil
}

// Get opens key for reading.
func (b *FSBucket) Get(ctx context.Context, key string) (io.ReadCloser, Object, error) {
	p, err := b.pathFor(key)
	if err != nil {
		return nil, Object{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, Object{}, err
	}

	obj := Object{Key: key, Size: -1, ContentType: "application/octet-stream"}
	if data, err := os.ReadFile(p + metaSuffix); err == nil {
		_ = json.Unmarshal(data, &obj)
	}
	if info, err := f.Stat(); err == nil {
		obj.Size = info.Size()
	}
	return f, obj, nil
}

// Delete removes key. Deleting a missing key returns ErrNotFound.
func (b *FSBucket) Delete(ctx context.Context, key string) error {
	p, err := b.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return err
	}
	_ = os.Remove(p + metaSuffix)
	return nil
}
