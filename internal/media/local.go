package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
)

const (
	maxNameLength   = 120
	defaultFilename = "upload"
)

// LocalStore keeps media in a directory that is served publicly under Prefix.
type LocalStore struct {
	dir     string
	prefix  string
	maxSize int64
	now     func() time.Time
}

// NewLocalStore creates a store rooted at dir.
// prefix is the public URL prefix of dir (e.g. "/uploads/").
// maxSize <= 0 disables the size check.
func NewLocalStore(dir, prefix string, maxSize int64) *LocalStore {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &LocalStore{
		dir:     dir,
		prefix:  prefix,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Dir returns the directory holding stored files.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Prefix returns the public reference prefix.
func (s *LocalStore) Prefix() string {
	return s.prefix
}

// Save writes body under a fresh name and returns prefix + name.
// The name is a ULID (submission time plus randomness) followed by the
// sanitized original filename, so concurrent uploads never collide.
func (s *LocalStore) Save(ctx context.Context, filename string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := ObjectName(s.now(), filename)

	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	reader := body
	if s.maxSize > 0 {
		reader = io.LimitReader(body, s.maxSize+1)
	}

	written, err := io.Copy(tmp, reader)
	if err != nil {
		cleanup()
		return "", fmt.Errorf("write media: %w", err)
	}
	if s.maxSize > 0 && written > s.maxSize {
		cleanup()
		return "", ErrTooLarge
	}

	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("sync media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close media: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish media: %w", err)
	}

	return s.prefix + name, nil
}

// Delete removes the file behind ref.
func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// Open returns a reader for the file behind ref.
func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open media: %w", err)
	}
	return f, nil
}

// Object describes one stored file.
type Object struct {
	Ref     string
	Size    int64
	ModTime time.Time
}

// List returns every published file. Partial uploads are skipped.
// A missing directory yields an empty list.
func (s *LocalStore) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	objects := make([]Object, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat media: %w", err)
		}
		objects = append(objects, Object{
			Ref:     s.prefix + entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return objects, nil
}

// Ping checks that the upload directory exists and is writable.
func (s *LocalStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("upload dir not writable: %w", err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

// IsManaged reports whether ref is a single file name under the prefix.
func (s *LocalStore) IsManaged(ref string) bool {
	_, err := s.resolve(ref)
	return err == nil
}

// resolve maps a reference to a path inside dir, refusing anything that
// could escape it.
func (s *LocalStore) resolve(ref string) (string, error) {
	if !strings.HasPrefix(ref, s.prefix) {
		return "", ErrNotManaged
	}
	name := strings.TrimPrefix(ref, s.prefix)
	if name == "" || name != path.Base(name) || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", ErrNotManaged
	}
	return filepath.Join(s.dir, name), nil
}

// ObjectName builds the stored name for an upload submitted at t.
func ObjectName(t time.Time, original string) string {
	id := ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy())
	return id.String() + "-" + SanitizeFilename(original)
}

// SanitizeFilename reduces a client supplied name to a safe base name.
func SanitizeFilename(name string) string {
	// Clients may send full paths; keep only the last element.
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimLeft(b.String(), ".")
	if cleaned == "" {
		return defaultFilename
	}
	if len(cleaned) > maxNameLength {
		ext := path.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:maxNameLength-len(ext)] + ext
	}
	return cleaned
}
