package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	maxUploadBytes int64 = 512 * 1024 * 1024
	// uploadPrefix is both the URL segment binaries are served under and the
	// directory component of every stored file_path.
	uploadPrefix = "uploads"
	maxNameTries = 100
)

var (
	ErrBlobNotFound = errors.New("assets: stored file not found")
	ErrInvalidName  = errors.New("assets: invalid file name")
	ErrTooLarge     = fmt.Errorf("assets: upload exceeds %d bytes", maxUploadBytes)
)

// Blob is an opened stored file.
type Blob struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	ModTime     time.Time
}

// BlobStore keeps uploaded binaries under flat, unique names.
type BlobStore interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, src io.Reader) (int64, error)
	Open(ctx context.Context, name string) (*Blob, error)
	Remove(ctx context.Context, name string) error
}

// FilePath is the file_path recorded for a stored name.
func FilePath(name string) string {
	return "./" + path.Join(uploadPrefix, name)
}

// NameFromFilePath reverses FilePath. It reports false for paths outside the
// upload prefix.
func NameFromFilePath(filePath string) (string, bool) {
	rel := strings.TrimPrefix(strings.TrimSpace(filePath), "./")
	rel = strings.TrimPrefix(rel, "/")
	if !strings.HasPrefix(rel, uploadPrefix+"/") {
		return "", false
	}
	name, err := sanitizeName(strings.TrimPrefix(rel, uploadPrefix+"/"))
	if err != nil {
		return "", false
	}
	return name, true
}

// Store saves src under a unique name derived from filename and returns the
// file_path to record.
func Store(ctx context.Context, blobs BlobStore, filename string, src io.Reader) (string, error) {
	name, err := uniqueName(ctx, blobs, filename)
	if err != nil {
		return "", err
	}
	written, err := blobs.Put(ctx, name, io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("assets: save file: %w", err)
	}
	if written > maxUploadBytes {
		_ = blobs.Remove(ctx, name)
		return "", ErrTooLarge
	}
	return FilePath(name), nil
}

// uniqueName tries the plain name, then <base>_<n><ext> for n up to
// maxNameTries, then a uuid suffix.
func uniqueName(ctx context.Context, blobs BlobStore, filename string) (string, error) {
	name, err := sanitizeName(filename)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxNameTries; i++ {
		taken, err := blobs.Exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("assets: check file name: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
	}
	return fmt.Sprintf("%s_%s%s", base, uuidChunk(), ext), nil
}

func sanitizeName(raw string) (string, error) {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/")))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "", ErrInvalidName
	}
	return name, nil
}

func uuidChunk() string {
	id := uuid.NewString()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// LocalStorage keeps binaries in a directory on disk.
type LocalStorage struct {
	baseDir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "./" + uploadPrefix
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("assets: ensure upload dir: %w", err)
	}
	return &LocalStorage{baseDir: abs}, nil
}

func (s *LocalStorage) BaseDir() string {
	if s == nil {
		return ""
	}
	return s.baseDir
}

func (s *LocalStorage) target(name string) (string, error) {
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	target := filepath.Join(s.baseDir, clean)
	if !strings.HasPrefix(target, s.baseDir+string(os.PathSeparator)) {
		return "", ErrInvalidName
	}
	return target, nil
}

func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	target, err := s.target(name)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStorage) Put(_ context.Context, name string, src io.Reader) (int64, error) {
	target, err := s.target(name)
	if err != nil {
		return 0, err
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(target)
		return written, err
	}
	return written, nil
}

func (s *LocalStorage) Open(_ context.Context, name string) (*Blob, error) {
	target, err := s.target(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if stat.IsDir() {
		f.Close()
		return nil, ErrBlobNotFound
	}
	return &Blob{Body: f, Size: stat.Size(), ModTime: stat.ModTime()}, nil
}

func (s *LocalStorage) Remove(_ context.Context, name string) error {
	target, err := s.target(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBlobNotFound
		}
		return err
	}
	return nil
}
