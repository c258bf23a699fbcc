// Package blobstore stores uploaded patient documents on local disk and
// enforces the upload policy (size cap and file type allow-list).
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docbook/docbook/internal/platform/apperr"
)

var (
	ErrBlobNotFound    = apperr.NotFound("file not found")
	ErrFileTooLarge    = apperr.Validation("file exceeds maximum allowed size of 5MB")
	ErrInvalidFileType = apperr.Validation("error: file type not allowed, only images, PDFs and Word documents are accepted")
	ErrMissingFileName = apperr.Validation("no file uploaded")
)

// MaxFileSize is the maximum allowed upload size in bytes (5 MB).
const MaxFileSize = 5 * 1024 * 1024

// AllowedExtensions lists accepted file extensions, lower-cased.
var AllowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

// AllowedContentTypes lists accepted MIME types.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Validate checks a file against the upload policy. Both the extension and
// the declared content type must be on the allow-list.
func Validate(fileName, contentType string, size int64) error {
	if fileName == "" {
		return ErrMissingFileName
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	if !AllowedExtensions[strings.ToLower(filepath.Ext(fileName))] {
		return ErrInvalidFileType
	}
	if !AllowedContentTypes[NormalizeContentType(contentType)] {
		return ErrInvalidFileType
	}
	return nil
}

// NormalizeContentType strips parameters and lower-cases a MIME type.
func NormalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Object describes a stored file.
type Object struct {
	Name       string // stored file name
	PublicPath string // URL path the file is served at
	Size       int64
}

// Store persists uploaded content.
type Store interface {
	Put(ctx context.Context, fieldName, originalName string, content io.Reader) (*Object, error)
	Delete(ctx context.Context, name string) error
}

// storedName builds "<field>-<unix ms>-<short id><ext>".
func storedName(fieldName, originalName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("%s-%d-%s%s", fieldName, now.UnixMilli(), short, ext)
}

// readLimited reads at most MaxFileSize bytes, failing if there are more.
func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// DiskStore writes files into Dir and reports them under URLPrefix.
type DiskStore struct {
	Dir       string
	URLPrefix string
	now       func() time.Time
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{Dir: dir, URLPrefix: urlPrefix, now: time.Now}, nil
}

func (s *DiskStore) Put(_ context.Context, fieldName, originalName string, content io.Reader) (*Object, error) {
	if originalName == "" {
		return nil, ErrMissingFileName
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	name := storedName(fieldName, originalName, s.now())
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return nil, fmt.Errorf("write file: %w", err)
	}
	return &Object{Name: name, PublicPath: path.Join(s.URLPrefix, name), Size: int64(len(data))}, nil
}

func (s *DiskStore) Delete(_ context.Context, name string) error {
	if name == "" || name != filepath.Base(name) {
		return ErrBlobNotFound
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrBlobNotFound
	}
	return err
}

// InMemoryStore is a thread-safe Store for tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	URLPrefix string
	files     map[string][]byte
}

func NewInMemoryStore(urlPrefix string) *InMemoryStore {
	return &InMemoryStore{URLPrefix: urlPrefix, files: make(map[string][]byte)}
}

func (s *InMemoryStore) Put(_ context.Context, fieldName, originalName string, content io.Reader) (*Object, error) {
	if originalName == "" {
		return nil, ErrMissingFileName
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}
	name := storedName(fieldName, originalName, time.Now())

	s.mu.Lock()
	s.files[name] = data
	s.mu.Unlock()

	return &Object{Name: name, PublicPath: path.Join(s.URLPrefix, name), Size: int64(len(data))}, nil
}

func (s *InMemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[name]; !ok {
		return ErrBlobNotFound
	}
	delete(s.files, name)
	return nil
}

// Open returns the stored content, for assertions.
func (s *InMemoryStore) Open(name string) (io.Reader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[name]
	if !ok {
		return nil, false
	}
	return bytes.NewReader(data), true
}

// Len reports how many files are stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
