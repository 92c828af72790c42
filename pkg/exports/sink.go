package exports

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/hdcn/ledenportaal/pkg/storage"
)

const csvContentType = "text/csv"

// Sink is where finished extract files land. Store returns the
// location the file can be retrieved from later; Open streams a stored
// file back by its name, and the caller closes the reader.
type Sink interface {
	Store(ctx context.Context, fileName string, content io.Reader) (location string, err error)
	Open(ctx context.Context, fileName string) (io.ReadCloser, error)
}

// S3Sink writes extracts to the object store under a key prefix. The
// prefix comes from the export parameters so operators can repoint it
// without a deploy.
type S3Sink struct {
	client *storage.S3Client
	prefix string
}

// NewS3Sink creates a sink backed by the given client. An empty prefix
// defaults to "exports".
func NewS3Sink(client *storage.S3Client, prefix string) *S3Sink {
	if prefix == "" {
		prefix = "exports"
	}
	return &S3Sink{client: client, prefix: strings.Trim(prefix, "/")}
}

func (s *S3Sink) Store(ctx context.Context, fileName string, content io.Reader) (string, error) {
	key := path.Join(s.prefix, fileName)
	if err := s.client.PutObject(ctx, key, content, csvContentType); err != nil {
		return "", fmt.Errorf("failed to store export %s: %w", fileName, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.client.Bucket(), key), nil
}

func (s *S3Sink) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	reader, err := s.client.GetObject(ctx, path.Join(s.prefix, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open export %s: %w", fileName, err)
	}
	return reader, nil
}

// FileSink writes extracts to a local directory. Used in development
// and single-machine setups where no object store is available.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink rooted at dir, creating it if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Store(ctx context.Context, fileName string, content io.Reader) (string, error) {
	target := filepath.Join(s.dir, fileName)

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}

	return target, nil
}

func (s *FileSink) Open(ctx context.Context, fileName string) (io.ReadCloser, error) {
	if filepath.Base(fileName) != fileName {
		return nil, fmt.Errorf("invalid export file name %q", fileName)
	}
	f, err := os.Open(filepath.Join(s.dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	return f, nil
}
