package exports

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink_Store(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "nightly")
	sink, err := NewFileSink(dir)
	require.NoError(t, err)

	location, err := sink.Store(context.Background(), "address-list-utrecht.csv", strings.NewReader("member_number,name\n2041,Jan\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "address-list-utrecht.csv"), location)

	content, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "member_number,name\n2041,Jan\n", string(content))
}

func TestFileSink_OverwritesExisting(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Store(context.Background(), "dump.csv", strings.NewReader("old"))
	require.NoError(t, err)

	location, err := sink.Store(context.Background(), "dump.csv", strings.NewReader("new"))
	require.NoError(t, err)

	content, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestFileSink_Open(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Store(context.Background(), "dump.csv", strings.NewReader("member_number\n2041\n"))
	require.NoError(t, err)

	reader, err := sink.Open(context.Background(), "dump.csv")
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "member_number\n2041\n", string(content))

	_, err = sink.Open(context.Background(), "missing.csv")
	require.Error(t, err)
}

func TestFileSink_Open_RejectsPathTraversal(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Open(context.Background(), "../../../etc/passwd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid export file name")
}

func TestNewFileSink_DirectoryBlocked(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := NewFileSink(filepath.Join(blocker, "exports"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create export directory")
}

func TestNewS3Sink_Prefix(t *testing.T) {
	assert.Equal(t, "exports", NewS3Sink(nil, "").prefix)
	assert.Equal(t, "archief/ledenlijsten", NewS3Sink(nil, "/archief/ledenlijsten/").prefix)
}
