package logdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aether-kv/aetherkv/internal/format"
	"github.com/aether-kv/aetherkv/internal/storage"
)

func writeDataFile(t *testing.T, dir string, fileID uint64, records ...*format.Record) []storage.Index {
	t.Helper()
	path := storage.DataFilePath(dir, fileID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	defer file.Close()

	var indexes []storage.Index
	var pos uint64
	for _, rec := range records {
		data := format.Encode(rec)
		_, err := file.Write(data)
		require.NoError(t, err)
		indexes = append(indexes, storage.Index{FileID: fileID, Pos: pos, Len: uint64(len(data))})
		pos += uint64(len(data))
	}
	return indexes
}

func TestLogDirReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := &format.Record{Tstamp: 7, Key: []byte("key"), Value: []byte("value")}
	indexes := writeDataFile(t, dir, 0, rec)

	ld, err := New(dir, 0)
	require.NoError(t, err)
	defer ld.Close()

	got, err := ld.Read(indexes[0].FileID, indexes[0].Pos, indexes[0].Len)
	require.NoError(t, err)
	assert.Equal(t, rec.Key, got.Key)
	assert.Equal(t, rec.Value, got.Value)
	assert.Equal(t, rec.Tstamp, got.Tstamp)
}

func TestLogDirReusesCachedHandle(t *testing.T) {
	dir := t.TempDir()
	recA := &format.Record{Tstamp: 1, Key: []byte("a"), Value: []byte("va")}
	recB := &format.Record{Tstamp: 2, Key: []byte("b"), Value: []byte("vb")}
	idx := writeDataFile(t, dir, 0, recA, recB)

	ld, err := New(dir, 0)
	require.NoError(t, err)
	defer ld.Close()

	_, err = ld.Read(idx[0].FileID, idx[0].Pos, idx[0].Len)
	require.NoError(t, err)
	assert.Equal(t, 1, ld.Len())

	_, err = ld.Read(idx[1].FileID, idx[1].Pos, idx[1].Len)
	require.NoError(t, err)
	assert.Equal(t, 1, ld.Len(), "reading a second record from the same file must not open a second handle")
}

func TestLogDirEvictsBeyondCapacity(t *testing.T) {
	dir := t.TempDir()
	const capacity = 4
	const fileCount = 10

	entries := make([]storage.Index, 0, fileCount)
	for i := uint64(0); i < fileCount; i++ {
		rec := &format.Record{Tstamp: int64(i), Key: []byte("k"), Value: []byte("v")}
		idx := writeDataFile(t, dir, i, rec)
		entries = append(entries, idx[0])
	}

	ld, err := New(dir, capacity)
	require.NoError(t, err)
	defer ld.Close()

	for _, idx := range entries {
		_, err := ld.Read(idx.FileID, idx.Pos, idx.Len)
		require.NoError(t, err)
		assert.LessOrEqual(t, ld.Len(), capacity)
	}
	assert.Equal(t, capacity, ld.Len())
}

func TestLogDirReadMissingFile(t *testing.T) {
	dir := t.TempDir()
	ld, err := New(dir, 0)
	require.NoError(t, err)
	defer ld.Close()

	_, err = ld.Read(999, 0, 10)
	assert.Error(t, err)
}

func TestLogDirClose(t *testing.T) {
	dir := t.TempDir()
	rec := &format.Record{Tstamp: 1, Key: []byte("k"), Value: []byte("v")}
	idx := writeDataFile(t, dir, 0, rec)

	ld, err := New(dir, 0)
	require.NoError(t, err)

	_, err = ld.Read(idx[0].FileID, idx[0].Pos, idx[0].Len)
	require.NoError(t, err)
	require.NoError(t, ld.Close())
	assert.Equal(t, 0, ld.Len())
}

func TestDataFilePathNaming(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "7"), storage.DataFilePath(dir, 7))
}
