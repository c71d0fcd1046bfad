// Package engine provides the core key-value storage engine implementation.
// It manages the in-memory key directory (keydir), the bounded reader cache
// (logdir), and the active-file writer, and coordinates recovery of the
// keydir from the on-disk log when the engine is opened.
package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aether-kv/aetherkv/internal/config"
	"github.com/aether-kv/aetherkv/internal/format"
	"github.com/aether-kv/aetherkv/internal/keydir"
	"github.com/aether-kv/aetherkv/internal/logdir"
	"github.com/aether-kv/aetherkv/internal/pathutil"
	"github.com/aether-kv/aetherkv/internal/storage"
)

// Kv is a handle onto a key-value store rooted at a single data directory.
// Multiple Kv handles may share the same underlying writer and keydir (see
// Clone); each handle owns its own logdir, since a LogDir is not itself
// safe for concurrent use. Data files are append-only: once the writer
// rolls past a file, its bytes are never modified again.
type Kv struct {
	dir     string
	writer  *storage.Writer
	keydir  *keydir.Keydir
	logdir  *logdir.LogDir
	writeMu *sync.Mutex
	isClone bool

	readerCacheSize int
}

// Open creates dataDir if it does not exist, replays every data file found
// in it to rebuild the keydir, and returns a Kv ready to serve Get, Set,
// and Del. An empty dataDir falls back to cfg.DataDir; a nil cfg falls
// back to config.Default().
func Open(dataDir string, cfg *config.Config) (*Kv, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	dir := dataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	dir = pathutil.Normalize(dir)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, ioErr("open", fmt.Errorf("create data dir %s: %w", dir, err))
	}

	slog.Info("engine: opening store", "dir", dir)

	fileIDMax, kd, err := recoverKeydir(dir)
	if err != nil {
		return nil, ioErr("open", err)
	}

	filePos, err := activeFileSize(dir, fileIDMax)
	if err != nil {
		return nil, ioErr("open", err)
	}

	w, err := storage.NewWriter(dir, fileIDMax, filePos, cfg.MaxFileSize, cfg.SyncOnWrite)
	if err != nil {
		return nil, ioErr("open", err)
	}

	ld, err := logdir.New(dir, cfg.ReaderCacheSize)
	if err != nil {
		return nil, ioErr("open", err)
	}

	slog.Info("engine: store opened", "dir", dir, "keys", kd.Len(), "active_file_id", fileIDMax)

	return &Kv{
		dir:             dir,
		writer:          w,
		keydir:          kd,
		logdir:          ld,
		writeMu:         &sync.Mutex{},
		readerCacheSize: cfg.ReaderCacheSize,
	}, nil
}

// Get returns the current value for key, or a nil value with a nil error
// if the key is absent or has been deleted.
func (kv *Kv) Get(key string) ([]byte, error) {
	entry, ok := kv.keydir.Get(key)
	if !ok {
		return nil, nil
	}

	rec, err := kv.logdir.Read(entry.FileID, entry.Pos, entry.Len)
	if err != nil {
		if errors.Is(err, format.ErrCorrupt) || errors.Is(err, format.ErrShortRead) {
			return nil, corruptErr("get", err)
		}
		return nil, ioErr("get", err)
	}
	if rec.IsTombstone() {
		return nil, invariantErr("get", fmt.Errorf("locator for key %q resolves to a tombstone", key))
	}

	slog.Debug("engine: get", "key", key, "file_id", entry.FileID, "pos", entry.Pos)
	return rec.Value, nil
}

// Set writes key/value as a new record at the end of the active file and
// installs its locator in the keydir, overwriting any prior locator for
// key. A nil value is treated as an empty value, never as a tombstone —
// only Del produces tombstones.
func (kv *Kv) Set(key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	rec := &format.Record{
		Tstamp: time.Now().Unix(),
		Key:    []byte(key),
		Value:  value,
	}

	kv.writeMu.Lock()
	defer kv.writeMu.Unlock()

	idx, err := kv.writer.Append(rec)
	if err != nil {
		return ioErr("set", err)
	}

	kv.keydir.Put(key, keydir.Entry{
		FileID: idx.FileID,
		Pos:    idx.Pos,
		Len:    idx.Len,
		Tstamp: rec.Tstamp,
	})

	slog.Debug("engine: set", "key", key, "file_id", idx.FileID, "pos", idx.Pos, "len", idx.Len)
	return nil
}

// Del removes key by appending a tombstone record and clearing its keydir
// entry. It reports whether the key was present beforehand; deleting an
// absent key is a no-op that returns false, not an error.
func (kv *Kv) Del(key string) (bool, error) {
	if _, ok := kv.keydir.Get(key); !ok {
		return false, nil
	}

	rec := &format.Record{
		Tstamp: time.Now().Unix(),
		Key:    []byte(key),
		Value:  nil,
	}

	kv.writeMu.Lock()
	defer kv.writeMu.Unlock()

	if _, err := kv.writer.Append(rec); err != nil {
		return false, ioErr("del", err)
	}

	existed := kv.keydir.Delete(key)
	slog.Debug("engine: del", "key", key, "existed", existed)
	return existed, nil
}

// Clone returns a new handle sharing this Kv's writer, keydir, and write
// lock, but owning its own logdir. Clones are how multiple goroutines or
// connections obtain independent read paths without contending on a
// single LogDir's internal cache.
func (kv *Kv) Clone() (*Kv, error) {
	ld, err := logdir.New(kv.dir, kv.readerCacheSize)
	if err != nil {
		return nil, ioErr("clone", err)
	}
	return &Kv{
		dir:             kv.dir,
		writer:          kv.writer,
		keydir:          kv.keydir,
		logdir:          ld,
		writeMu:         kv.writeMu,
		isClone:         true,
		readerCacheSize: kv.readerCacheSize,
	}, nil
}

// Close closes this handle's logdir. On the handle returned by Open it
// also flushes and closes the shared writer; on a handle obtained via
// Clone it leaves the writer open, since sibling handles still use it.
func (kv *Kv) Close() error {
	if err := kv.logdir.Close(); err != nil {
		slog.Warn("engine: error closing logdir", "error", err)
	}
	if kv.isClone {
		return nil
	}
	if err := kv.writer.Close(); err != nil {
		return ioErr("close", err)
	}
	slog.Info("engine: store closed", "dir", kv.dir, "keys", kv.keydir.Len())
	return nil
}

// Len returns the number of live keys currently tracked by the keydir.
func (kv *Kv) Len() int {
	return kv.keydir.Len()
}

// recoverKeydir scans every numerically-named data file in dir, in
// ascending file-id order, rebuilding a keydir from the records found.
// It returns the highest file-id seen (0 if dir contains no data files
// yet), which becomes the active file on return.
func recoverKeydir(dir string) (uint64, *keydir.Keydir, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, nil, fmt.Errorf("engine: read data dir %s: %w", dir, err)
	}

	var fileIDs []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, err := strconv.ParseUint(e.Name(), 10, 64)
		if err != nil {
			continue
		}
		fileIDs = append(fileIDs, id)
	}
	sort.Slice(fileIDs, func(i, j int) bool { return fileIDs[i] < fileIDs[j] })

	kd := keydir.New()
	var fileIDMax uint64
	for _, id := range fileIDs {
		if id > fileIDMax {
			fileIDMax = id
		}
		if err := recoverFile(dir, id, kd); err != nil {
			return 0, nil, err
		}
	}
	return fileIDMax, kd, nil
}

// recoverFile replays a single data file's records into kd, stopping (not
// failing) at the first truncated or corrupt trailing record — the mark
// of a write that was interrupted mid-append.
func recoverFile(dir string, fileID uint64, kd *keydir.Keydir) error {
	path := storage.DataFilePath(dir, fileID)
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("engine: open data file %s: %w", path, err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	var offset uint64
	count := 0

	for {
		header := make([]byte, format.HeaderSize)
		if _, err := io.ReadFull(reader, header); err != nil {
			if err != io.EOF {
				slog.Warn("engine: truncated record header during recovery, stopping scan",
					"file_id", fileID, "offset", offset)
			}
			break
		}

		keyLen, valueLen, hasValue, err := format.DecodeHeader(header)
		if err != nil {
			slog.Warn("engine: unreadable header during recovery, stopping scan",
				"file_id", fileID, "offset", offset, "error", err)
			break
		}

		bodyLen := int(keyLen)
		if hasValue {
			bodyLen += int(valueLen)
		}
		body := make([]byte, bodyLen)
		if _, err := io.ReadFull(reader, body); err != nil {
			slog.Warn("engine: truncated record body during recovery, stopping scan",
				"file_id", fileID, "offset", offset)
			break
		}

		full := make([]byte, 0, len(header)+len(body))
		full = append(full, header...)
		full = append(full, body...)

		rec, err := format.Decode(full)
		if err != nil {
			slog.Warn("engine: corrupt record during recovery, stopping scan",
				"file_id", fileID, "offset", offset, "error", err)
			break
		}

		recLen := uint64(len(full))
		key := string(rec.Key)
		if rec.IsTombstone() {
			kd.Delete(key)
		} else {
			kd.Put(key, keydir.Entry{FileID: fileID, Pos: offset, Len: recLen, Tstamp: rec.Tstamp})
		}
		offset += recLen
		count++
	}

	slog.Info("engine: recovered data file", "file_id", fileID, "path", filepath.Base(path), "records", count)
	return nil
}

// activeFileSize returns the byte length already on disk for the active
// file, so the writer resumes appending at the true end of file rather
// than at the offset just past the last record recovery could decode —
// any dangling garbage from an interrupted write is left in place, never
// overwritten.
func activeFileSize(dir string, fileID uint64) (uint64, error) {
	path := storage.DataFilePath(dir, fileID)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("engine: stat active file %s: %w", path, err)
	}
	return uint64(info.Size()), nil
}
