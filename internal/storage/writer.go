// Package storage owns the single active data file for a key-value
// engine instance: it appends encoded records, flushes them to the OS,
// and rolls over to a new file once the active file would grow past its
// configured size bound.
package storage

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aether-kv/aetherkv/internal/format"
)

// Index describes where an appended record landed: its byte offset and
// encoded length within its file.
type Index struct {
	FileID uint64
	Pos    uint64
	Len    uint64
}

// Writer owns the currently-active data file. It is safe for concurrent
// use; appends are serialized internally, matching the single-writer
// discipline the engine relies on.
type Writer struct {
	mu          sync.Mutex
	dir         string
	maxFileSize uint64
	syncOnWrite bool

	file    *os.File
	buf     *bufio.Writer
	fileID  uint64
	filePos uint64
}

// DataFilePath returns the path of the data file identified by id within
// dir.
func DataFilePath(dir string, id uint64) string {
	return filepath.Join(dir, strconv.FormatUint(id, 10))
}

// NewWriter opens (creating if absent) the data file identified by
// fileID for appending, with filePos set to the byte length already on
// disk for that file (as computed by recovery). maxFileSize is the
// rollover bound; syncOnWrite controls whether every append is followed
// by an fsync.
func NewWriter(dir string, fileID, filePos, maxFileSize uint64, syncOnWrite bool) (*Writer, error) {
	w := &Writer{
		dir:         dir,
		maxFileSize: maxFileSize,
		syncOnWrite: syncOnWrite,
		fileID:      fileID,
		filePos:     filePos,
	}
	if err := w.openFile(fileID); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) openFile(fileID uint64) error {
	path := DataFilePath(w.dir, fileID)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("storage: open data file %s: %w", path, err)
	}
	w.file = file
	w.buf = bufio.NewWriter(file)
	w.fileID = fileID
	slog.Debug("storage: active data file opened", "path", path, "file_id", fileID)
	return nil
}

// Append encodes rec, rolling over to a new file first if the append
// would push the active file past maxFileSize, then writes and flushes
// the bytes. It returns the file, offset, and length the record was
// written at.
func (w *Writer) Append(rec *format.Record) (Index, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	size := format.EncodedSize(rec)
	if w.filePos+size > w.maxFileSize {
		if err := w.roll(); err != nil {
			return Index{}, err
		}
	}

	data := format.Encode(rec)
	if _, err := w.buf.Write(data); err != nil {
		return Index{}, fmt.Errorf("storage: write record: %w", err)
	}
	if err := w.flush(); err != nil {
		return Index{}, err
	}

	pos := w.filePos
	w.filePos += size

	slog.Debug("storage: record appended",
		"file_id", w.fileID, "pos", pos, "len", size, "tombstone", rec.IsTombstone())

	return Index{FileID: w.fileID, Pos: pos, Len: size}, nil
}

// roll closes the current file (it becomes immutable once rolled) and
// opens fileid+1 as the new active file with filepos reset to zero.
// Callers must hold w.mu.
func (w *Writer) roll() error {
	slog.Info("storage: rolling over active data file", "old_file_id", w.fileID, "file_pos", w.filePos)

	if err := w.flush(); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("storage: close rolled-over file: %w", err)
	}

	if err := w.openFile(w.fileID + 1); err != nil {
		return err
	}
	w.filePos = 0
	return nil
}

// flush transfers buffered bytes to the OS and, when syncOnWrite is set,
// fsyncs the file. Durability beyond a user-space-to-kernel transfer is
// only guaranteed when syncOnWrite is true. Callers must hold w.mu.
func (w *Writer) flush() error {
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("storage: flush buffer: %w", err)
	}
	if w.syncOnWrite {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("storage: fsync: %w", err)
		}
	}
	return nil
}

// FileID returns the id of the currently-active data file.
func (w *Writer) FileID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fileID
}

// Close flushes and closes the active file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	if err := w.flush(); err != nil {
		slog.Error("storage: failed to flush before close", "error", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("storage: close active file: %w", err)
	}
	w.file = nil
	slog.Info("storage: active data file closed", "file_id", w.fileID)
	return nil
}
