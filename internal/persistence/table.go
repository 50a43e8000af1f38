// Package persistence stores records as one JSON object per line. Creates
// append a line; edits and deletes rewrite the whole file through a
// temporary file that replaces the original in one rename.
package persistence

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Record is implemented by every type stored in a Table.
type Record interface {
	RecordID() int64
	Validate() error
}

// Table is a JSON-lines file of records of one kind. It holds no records
// in memory; every read goes back to the file.
type Table[T Record] struct {
	path    string
	logger  *zap.Logger
	skipped atomic.Int64
}

// NewTable returns a table stored at path. The file and its directory are
// created on first write.
func NewTable[T Record](path string, logger *zap.Logger) *Table[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Table[T]{path: path, logger: logger.With(zap.String("table", filepath.Base(path)))}
}

// Path returns the backing file.
func (t *Table[T]) Path() string { return t.path }

// Skipped returns how many malformed lines reads have stepped over since the
// table was opened.
func (t *Table[T]) Skipped() int64 { return t.skipped.Load() }

// Append writes rec as a new line at the end of the file.
func (t *Table[T]) Append(ctx context.Context, rec T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var line bytes.Buffer
	encoder := json.NewEncoder(&line)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(rec); err != nil {
		return apperrors.NewStorageError("encode record", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.path), dirPerm); err != nil {
		return apperrors.NewStorageError("create data directory", err)
	}

	file, err := os.OpenFile(t.path, os.O_RDWR|os.O_APPEND|os.O_CREATE, filePerm)
	if err != nil {
		return apperrors.NewStorageError("open records file", err)
	}
	defer file.Close()

	// A torn final line from an earlier crash must not swallow this record.
	needsNewline, err := endsWithoutNewline(file)
	if err != nil {
		return apperrors.NewStorageError("inspect records file", err)
	}
	var buf bytes.Buffer
	if needsNewline {
		buf.WriteByte('\n')
	}
	buf.Write(line.Bytes())

	if _, err := file.Write(buf.Bytes()); err != nil {
		return apperrors.NewStorageError("append record", err)
	}
	if err := file.Sync(); err != nil {
		return apperrors.NewStorageError("sync records file", err)
	}
	return nil
}

// All lazily yields every readable record in file order. Blank lines are
// ignored; lines that do not decode or validate are logged and skipped. An
// I/O failure is yielded once as a storage error and ends the sequence. A
// missing file yields nothing.
func (t *Table[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		file, err := os.Open(t.path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(zero, apperrors.NewStorageError("open records file", err))
			return
		}
		defer file.Close()

		reader := bufio.NewReader(file)
		lineNo := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			line, readErr := reader.ReadBytes('\n')
			if len(line) > 0 {
				lineNo++
				rec, ok := t.decode(line, lineNo)
				if ok && !yield(rec, nil) {
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(zero, apperrors.NewStorageError("read records file", readErr))
				return
			}
		}
	}
}

func (t *Table[T]) decode(line []byte, lineNo int) (T, bool) {
	var rec T
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return rec, false
	}
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		t.skip(lineNo, err)
		return rec, false
	}
	if err := rec.Validate(); err != nil {
		t.skip(lineNo, err)
		return rec, false
	}
	return rec, true
}

func (t *Table[T]) skip(lineNo int, err error) {
	t.skipped.Add(1)
	t.logger.Warn("skipping malformed record", zap.Int("line", lineNo), zap.Error(err))
}

// List collects All into a slice.
func (t *Table[T]) List(ctx context.Context) ([]T, error) {
	var out []T
	for rec, err := range t.All(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Find returns the first record matching match.
func (t *Table[T]) Find(ctx context.Context, match func(T) bool) (T, bool, error) {
	var zero T
	for rec, err := range t.All(ctx) {
		if err != nil {
			return zero, false, err
		}
		if match(rec) {
			return rec, true, nil
		}
	}
	return zero, false, nil
}

// NextID returns one more than the highest id in the file. Deleted ids are
// not reused unless they were the highest.
func (t *Table[T]) NextID(ctx context.Context) (int64, error) {
	var maxID int64
	for rec, err := range t.All(ctx) {
		if err != nil {
			return 0, err
		}
		if id := rec.RecordID(); id > maxID {
			maxID = id
		}
	}
	return maxID + 1, nil
}

// Rewrite replaces the file contents with recs. The new contents are
// written to a temporary file in the same directory, flushed to disk and
// renamed over the original, so readers see either the old or the new set.
func (t *Table[T]) Rewrite(ctx context.Context, recs []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return apperrors.NewStorageError("create data directory", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(t.path)+"-*.tmp")
	if err != nil {
		return apperrors.NewStorageError("create temp records file", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	writer := bufio.NewWriter(tmpFile)
	encoder := json.NewEncoder(writer)
	encoder.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := encoder.Encode(rec); err != nil {
			tmpFile.Close()
			return apperrors.NewStorageError("encode record", err)
		}
	}
	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		return apperrors.NewStorageError("write temp records file", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return apperrors.NewStorageError("sync temp records file", err)
	}
	if err := tmpFile.Close(); err != nil {
		return apperrors.NewStorageError("close temp records file", err)
	}
	if err := os.Rename(tmpPath, t.path); err != nil {
		return apperrors.NewStorageError("replace records file", err)
	}

	success = true
	return nil
}

func endsWithoutNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}
