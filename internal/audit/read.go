package audit

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
	"slices"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// Filter narrows Read. Empty fields match everything.
type Filter struct {
	UserID  string
	Actions []domain.AuditAction
	Status  domain.AuditStatus
}

func (f Filter) matches(entry domain.AuditEntry) bool {
	if f.UserID != "" && entry.UserID != f.UserID {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, entry.Action) {
		return false
	}
	if f.Status != "" && entry.Status != f.Status {
		return false
	}
	return true
}

// Read lazily yields matching entries in file order. Malformed lines are
// logged and skipped.
func Read(ctx context.Context, path string, filter Filter, logger *zap.Logger) iter.Seq2[domain.AuditEntry, error] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(yield func(domain.AuditEntry, error) bool) {
		file, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield(domain.AuditEntry{}, apperrors.NewStorageError("open audit log", err))
			return
		}
		defer file.Close()

		reader := bufio.NewReader(file)
		lineNo := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(domain.AuditEntry{}, err)
				return
			}
			raw, readErr := reader.ReadBytes('\n')
			if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
				lineNo++
				entry, err := decodeLine(trimmed)
				if err != nil {
					logger.Warn("skipping malformed audit entry", zap.Int("line", lineNo), zap.Error(err))
				} else if filter.matches(entry) && !yield(entry, nil) {
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(domain.AuditEntry{}, apperrors.NewStorageError("read audit log", readErr))
				return
			}
		}
	}
}

// Tail returns the last n matching entries, oldest first. n <= 0 returns
// every match.
func Tail(ctx context.Context, path string, filter Filter, n int, logger *zap.Logger) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	for entry, err := range Read(ctx, path, filter, logger) {
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	return out, nil
}

func decodeLine(raw []byte) (domain.AuditEntry, error) {
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return domain.AuditEntry{}, err
	}
	return l.entry()
}
