// Package audit writes the append-only audit trail. Every line is one JSON
// object chained to the line before it by a BLAKE3 hash, so edits and
// deletions inside the file are detectable with Verify.
package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/validation"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// TimestampLayout is the UTC layout written to the "timestamp" field.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// MaxDetails caps the details field in runes.
const MaxDetails = 200

// chainKey is the BLAKE3 key for entry hashes: "helpdesk.audit.chain"
// zero-padded to 32 bytes.
var chainKey = [32]byte{
	'h', 'e', 'l', 'p', 'd', 'e', 's', 'k', '.', 'a', 'u', 'd', 'i', 't', '.',
	'c', 'h', 'a', 'i', 'n',
}

// Sink receives audit entries.
type Sink interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

// line is the on-disk form of an entry. Field order is part of the hash
// input and must not change.
type line struct {
	Timestamp string `json:"timestamp"`
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	EntityID  string `json:"entity_id"`
	Status    string `json:"status"`
	Details   string `json:"details"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash,omitempty"`
}

func toLine(entry domain.AuditEntry) line {
	return line{
		Timestamp: entry.Timestamp.UTC().Format(TimestampLayout),
		UserID:    entry.UserID,
		Username:  entry.Username,
		Role:      entry.Role,
		Action:    string(entry.Action),
		Entity:    string(entry.Entity),
		EntityID:  entry.EntityID,
		Status:    string(entry.Status),
		Details:   entry.Details,
		PrevHash:  entry.PrevHash,
		Hash:      entry.Hash,
	}
}

func (l line) entry() (domain.AuditEntry, error) {
	ts, err := time.Parse(TimestampLayout, l.Timestamp)
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("parse timestamp: %w", err)
	}
	if l.Action == "" || l.Status == "" {
		return domain.AuditEntry{}, errors.New("entry missing action or status")
	}
	return domain.AuditEntry{
		Timestamp: ts,
		UserID:    l.UserID,
		Username:  l.Username,
		Role:      l.Role,
		Action:    domain.AuditAction(l.Action),
		Entity:    domain.AuditEntity(l.Entity),
		EntityID:  l.EntityID,
		Status:    domain.AuditStatus(l.Status),
		Details:   l.Details,
		PrevHash:  l.PrevHash,
		Hash:      l.Hash,
	}, nil
}

// digest hashes the line with its Hash field cleared.
func (l line) digest() (string, error) {
	l.Hash = ""
	payload, err := marshal(l)
	if err != nil {
		return "", err
	}
	hasher, err := blake3.NewKeyed(chainKey[:])
	if err != nil {
		return "", err
	}
	hasher.Write(payload)
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func marshal(l line) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileLog appends entries to a JSON-lines file.
type FileLog struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	lastHash string
	loaded   bool
}

// NewFileLog returns a log writing to path. The file and its directory are
// created on first write.
func NewFileLog(path string, logger *zap.Logger) *FileLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLog{path: path, logger: logger}
}

// Path returns the log file.
func (f *FileLog) Path() string { return f.path }

// Record sanitizes entry, links it to the previous line and appends it.
func (f *FileLog) Record(ctx context.Context, entry domain.AuditEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		last, err := lastHash(f.path)
		if err != nil {
			return f.fail("read audit log", err)
		}
		f.lastHash = last
		f.loaded = true
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.Details = validation.Text(entry.Details, MaxDetails)
	entry.PrevHash = f.lastHash
	entry.Hash = ""

	l := toLine(entry)
	hash, err := l.digest()
	if err != nil {
		return f.fail("hash audit entry", err)
	}
	l.Hash = hash
	payload, err := marshal(l)
	if err != nil {
		return f.fail("encode audit entry", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return f.fail("create log directory", err)
	}
	file, err := os.OpenFile(f.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o600)
	if err != nil {
		return f.fail("open audit log", err)
	}
	defer file.Close()
	if _, err := file.Write(payload); err != nil {
		return f.fail("append audit entry", err)
	}
	if err := file.Sync(); err != nil {
		return f.fail("sync audit log", err)
	}
	f.lastHash = hash
	return nil
}

func (f *FileLog) fail(op string, err error) error {
	f.logger.Error("audit write failed", zap.String("op", op), zap.Error(err))
	return apperrors.NewStorageError(op, err)
}

// lastHash returns the hash of the last decodable line, or "" for a missing
// or empty file.
func lastHash(path string) (string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	var last string
	reader := bufio.NewReader(file)
	for {
		raw, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
			var l line
			if json.Unmarshal(trimmed, &l) == nil && l.Hash != "" {
				last = l.Hash
			}
		}
		if readErr == io.EOF {
			return last, nil
		}
		if readErr != nil {
			return "", readErr
		}
	}
}
