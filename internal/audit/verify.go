package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// VerifyResult reports the state of the hash chain. BrokenAt is the 1-based
// line number of the first bad entry, zero when the chain is intact.
type VerifyResult struct {
	Entries  int
	Valid    bool
	BrokenAt int
	Reason   string
}

// Verify walks the log and checks every entry's hash and its link to the
// previous entry. A missing log is an intact, empty chain.
func Verify(ctx context.Context, path string) (VerifyResult, error) {
	result := VerifyResult{Valid: true}
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return result, nil
	}
	if err != nil {
		return result, apperrors.NewStorageError("open audit log", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	prev := ""
	lineNo := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		raw, readErr := reader.ReadBytes('\n')
		if len(raw) > 0 {
			lineNo++
			if reason := check(bytes.TrimSpace(raw), prev); reason != "" {
				return VerifyResult{Entries: result.Entries, BrokenAt: lineNo, Reason: reason}, nil
			}
			var l line
			_ = json.Unmarshal(bytes.TrimSpace(raw), &l)
			prev = l.Hash
			result.Entries++
		}
		if readErr == io.EOF {
			return result, nil
		}
		if readErr != nil {
			return result, apperrors.NewStorageError("read audit log", readErr)
		}
	}
}

func check(raw []byte, prev string) string {
	if len(raw) == 0 {
		return "blank line"
	}
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return "entry is not valid JSON"
	}
	if l.PrevHash != prev {
		return "entry does not link to the previous entry"
	}
	want, err := l.digest()
	if err != nil {
		return fmt.Sprintf("cannot hash entry: %v", err)
	}
	if l.Hash != want {
		return "entry hash does not match its contents"
	}
	return ""
}
