// Package audit implements the append-only event log behind every pipeline
// decision: a bounded in-memory view for live queries and an unbounded
// NDJSON file for durability, plus the windowed aggregation reports.
package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

const (
	// DefaultMaxEvents bounds the in-memory view.
	DefaultMaxEvents = 5000
	// maxEventsCap is the hard ceiling for operator-configured bounds.
	maxEventsCap = 200_000
	// scanBufSize allows for long audit lines (big messages, webhook bodies).
	scanBufSize = 1 << 20
)

// Log is the append-only audit log. The in-memory view is authoritative for
// the running process; the file append is best-effort and a write failure
// never rolls back the in-memory append.
type Log struct {
	path string
	max  int

	mu     sync.Mutex
	events []domain.AuditEvent
	file   *os.File

	// Now stamps appended events; tests override it.
	Now func() time.Time
}

// Open constructs an audit log backed by the NDJSON file at path, replaying
// existing records into memory (capped to maxEvents; corrupt lines are
// skipped). An empty path keeps the log memory-only.
func Open(path string, maxEvents int) *Log {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if maxEvents > maxEventsCap {
		maxEvents = maxEventsCap
	}

	l := &Log{path: strings.TrimSpace(path), max: maxEvents, Now: time.Now}
	if l.path == "" {
		return l
	}

	if dir := filepath.Dir(l.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	l.replay()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("audit log file unavailable, running memory-only")
		return l
	}
	l.file = f
	return l
}

// replay loads the persisted log into the in-memory view, skipping malformed
// lines so a partial final write after a crash never aborts startup.
func (l *Log) replay() {
	f, err := os.Open(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", l.path).Msg("failed to open audit log for replay")
		}
		return
	}
	defer f.Close()

	var events []domain.AuditEvent
	skipped := 0

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), scanBufSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e domain.AuditEvent
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			skipped++
			continue
		}
		events = append(events, e)
	}
	if err := sc.Err(); err != nil {
		log.Warn().Err(err).Str("path", l.path).Msg("audit log replay stopped early")
	}
	if skipped > 0 {
		log.Warn().Int("lines", skipped).Str("path", l.path).Msg("skipped corrupt audit lines")
	}

	if len(events) > l.max {
		events = events[len(events)-l.max:]
	}
	l.events = events
}

// Append assigns the event an id and timestamp, records it in memory
// (dropping the oldest entries past the bound), and synchronously appends the
// serialized record to the persisted log. It returns the stored event.
func (l *Log) Append(e domain.AuditEvent) domain.AuditEvent {
	e.ID = uuid.NewString()
	e.At = l.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.events = append(l.events, e)
	if over := len(l.events) - l.max; over > 0 {
		l.events = l.events[over:]
	}

	if l.file != nil {
		line, err := json.Marshal(e)
		if err == nil {
			line = append(line, '\n')
			_, err = l.file.Write(line)
		}
		if err != nil {
			log.Warn().Err(err).Str("path", l.path).Msg("failed to append audit record")
		}
	}
	return e
}

// Close releases the backing file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// QueryOptions are the conjunctive, all-optional filters for Query.
type QueryOptions struct {
	Limit      int
	Type       string
	Sender     string
	DonationID string
	ActionType string
	SinceAt    time.Time
}

// Query scans the in-memory view newest to oldest, short-circuiting once
// Limit results are found.
func (l *Log) Query(opt QueryOptions) []domain.AuditEvent {
	limit := opt.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	sender := normalizeKey(opt.Sender)

	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.AuditEvent, 0, limit)
	for i := len(l.events) - 1; i >= 0; i-- {
		e := l.events[i]
		if opt.Type != "" && e.Type != opt.Type {
			continue
		}
		if opt.DonationID != "" && e.DonationID != opt.DonationID {
			continue
		}
		if opt.ActionType != "" && e.ActionType != opt.ActionType {
			continue
		}
		if sender != "" && normalizeKey(e.Sender) != sender {
			continue
		}
		if !opt.SinceAt.IsZero() && e.At.Before(opt.SinceAt) {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// Len returns the number of events in the in-memory view.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
