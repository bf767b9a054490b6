// Package moderation implements the persisted allow/deny lists consulted
// before rule evaluation: blocked senders (exact match on a normalized key)
// and blocked keywords (substring match against the normalized message).
//
// The store is backed by a single JSON document rewritten in full on every
// mutation (last-writer-wins, no partial patches). Every successful mutation
// persists synchronously before returning, so an observed nil error implies
// durability. A persistence failure is logged but leaves the in-memory state
// authoritative for the running process.
package moderation

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/cases"

	"github.com/streamrig/go-donation-backend/internal/domain"
)

// Store-level errors, mapped to HTTP responses at the handler layer.
var (
	// ErrEmptyValue is returned when a block/unblock call carries no value.
	ErrEmptyValue = errors.New("moderation value is empty")

	// ErrAlreadyBlocked is returned when an entry with the same normalized
	// value already exists. There is no update-in-place: unblock, then
	// re-block to change the reason.
	ErrAlreadyBlocked = errors.New("already blocked")

	// ErrNotFound is returned by unblock calls for absent entries.
	ErrNotFound = errors.New("moderation entry not found")
)

// maxReasonLen truncates operator-supplied reasons.
const maxReasonLen = 300

var folder = cases.Fold()

// normalizeKey produces the case-insensitive lookup key for senders and
// keywords.
func normalizeKey(s string) string {
	return folder.String(strings.TrimSpace(s))
}

func cleanReason(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxReasonLen {
		rs := []rune(s)
		s = string(rs[:maxReasonLen])
	}
	return s
}

// Store holds the two moderation lists and their backing document path.
// All methods are safe for concurrent use.
type Store struct {
	path string

	mu       sync.Mutex
	senders  []domain.ModerationEntry
	keywords []domain.ModerationEntry

	Now func() time.Time
}

// NewStore loads the moderation document at path. A missing file starts
// empty; an unparsable one is logged and treated as empty without being
// rewritten on disk. An empty path keeps the store memory-only.
func NewStore(path string) *Store {
	s := &Store{path: strings.TrimSpace(path), Now: time.Now}
	if s.path != "" {
		s.load()
	}
	return s
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", s.path).Msg("failed to read moderation document")
		}
		return
	}
	var doc domain.ModerationSnapshot
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("failed to parse moderation document, starting empty")
		return
	}
	s.senders = normalizeList(doc.BlockedSenders, s.Now)
	s.keywords = normalizeList(doc.BlockedKeywords, s.Now)
}

// normalizeList re-normalizes persisted entries and drops empties and
// duplicates, keeping first occurrence order.
func normalizeList(list []domain.ModerationEntry, now func() time.Time) []domain.ModerationEntry {
	seen := make(map[string]struct{}, len(list))
	var out []domain.ModerationEntry
	for _, e := range list {
		v := normalizeKey(e.Value)
		if v == "" {
			v = normalizeKey(e.Label)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		label := strings.TrimSpace(e.Label)
		if label == "" {
			label = v
		}
		at := e.At
		if at.IsZero() {
			at = now()
		}
		out = append(out, domain.ModerationEntry{
			Value: v, Label: label, Reason: cleanReason(e.Reason), At: at,
		})
	}
	return out
}

// save rewrites the whole document. Called with s.mu held.
func (s *Store) save() {
	if s.path == "" {
		return
	}
	doc := domain.ModerationSnapshot{
		Version:         1,
		BlockedSenders:  append([]domain.ModerationEntry{}, s.senders...),
		BlockedKeywords: append([]domain.ModerationEntry{}, s.keywords...),
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal moderation document")
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("failed to save moderation document")
	}
}

// Snapshot returns a copy of both lists for the read surface.
func (s *Store) Snapshot() domain.ModerationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.ModerationSnapshot{
		Version:         1,
		BlockedSenders:  append([]domain.ModerationEntry{}, s.senders...),
		BlockedKeywords: append([]domain.ModerationEntry{}, s.keywords...),
	}
}

// IsSenderBlocked returns the blocking entry for sender (exact match on the
// normalized key), or nil.
func (s *Store) IsSenderBlocked(sender string) *domain.ModerationEntry {
	key := normalizeKey(sender)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.senders {
		if s.senders[i].Value == key {
			e := s.senders[i]
			return &e
		}
	}
	return nil
}

// FindBlockedKeyword returns the first keyword entry whose value is a
// substring of the normalized message, in insertion order, or nil.
func (s *Store) FindBlockedKeyword(message string) *domain.ModerationEntry {
	text := normalizeKey(message)
	if text == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.keywords {
		if s.keywords[i].Value != "" && strings.Contains(text, s.keywords[i].Value) {
			e := s.keywords[i]
			return &e
		}
	}
	return nil
}

// BlockSender adds sender to the blocked-senders list and persists the
// document before returning.
func (s *Store) BlockSender(sender, reason string) (*domain.ModerationEntry, error) {
	return s.block(&s.senders, sender, reason)
}

// UnblockSender removes sender from the blocked-senders list.
func (s *Store) UnblockSender(sender string) error {
	return s.unblock(&s.senders, sender)
}

// BlockKeyword adds keyword to the blocked-keywords list and persists the
// document before returning.
func (s *Store) BlockKeyword(keyword, reason string) (*domain.ModerationEntry, error) {
	return s.block(&s.keywords, keyword, reason)
}

// UnblockKeyword removes keyword from the blocked-keywords list.
func (s *Store) UnblockKeyword(keyword string) error {
	return s.unblock(&s.keywords, keyword)
}

func (s *Store) block(list *[]domain.ModerationEntry, value, reason string) (*domain.ModerationEntry, error) {
	key := normalizeKey(value)
	if key == "" {
		return nil, ErrEmptyValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range *list {
		if (*list)[i].Value == key {
			return nil, ErrAlreadyBlocked
		}
	}

	label := strings.TrimSpace(value)
	if label == "" {
		label = key
	}
	entry := domain.ModerationEntry{
		Value:  key,
		Label:  label,
		Reason: cleanReason(reason),
		At:     s.Now(),
	}
	*list = append(*list, entry)
	s.save()
	return &entry, nil
}

func (s *Store) unblock(list *[]domain.ModerationEntry, value string) error {
	key := normalizeKey(value)
	if key == "" {
		return ErrEmptyValue
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range *list {
		if (*list)[i].Value == key {
			*list = append((*list)[:i], (*list)[i+1:]...)
			s.save()
			return nil
		}
	}
	return ErrNotFound
}
