// pkg/journal/journal.go
//
// File-backed operation journal. Each wipe gets one JSON entry that lives in
// active/ while running and moves to archive/ once it reaches a terminal
// status.

package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_err"
	"github.com/CodeMonkeyCybersecurity/certiwipe/pkg/cw_io"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

var ErrNotFound = errors.New("journal entry not found")

// Storage manages journal entries under a base directory.
type Storage struct {
	mu       sync.RWMutex
	basePath string
	now      func() time.Time
}

// Open creates the directory layout under basePath if needed.
func Open(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = DefaultDir
	}
	s := &Storage{basePath: basePath, now: time.Now}

	for _, dir := range []string{ActiveDir, ArchiveDir} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0o700); err != nil {
			return nil, cw_err.Wrapf(cw_err.KindIo, err, "create journal dir %s", dir)
		}
	}
	return s, nil
}

func (s *Storage) Path() string {
	return s.basePath
}

// Create records the start of a wipe.
func (s *Storage) Create(device, method string, passes int) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := &Entry{
		ID:        uuid.New().String(),
		StartTime: s.now().UTC(),
		Device:    device,
		Method:    method,
		Passes:    passes,
		Status:    StatusPending,
		Stages:    []StageRecord{},
		User:      currentUser(),
		Host:      hostname(),
		PID:       os.Getpid(),
	}
	if err := s.save(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordStage appends a stage transition and marks the entry in progress.
func (s *Storage) RecordStage(id, stage, note string) error {
	return s.update(id, func(e *Entry) {
		e.Stages = append(e.Stages, StageRecord{Stage: stage, Timestamp: s.now().UTC(), Note: note})
		if e.Status == StatusPending {
			e.Status = StatusInProgress
		}
	})
}

// Complete archives the entry as successful.
func (s *Storage) Complete(id, certificateID string) error {
	return s.update(id, func(e *Entry) {
		e.Status = StatusCompleted
		e.CertificateID = certificateID
		end := s.now().UTC()
		e.EndTime = &end
	})
}

// Fail archives the entry with the failure cause.
func (s *Storage) Fail(id string, cause error, certificateID string) error {
	return s.update(id, func(e *Entry) {
		e.Status = StatusFailed
		if cause != nil {
			e.Error = cause.Error()
		}
		e.CertificateID = certificateID
		end := s.now().UTC()
		e.EndTime = &end
	})
}

func (s *Storage) update(id string, mutate func(*Entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, dir, err := s.load(id)
	if err != nil {
		return err
	}
	mutate(entry)
	if err := s.save(entry); err != nil {
		return err
	}
	if dir == ActiveDir && entry.Status.Terminal() {
		if err := os.Remove(s.entryPath(ActiveDir, id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cw_err.Wrapf(cw_err.KindIo, err, "remove active journal entry %s", id)
		}
	}
	return nil
}

// Load returns the entry with id from either directory.
func (s *Storage) Load(id string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, _, err := s.load(id)
	return entry, err
}

func (s *Storage) load(id string) (*Entry, string, error) {
	for _, dir := range []string{ActiveDir, ArchiveDir} {
		data, err := os.ReadFile(s.entryPath(dir, id))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, "", cw_err.Wrapf(cw_err.KindIo, err, "read journal entry %s", id)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, "", cw_err.Wrapf(cw_err.KindIo, err, "decode journal entry %s", id)
		}
		if want := checksum(&entry); entry.Checksum != want {
			return nil, "", cw_err.Newf(cw_err.KindIo, "journal entry %s failed integrity check", id)
		}
		return &entry, dir, nil
	}
	return nil, "", cw_err.Wrapf(cw_err.KindIo, ErrNotFound, "id %s", id)
}

// ListActive returns entries that never reached a terminal status, oldest
// first. Unreadable entries are skipped and reported in the returned error.
func (s *Storage) ListActive() ([]*Entry, error) {
	return s.list(ActiveDir)
}

func (s *Storage) ListArchived() ([]*Entry, error) {
	return s.list(ArchiveDir)
}

func (s *Storage) list(dir string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := os.ReadDir(filepath.Join(s.basePath, dir))
	if err != nil {
		return nil, cw_err.Wrapf(cw_err.KindIo, err, "read journal directory %s", dir)
	}

	var (
		entries []*Entry
		errs    *multierror.Error
	)
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		entry, _, err := s.load(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].StartTime.Before(entries[j].StartTime) })
	return entries, errs.ErrorOrNil()
}

// Cleanup removes archived entries older than maxAge and returns how many
// were removed.
func (s *Storage) Cleanup(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	archive := filepath.Join(s.basePath, ArchiveDir)
	files, err := os.ReadDir(archive)
	if err != nil {
		return 0, cw_err.Wrapf(cw_err.KindIo, err, "read journal archive")
	}

	cutoff := s.now().Add(-maxAge)
	var (
		removed int
		errs    *multierror.Error
	)
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		info, err := f.Info()
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(archive, f.Name())); err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed++
	}
	return removed, errs.ErrorOrNil()
}

func (s *Storage) save(entry *Entry) error {
	dir := ActiveDir
	if entry.Status.Terminal() {
		dir = ArchiveDir
	}

	entry.Checksum = checksum(entry)
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return cw_err.Wrapf(cw_err.KindIo, err, "encode journal entry %s", entry.ID)
	}
	if err := cw_io.WriteFileAtomic(s.entryPath(dir, entry.ID), data, 0o600); err != nil {
		return cw_err.Wrapf(cw_err.KindIo, err, "write journal entry %s", entry.ID)
	}
	return nil
}

func (s *Storage) entryPath(dir, id string) string {
	return filepath.Join(s.basePath, dir, id+".json")
}

// checksum is the SHA-256 of the entry with an empty Checksum field.
func checksum(entry *Entry) string {
	c := *entry
	c.Checksum = ""
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func currentUser() string {
	if user := os.Getenv("SUDO_USER"); user != "" {
		return user
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return h
}
