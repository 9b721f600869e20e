// Package runctx manages the durable per-run context for tuning runs.
// A RunContext aggregates the run identifier, derived workspace paths, and
// the change journal, and is persisted as a JSON document after every
// mutation so the run stays rollback-able even after a crash. A later,
// unrelated invocation loads a persisted context read-only as the rollback
// target.
package runctx

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tunectl/tunectl/pkg/tune/journal"
)

// SchemaVersion is the on-disk document version. Readers reject documents
// with a newer major version than they understand.
const SchemaVersion = 1

// ContextFileName is the well-known file name of a persisted run context
// inside its run directory.
const ContextFileName = "context.json"

// LogFileName is the well-known log file name inside a run directory.
const LogFileName = "tunectl.log"

var (
	// ErrAbsent is returned by Load when no context exists at the path.
	ErrAbsent = errors.New("run context absent")

	// ErrChecksum is returned by Load when the stored journal checksum does
	// not match the entries. The decoded context is still returned; callers
	// decide whether to proceed.
	ErrChecksum = errors.New("run context checksum mismatch")

	// ErrSchema is returned by Load for documents written by an
	// incompatible schema version.
	ErrSchema = errors.New("unsupported run context schema")
)

// RunContext is the per-invocation aggregate of identifiers, paths, and the
// change journal. It is exclusively owned by the writing process for the
// duration of a run.
type RunContext struct {
	RunID         string
	WorkspaceRoot string
	LogFile       string
	ContextFile   string
	StartedAt     time.Time

	journal *journal.Journal
}

// document is the persisted JSON form of a RunContext.
type document struct {
	SchemaVersion int                   `json:"schema_version"`
	RunID         string                `json:"run_id"`
	WorkspaceRoot string                `json:"workspace_root"`
	LogFile       string                `json:"log_file"`
	ContextFile   string                `json:"context_file"`
	StartedAt     time.Time             `json:"started_at"`
	Changes       []journal.ChangeEntry `json:"changes"`
	Checksum      string                `json:"checksum,omitempty"`
}

// NewID generates a run identifier like "run-2026-08-31T10-30-00-1a2b3c4d".
func NewID() string {
	ts := time.Now().UTC().Format("2006-01-02T15-04-05")
	short := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return fmt.Sprintf("run-%s-%s", ts, short)
}

// New creates a fresh run context. File locations are derived
// deterministically from the run ID under workspaceRoot; nothing is written
// until the first Persist.
func New(runID, workspaceRoot string) (*RunContext, error) {
	if runID == "" {
		return nil, errors.New("run ID cannot be empty")
	}
	if workspaceRoot == "" {
		return nil, errors.New("workspace root cannot be empty")
	}
	runDir := filepath.Join(workspaceRoot, runID)
	return &RunContext{
		RunID:         runID,
		WorkspaceRoot: workspaceRoot,
		LogFile:       filepath.Join(runDir, LogFileName),
		ContextFile:   filepath.Join(runDir, ContextFileName),
		StartedAt:     time.Now().UTC(),
		journal:       journal.New(),
	}, nil
}

// Load deserializes a persisted run context for read-only inspection.
// A missing or empty file yields ErrAbsent. A checksum mismatch yields the
// decoded context together with ErrChecksum.
func Load(path string) (*RunContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAbsent, path)
		}
		return nil, fmt.Errorf("reading run context: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrAbsent, path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing run context %s: %w", path, err)
	}
	if doc.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: version %d", ErrSchema, doc.SchemaVersion)
	}

	rc := &RunContext{
		RunID:         doc.RunID,
		WorkspaceRoot: doc.WorkspaceRoot,
		LogFile:       doc.LogFile,
		ContextFile:   doc.ContextFile,
		StartedAt:     doc.StartedAt,
		journal:       journal.FromEntries(doc.Changes),
	}

	if doc.Checksum != "" {
		sum, err := checksum(doc.Changes)
		if err != nil {
			return nil, fmt.Errorf("computing checksum: %w", err)
		}
		if sum != doc.Checksum {
			return rc, fmt.Errorf("%w: %s", ErrChecksum, path)
		}
	}
	return rc, nil
}

// Journal returns the run's change journal.
func (rc *RunContext) Journal() *journal.Journal {
	return rc.journal
}

// Record appends a change entry to the journal and immediately persists the
// whole context. The mutation is considered durable only once Record
// returns nil.
func (rc *RunContext) Record(category journal.Category, key string, before, after journal.Snapshot, note string) (journal.ChangeEntry, error) {
	e := rc.journal.Record(category, key, before, after, note)
	if err := rc.Persist(); err != nil {
		return e, fmt.Errorf("persisting after journal append: %w", err)
	}
	return e, nil
}

// Persist serializes the full context atomically via a temp file and
// rename. Every call writes the complete document; there is no batching.
func (rc *RunContext) Persist() error {
	changes := rc.journal.Entries()
	sum, err := checksum(changes)
	if err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	doc := document{
		SchemaVersion: SchemaVersion,
		RunID:         rc.RunID,
		WorkspaceRoot: rc.WorkspaceRoot,
		LogFile:       rc.LogFile,
		ContextFile:   rc.ContextFile,
		StartedAt:     rc.StartedAt,
		Changes:       changes,
		Checksum:      sum,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run context: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(rc.ContextFile), 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}

	tmp := rc.ContextFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, rc.ContextFile); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// checksum hashes the serialized change list. The checksum detects torn or
// hand-edited journals on load; it is not a security measure.
func checksum(changes []journal.ChangeEntry) (string, error) {
	data, err := json.Marshal(changes)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Summary is a listing row for a persisted run context.
type Summary struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	ContextFile string    `json:"context_file" yaml:"context_file"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	Changes     int       `json:"changes" yaml:"changes"`
}

// List scans workspaceRoot for persisted run contexts, newest first.
// Unparseable entries are skipped. A limit of zero or less returns all.
func List(workspaceRoot string, limit int) ([]Summary, error) {
	entries, err := os.ReadDir(workspaceRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, fmt.Errorf("reading workspace: %w", err)
	}

	var out []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(workspaceRoot, entry.Name(), ContextFileName)
		rc, err := Load(path)
		if err != nil && !errors.Is(err, ErrChecksum) {
			continue
		}
		out = append(out, Summary{
			RunID:       rc.RunID,
			ContextFile: path,
			StartedAt:   rc.StartedAt,
			Changes:     rc.journal.Len(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		out = []Summary{}
	}
	return out, nil
}
