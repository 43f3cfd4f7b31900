package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// FileName is the journal file name inside the data directory.
const FileName = "journal.jsonl"

// schemaHeader is the first line of the JSONL file.
type schemaHeader struct {
	CruSchemaVersion int   `json:"cru_schema_version"`
	CreatedAt        int64 `json:"created_at"`
}

// maxLineSize bounds a single journal line.
const maxLineSize = 1024 * 1024

// ErrClosed is returned when operations are attempted on a closed journal.
var ErrClosed = errors.New("journal is closed")

// Journal is an append-only JSONL file of Records.
type Journal struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// Open opens the journal at path, creating it and its directory if needed.
func Open(path string) (*Journal, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	j := &Journal{path: path, file: file}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := j.writeHeader(); err != nil {
			file.Close()
			return nil, err
		}
	}
	return j, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string {
	return j.path
}

func (j *Journal) writeHeader() error {
	data, err := json.Marshal(schemaHeader{CruSchemaVersion: SchemaVersion, CreatedAt: time.Now().Unix()})
	if err != nil {
		return err
	}
	_, err = j.file.Write(append(data, '\n'))
	return err
}

// Load reads every record in file order.
func (j *Journal) Load() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, ErrClosed
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek %s: %w", j.path, err)
	}
	records, err := decode(j.file)
	if _, serr := j.file.Seek(0, io.SeekEnd); serr != nil && err == nil {
		err = serr
	}
	return records, err
}

// Append writes r and syncs the file.
func (j *Journal) Append(r Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := j.file.Write(append(data, '\n')); err != nil {
		return err
	}
	return j.file.Sync()
}

// Rewrite replaces the journal contents with records.
func (j *Journal) Rewrite(records []Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return ErrClosed
	}
	if err := j.file.Close(); err != nil {
		return err
	}
	j.file = nil

	backupPath := j.path + ".bak"
	if err := os.Rename(j.path, backupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to create backup: %w", err)
	}

	file, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND, 0600)
	if err != nil {
		os.Rename(backupPath, j.path)
		return fmt.Errorf("failed to create journal: %w", err)
	}
	j.file = file

	if err := j.writeHeader(); err != nil {
		return err
	}
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := j.file.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	if err := j.file.Sync(); err != nil {
		return err
	}

	os.Remove(backupPath)
	return nil
}

// Prune removes records older than maxAge and returns how many were dropped.
func (j *Journal) Prune(maxAge time.Duration) (int, error) {
	records, err := j.Load()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Time().Before(cutoff) {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, j.Rewrite(kept)
}

// Close releases the file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}

// ReadFile loads records from path without keeping it open. A missing file
// has no records.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// decode parses a header line followed by records. Malformed lines are
// skipped.
func decode(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if lineNum == 1 {
			var header schemaHeader
			if err := json.Unmarshal(line, &header); err == nil && header.CruSchemaVersion > 0 {
				if header.CruSchemaVersion > SchemaVersion {
					return nil, fmt.Errorf("unsupported schema version %d (max: %d)",
						header.CruSchemaVersion, SchemaVersion)
				}
				continue
			}
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.ID != "" {
			records = append(records, rec)
		}
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("error reading journal: %w", err)
	}
	return records, nil
}
