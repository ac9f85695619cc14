package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

const reportBucket = "index_reports"

// ReportEntry is one persisted indexing report
type ReportEntry struct {
	JobID   string    `json:"job_id"`
	SavedAt time.Time `json:"saved_at"`
	Report  Report    `json:"report"`
}

// ReportStore keeps indexing report history in a local bbolt file so
// `codescope status` can show past runs across process restarts.
type ReportStore struct {
	db     *bolt.DB
	logger *logrus.Entry
}

// OpenReportStore opens (or creates) the report database at path
func OpenReportStore(path string) (*ReportStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(reportBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create report bucket: %w", err)
	}

	return &ReportStore{
		db:     db,
		logger: logrus.WithField("component", "report_store"),
	}, nil
}

// Close closes the underlying database
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// Save persists a finished report. Keys are timestamp-prefixed so a
// cursor scan returns chronological order.
func (s *ReportStore) Save(jobID string, report *Report) error {
	entry := ReportEntry{
		JobID:   jobID,
		SavedAt: time.Now().UTC(),
		Report:  *report,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	key := fmt.Sprintf("%s|%s", entry.SavedAt.Format(time.RFC3339Nano), jobID)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(reportBucket)).Put([]byte(key), data)
	})
}

// Recent returns up to n reports, newest first
func (s *ReportStore) Recent(n int) ([]ReportEntry, error) {
	if n <= 0 {
		n = 10
	}

	var entries []ReportEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(reportBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			var entry ReportEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				s.logger.WithError(err).Warn("Skipping corrupt report entry")
				continue
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read reports: %w", err)
	}
	return entries, nil
}
