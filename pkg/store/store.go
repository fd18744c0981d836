// Package store persists session Reports to a local BoltDB file, the same
// bucket-per-entity JSON-marshal pattern the original storage layer used
// for cluster state, scaled down to the one entity this engine produces.
package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/proactiva/planrunner/pkg/types"
)

var bucketSessions = []byte("sessions")

// ReportStore persists types.Report values keyed by session ID.
type ReportStore struct {
	db *bolt.DB
}

// Open opens (creating if absent) a BoltDB file under dataDir.
func Open(dataDir string) (*ReportStore, error) {
	dbPath := filepath.Join(dataDir, "planrunner.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketSessions)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sessions bucket: %w", err)
	}

	return &ReportStore{db: db}, nil
}

// Close closes the underlying database.
func (s *ReportStore) Close() error {
	return s.db.Close()
}

// SaveReport upserts a Report keyed by its SessionID.
func (s *ReportStore) SaveReport(r types.Report) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		return b.Put([]byte(r.SessionID), data)
	})
}

// GetReport retrieves a Report by session ID.
func (s *ReportStore) GetReport(sessionID string) (types.Report, error) {
	var r types.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		data := b.Get([]byte(sessionID))
		if data == nil {
			return fmt.Errorf("report not found: %s", sessionID)
		}
		return json.Unmarshal(data, &r)
	})
	return r, err
}

// ListReports returns every stored Report.
func (s *ReportStore) ListReports() ([]types.Report, error) {
	var reports []types.Report
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			var r types.Report
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			reports = append(reports, r)
			return nil
		})
	})
	return reports, err
}
