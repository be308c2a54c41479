package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/balaji-balu/fusion-deploy/internal/orchestrator"
)

const runsBucket = "runs"

var ErrNotFound = errors.New("run not found")

// Store keeps the summary of every run in a bbolt file, keyed by run id.
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", runsBucket, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(sum *orchestrator.Summary) error {
	if sum == nil || sum.RunID == "" {
		return errors.New("summary has no run id")
	}
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", sum.RunID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(sum.RunID), data)
	})
}

func (s *Store) Get(runID string) (*orchestrator.Summary, error) {
	var sum orchestrator.Summary
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(runsBucket)).Get([]byte(runID))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &sum)
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &sum, nil
}

// List returns up to limit runs, most recent first. A limit of 0 or less
// returns every run.
func (s *Store) List(limit int) ([]orchestrator.Summary, error) {
	runs := []orchestrator.Summary{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var sum orchestrator.Summary
			if err := json.Unmarshal(v, &sum); err != nil {
				return fmt.Errorf("decode run %s: %w", k, err)
			}
			runs = append(runs, sum)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
