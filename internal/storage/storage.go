package storage

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sermuns/static-listing/pkg/types"
)

const (
	recordPrefix = "record:"
	buildKey     = "build:current"
)

// ManifestStore keeps a record of everything a build emitted.
type ManifestStore struct {
	db *badger.DB
}

// New opens a manifest store in dataDir. An empty dataDir keeps the manifest in
// memory for the lifetime of the process.
func New(dataDir string) (*ManifestStore, error) {
	opts := badger.DefaultOptions(dataDir)
	if dataDir == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logging

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &ManifestStore{
		db: db,
	}, nil
}

func (s *ManifestStore) Close() error {
	return s.db.Close()
}

// Reset drops every key so a new build starts from an empty manifest.
func (s *ManifestStore) Reset() error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("failed to reset manifest: %w", err)
	}
	return nil
}

func (s *ManifestStore) PutRecord(record *types.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(recordPrefix + record.Path)
		return txn.Set(key, data)
	})
}

// Records returns every record ordered by path.
func (s *ManifestStore) Records() ([]types.Record, error) {
	var records []types.Record

	err := s.each(func(record types.Record) {
		records = append(records, record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get all records: %w", err)
	}

	return records, nil
}

// Stats aggregates the records into per-kind counts and the total file size.
func (s *ManifestStore) Stats() (types.Stats, error) {
	var stats types.Stats

	err := s.each(func(record types.Record) {
		switch record.Kind {
		case types.KindDir:
			stats.Directories++
		case types.KindFile:
			stats.Files++
			stats.Bytes += record.Size
			switch record.Method {
			case types.MethodLink:
				stats.Linked++
			case types.MethodCopy:
				stats.Copied++
			}
		}
	})
	if err != nil {
		return types.Stats{}, fmt.Errorf("failed to compute stats: %w", err)
	}

	return stats, nil
}

func (s *ManifestStore) each(fn func(types.Record)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := txn.NewIterator(opts)
		defer iter.Close()

		prefix := []byte(recordPrefix)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			item := iter.Item()
			err := item.Value(func(val []byte) error {
				var record types.Record
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				fn(record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ManifestStore) SetBuildInfo(info *types.BuildInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal build info: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(buildKey), data)
	})
}

// GetBuildInfo returns the most recent build, or nil if none was recorded.
func (s *ManifestStore) GetBuildInfo() (*types.BuildInfo, error) {
	var info *types.BuildInfo

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(buildKey))
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			info = &types.BuildInfo{}
			return json.Unmarshal(val, info)
		})
	})

	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build info: %w", err)
	}

	return info, nil
}
