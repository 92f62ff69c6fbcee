// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"time"

	"github.com/daishir0/api-curl-link/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteIndex is a storage.Index kept in a SQLite table. Upsert and sweep
// run in one transaction, so concurrent processes sharing the database see
// a consistent ledger.
type SQLiteIndex struct {
	store     *Store
	artifacts *storage.Artifacts
	policy    storage.Policy
}

// NewSQLiteIndex creates an index over s whose entries point into artifacts.
func NewSQLiteIndex(s *Store, artifacts *storage.Artifacts, policy storage.Policy) *SQLiteIndex {
	return &SQLiteIndex{store: s, artifacts: artifacts, policy: policy}
}

// Lookup implements storage.Index.Lookup()
func (ix *SQLiteIndex) Lookup(key string) (string, bool, error) {
	var rows []CacheEntry
	if err := ix.store.db.Where("cache_key = ?", key).Limit(1).Find(&rows).Error; err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	row := rows[0]
	if !ix.policy.Fresh(time.Unix(row.Timestamp, 0)) || !ix.artifacts.Exists(row.File) {
		return "", false, nil
	}
	return row.File, true, nil
}

// Insert implements storage.Index.Insert()
func (ix *SQLiteIndex) Insert(key, path string, createdAt time.Time) ([]storage.Entry, error) {
	var evicted []storage.Entry
	var expired []string

	err := ix.store.db.Transaction(func(tx *gorm.DB) error {
		var prev []CacheEntry
		if err := tx.Where("cache_key = ?", key).Limit(1).Find(&prev).Error; err != nil {
			return err
		}
		if len(prev) > 0 && prev[0].File != path {
			expired = append(expired, prev[0].File)
		}

		entry := CacheEntry{CacheKey: key, File: path, Timestamp: createdAt.Unix()}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"file", "timestamp"}),
		}).Create(&entry).Error; err != nil {
			return err
		}

		var rows []CacheEntry
		if err := tx.Order("cache_key ASC").Find(&rows).Error; err != nil {
			return err
		}
		var keys []string
		for _, row := range rows {
			created := time.Unix(row.Timestamp, 0)
			switch {
			case ix.policy.Evictable(created):
				expired = append(expired, row.File)
			case !ix.artifacts.Exists(row.File):
			default:
				continue
			}
			keys = append(keys, row.CacheKey)
			evicted = append(evicted, storage.Entry{Key: row.CacheKey, Path: row.File, CreatedAt: created})
		}
		if len(keys) == 0 {
			return nil
		}
		return tx.Where("cache_key IN ?", keys).Delete(&CacheEntry{}).Error
	})
	if err != nil {
		return nil, err
	}

	return evicted, ix.artifacts.RemoveAll(expired)
}

// Entries implements storage.Index.Entries()
func (ix *SQLiteIndex) Entries() ([]storage.Entry, error) {
	var rows []CacheEntry
	if err := ix.store.db.Order("cache_key ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]storage.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, storage.Entry{Key: row.CacheKey, Path: row.File, CreatedAt: time.Unix(row.Timestamp, 0)})
	}
	return entries, nil
}

// Close implements storage.Index.Close()
func (ix *SQLiteIndex) Close() error {
	return ix.store.Close()
}
