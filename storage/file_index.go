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

package storage

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
)

// IndexFileName is the name of the JSON index inside the cache directory.
const IndexFileName = "index.json"

type indexRecord struct {
	File      string `json:"file"`
	Timestamp int64  `json:"timestamp"`
}

// FileIndex is an Index kept as a single JSON object in the cache
// directory. Every call reads the whole file, and writes replace it
// atomically. Calls are serialized within the process only; separate
// processes sharing a directory still race, and the last writer wins.
type FileIndex struct {
	artifacts *Artifacts
	policy    Policy
	path      string
	mu        sync.Mutex
}

// NewFileIndex creates an index stored at <artifacts dir>/index.json.
func NewFileIndex(artifacts *Artifacts, policy Policy) *FileIndex {
	return &FileIndex{
		artifacts: artifacts,
		policy:    policy,
		path:      filepath.Join(artifacts.Dir(), IndexFileName),
	}
}

// Lookup implements Index.Lookup()
func (ix *FileIndex) Lookup(key string) (string, bool, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rec, ok := ix.read()[key]
	if !ok || !ix.policy.Fresh(time.Unix(rec.Timestamp, 0)) {
		return "", false, nil
	}
	if !ix.artifacts.Exists(rec.File) {
		return "", false, nil
	}
	return rec.File, true, nil
}

// Insert implements Index.Insert()
func (ix *FileIndex) Insert(key, path string, createdAt time.Time) ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	records := ix.read()
	var expired []string
	if prev, ok := records[key]; ok && prev.File != path {
		expired = append(expired, prev.File)
	}
	records[key] = indexRecord{File: path, Timestamp: createdAt.Unix()}

	var evicted []Entry
	for k, rec := range records {
		created := time.Unix(rec.Timestamp, 0)
		switch {
		case ix.policy.Evictable(created):
			expired = append(expired, rec.File)
		case !ix.artifacts.Exists(rec.File):
		default:
			continue
		}
		delete(records, k)
		evicted = append(evicted, Entry{Key: k, Path: rec.File, CreatedAt: created})
	}

	if err := ix.write(records); err != nil {
		return nil, err
	}
	sortEntries(evicted)
	return evicted, ix.artifacts.RemoveAll(expired)
}

// Entries implements Index.Entries()
func (ix *FileIndex) Entries() ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	records := ix.read()
	entries := make([]Entry, 0, len(records))
	for k, rec := range records {
		entries = append(entries, Entry{Key: k, Path: rec.File, CreatedAt: time.Unix(rec.Timestamp, 0)})
	}
	sortEntries(entries)
	return entries, nil
}

// Close implements Index.Close()
func (ix *FileIndex) Close() error {
	return nil
}

// read returns the current records. A missing, unreadable or corrupt index
// reads as empty.
func (ix *FileIndex) read() map[string]indexRecord {
	records := make(map[string]indexRecord)
	data, err := afero.ReadFile(ix.artifacts.Fs(), ix.path)
	if err != nil {
		return records
	}
	if err := json.Unmarshal(data, &records); err != nil || records == nil {
		return make(map[string]indexRecord)
	}
	return records
}

func (ix *FileIndex) write(records map[string]indexRecord) error {
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return err
	}
	if err := ix.artifacts.Fs().MkdirAll(ix.artifacts.Dir(), 0750); err != nil {
		return err
	}
	return writeFileAtomic(ix.artifacts.Fs(), ix.path, data)
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}
