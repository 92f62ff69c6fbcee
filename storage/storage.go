// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
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

// Package storage persists extraction results: one artifact file per cached
// response and an index mapping cache keys to those artifacts.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

// Entry is one indexed artifact.
type Entry struct {
	Key       string
	Path      string
	CreatedAt time.Time
}

// Index maps cache keys to artifacts.
//
// Lookup returns the artifact path only for a fresh entry whose artifact
// still exists. It never removes anything. Insert upserts an entry and then
// sweeps out every entry past retention, deleting its artifact, along with
// entries whose artifact has disappeared. Insert returns the removed entries.
type Index interface {
	Lookup(key string) (string, bool, error)
	Insert(key, path string, createdAt time.Time) ([]Entry, error)
	Entries() ([]Entry, error)
	Close() error
}

// Policy holds the expiry window and the retention threshold.
type Policy struct {
	// Expiry is how long an entry is served from cache
	Expiry time.Duration
	// Retention is the age at which an entry is swept
	Retention time.Duration
	// Now is the clock, time.Now when nil
	Now func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Fresh reports whether an entry created at createdAt may be served.
func (p Policy) Fresh(createdAt time.Time) bool {
	return p.now().Sub(createdAt) <= p.Expiry
}

// Evictable reports whether an entry created at createdAt is due for removal.
func (p Policy) Evictable(createdAt time.Time) bool {
	return p.now().Sub(createdAt) >= p.Retention
}

const artifactTimeLayout = "20060102-150405"

// Artifacts stores response bodies as files in one directory.
type Artifacts struct {
	fs  afero.Fs
	dir string
}

// NewArtifacts creates an artifact store rooted at dir.
func NewArtifacts(fs afero.Fs, dir string) *Artifacts {
	return &Artifacts{fs: fs, dir: dir}
}

// Dir returns the directory artifacts are written to.
func (a *Artifacts) Dir() string {
	return a.dir
}

// Fs returns the underlying filesystem.
func (a *Artifacts) Fs() afero.Fs {
	return a.fs
}

// Save writes body as the artifact of key and returns its path. The file
// is written next to its final name and renamed into place.
func (a *Artifacts) Save(key string, createdAt time.Time, body []byte) (string, error) {
	if err := a.fs.MkdirAll(a.dir, 0750); err != nil {
		return "", err
	}
	name := filepath.Join(a.dir, createdAt.Format(artifactTimeLayout)+"-"+key+".json")
	if err := writeFileAtomic(a.fs, name, body); err != nil {
		return "", err
	}
	return name, nil
}

// Load reads an artifact.
func (a *Artifacts) Load(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// Exists reports whether the artifact at path is present.
func (a *Artifacts) Exists(path string) bool {
	ok, err := afero.Exists(a.fs, path)
	return err == nil && ok
}

// Remove deletes an artifact. A missing file is not an error.
func (a *Artifacts) Remove(path string) error {
	if err := a.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every artifact in paths. It keeps going past failures
// and returns them joined.
func (a *Artifacts) RemoveAll(paths []string) error {
	var errs []error
	for _, path := range paths {
		if err := a.Remove(path); err != nil {
			errs = append(errs, fmt.Errorf("removing artifact %s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}

func writeFileAtomic(fs afero.Fs, name string, data []byte) error {
	tmp := name + "~"
	if err := afero.WriteFile(fs, tmp, data, 0640); err != nil {
		return err
	}
	if err := fs.Rename(tmp, name); err != nil {
		_ = fs.Remove(tmp)
		return err
	}
	return nil
}
