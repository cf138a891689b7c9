// Package agent implements C12, the Device Agent Core: a single-host,
// single-user process that watches a source directory, deduplicates
// against a persistent local cache, and uploads changed pages through a
// bounded, retrying queue (spec §4.9).
package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/seiflotfy/cuckoofilter"
	"github.com/tidwall/buntdb"

	"github.com/OneOfOne/xxhash"
	"github.com/gottino/rmirror-cloud/cmn/cos"
)

// cacheEntry is what AgentLocalDedupCache remembers per path (spec §3):
// enough to skip a re-hash when mtime/size are unchanged, and to skip a
// re-upload when the full hash matches.
type cacheEntry struct {
	ModTime time.Time `json:"mtime"`
	Size    int64     `json:"size"`
	SHA256  string    `json:"sha256"`
}

// DedupCache persists across agent restarts (buntdb-backed, spec §4.9
// "maintain AgentLocalDedupCache"). A cuckoo filter sits in front as a
// cheap negative-lookup short-circuit: a path the filter has never seen
// skips the buntdb lookup; every other path is still looked up.
type DedupCache struct {
	db     *buntdb.DB
	filter *cuckoofilter.CuckooFilter
}

func OpenDedupCache(path string) (*DedupCache, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("agent: open dedup cache: %w", err)
	}
	c := &DedupCache{db: db, filter: cuckoofilter.NewDefaultCuckooFilter()}
	if err := c.rebuildFilter(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *DedupCache) rebuildFilter() error {
	return c.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			c.filter.InsertUnique([]byte(key))
			return true
		})
	})
}

func (c *DedupCache) Close() error { return c.db.Close() }

// QuickHash returns the non-cryptographic xxhash64 of b. Check does not
// use it: change detection there compares mtime/size, then SHA-256.
func QuickHash(b []byte) uint64 { return xxhash.Checksum64(b) }

// Check implements spec §4.9: "read (mtime, size); if unchanged, drop.
// Else compute SHA-256; if hash matches cached, drop; else update cache
// and enqueue." Returns (changed=false) when the event should be dropped.
func (c *DedupCache) Check(path string, info os.FileInfo, content []byte) (changed bool, hash string, err error) {
	if !c.filter.Lookup([]byte(path)) {
		// never seen this path: definitely changed, and worth inserting.
		hash = cos.SHA256Hex(content)
		return true, hash, c.store(path, info, hash)
	}

	var prev cacheEntry
	found := false
	err = c.db.View(func(tx *buntdb.Tx) error {
		v, getErr := tx.Get(path)
		if getErr == buntdb.ErrNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		found = true
		return json.Unmarshal([]byte(v), &prev)
	})
	if err != nil {
		return false, "", err
	}
	if !found {
		hash = cos.SHA256Hex(content)
		return true, hash, c.store(path, info, hash)
	}

	if prev.ModTime.Equal(info.ModTime()) && prev.Size == info.Size() {
		return false, prev.SHA256, nil
	}

	hash = cos.SHA256Hex(content)
	if hash == prev.SHA256 {
		// bytes identical despite mtime/size drift (e.g. touch); update the
		// cheap fields but don't re-upload.
		return false, hash, c.store(path, info, hash)
	}
	return true, hash, c.store(path, info, hash)
}

func (c *DedupCache) store(path string, info os.FileInfo, hash string) error {
	entry := cacheEntry{ModTime: info.ModTime(), Size: info.Size(), SHA256: hash}
	b, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	c.filter.InsertUnique([]byte(path))
	return c.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(path, string(b), nil)
		return err
	})
}
