// Package storage persists schema statistics snapshots in BadgerDB so a
// planner process can load the statistics a collector published earlier.
//
// Snapshots are versioned per name and never overwritten: each Save appends a
// new version, and Load returns the newest one.
package storage

import (
	"bytes"
	"encoding/binary"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"

	"github.com/wbrown/glogue/glogue/schema"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a name or version
var ErrSnapshotNotFound = errors.New("statistics snapshot not found")

const keyPrefix = "schema/"

// Snapshot is one stored version of a named statistics set
type Snapshot struct {
	Name       string
	Version    uint64
	Statistics *schema.Statistics
}

// StatsStore stores versioned statistics snapshots
type StatsStore struct {
	db *badger.DB
}

// OpenStatsStore opens (or creates) a store at path
func OpenStatsStore(path string) (*StatsStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Disable BadgerDB logs

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open badger")
	}
	return &StatsStore{db: db}, nil
}

// Close releases the underlying database
func (s *StatsStore) Close() error {
	return s.db.Close()
}

// Save stores stats as the next version of name and returns that version
func (s *StatsStore) Save(name string, stats *schema.Statistics) (uint64, error) {
	if err := validateName(name); err != nil {
		return 0, err
	}
	value, err := stats.Marshal()
	if err != nil {
		return 0, err
	}

	var version uint64
	err = s.db.Update(func(txn *badger.Txn) error {
		latest, found, err := latestVersion(txn, name)
		if err != nil {
			return err
		}
		version = 1
		if found {
			version = latest + 1
		}
		if err := txn.Set(snapshotKey(name, version), value); err != nil {
			return errors.Wrapf(err, "failed to write snapshot %s@%d", name, version)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{
		"name":    name,
		"version": version,
		"bytes":   len(value),
	}).Debug("statistics snapshot saved")
	return version, nil
}

// Load returns the newest snapshot of name
func (s *StatsStore) Load(name string) (*Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var value []byte
	var version uint64
	err := s.db.View(func(txn *badger.Txn) error {
		latest, found, err := latestVersion(txn, name)
		if err != nil {
			return err
		}
		if !found {
			return errors.Wrapf(ErrSnapshotNotFound, "%s", name)
		}
		version = latest
		value, err = readValue(txn, snapshotKey(name, version))
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(name, version, value)
}

// LoadVersion returns one specific version of name
func (s *StatsStore) LoadVersion(name string, version uint64) (*Snapshot, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		value, err = readValue(txn, snapshotKey(name, version))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.Wrapf(ErrSnapshotNotFound, "%s@%d", name, version)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return decodeSnapshot(name, version, value)
}

// Versions returns the stored versions of name in ascending order
func (s *StatsStore) Versions(name string) ([]uint64, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var versions []uint64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = namePrefix(name)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			versions = append(versions, decodeVersion(it.Item().Key()))
		}
		return nil
	})
	return versions, err
}

// Names returns every snapshot name in ascending order
func (s *StatsStore) Names() ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			name := string(key[len(keyPrefix) : len(key)-9])
			if len(names) == 0 || names[len(names)-1] != name {
				names = append(names, name)
			}
		}
		return nil
	})
	sort.Strings(names)
	return names, err
}

// latestVersion finds the newest version of name by reverse iteration
func latestVersion(txn *badger.Txn, name string) (uint64, bool, error) {
	prefix := namePrefix(name)

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Reverse = true

	it := txn.NewIterator(opts)
	defer it.Close()

	// Seek past the largest possible version of this name
	seek := append(append([]byte(nil), prefix...), bytes.Repeat([]byte{0xFF}, 9)...)
	it.Seek(seek)
	if !it.ValidForPrefix(prefix) {
		return 0, false, nil
	}
	return decodeVersion(it.Item().Key()), true, nil
}

func readValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func decodeSnapshot(name string, version uint64, value []byte) (*Snapshot, error) {
	stats, err := schema.Parse(value)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding snapshot %s@%d", name, version)
	}
	return &Snapshot{Name: name, Version: version, Statistics: stats}, nil
}

// namePrefix is "schema/<name>/"; keys append the big-endian version
func namePrefix(name string) []byte {
	return []byte(keyPrefix + name + "/")
}

func snapshotKey(name string, version uint64) []byte {
	key := namePrefix(name)
	return binary.BigEndian.AppendUint64(key, version)
}

func decodeVersion(key []byte) uint64 {
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

func validateName(name string) error {
	if name == "" || strings.Contains(name, "/") {
		return errors.Newf("invalid snapshot name %q", name)
	}
	return nil
}
