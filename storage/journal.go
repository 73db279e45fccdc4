package storage

import (
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"

	"lendpool/core/types"
)

var bucketEvents = []byte("events")

// Journal persists emitted domain events in order, backed by BoltDB. It is an
// audit trail; the pool's accounting never reads from it.
type Journal struct {
	db *bolt.DB
}

// JournalEntry is the stored form of an emitted event.
type JournalEntry struct {
	Sequence   uint64            `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
	EmittedAt  time.Time         `json:"emittedAt"`
}

// OpenJournal initialises (and migrates) the BoltDB-backed journal.
func OpenJournal(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying Bolt database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append records an event under the next sequence number.
func (j *Journal) Append(event *types.Event) error {
	if j == nil || j.db == nil || event == nil {
		return nil
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketEvents)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry := JournalEntry{
			Sequence:   seq,
			Type:       event.Type,
			Attributes: event.Attributes,
			EmittedAt:  time.Now().UTC(),
		}
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, raw)
	})
}

// Tail returns up to limit of the most recent entries, oldest first.
func (j *Journal) Tail(limit int) ([]JournalEntry, error) {
	if j == nil || j.db == nil || limit <= 0 {
		return nil, nil
	}
	var entries []JournalEntry
	err := j.db.View(func(tx *bolt.Tx) error {
		cursor := tx.Bucket(bucketEvents).Cursor()
		for k, v := cursor.Last(); k != nil && len(entries) < limit; k, v = cursor.Prev() {
			var entry JournalEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, jdx := 0, len(entries)-1; i < jdx; i, jdx = i+1, jdx-1 {
		entries[i], entries[jdx] = entries[jdx], entries[i]
	}
	return entries, nil
}
