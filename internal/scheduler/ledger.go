package scheduler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	remindersBucket   = []byte("reminders")
	occurrencesBucket = []byte("occurrences")
)

// Ledger remembers which reminders were delivered and which occurrences were
// spawned so a crash between delivery and bookkeeping never repeats work.
type Ledger struct {
	db *bolt.DB
}

type ledgerRecord struct {
	At  time.Time `json:"at"`
	Ref string    `json:"ref,omitempty"`
}

func OpenLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{remindersBucket, occurrencesBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func reminderKey(taskID, reminderID string) []byte {
	return []byte(taskID + "/" + reminderID)
}

func occurrenceKey(seriesID string, occurrence int) []byte {
	return []byte(fmt.Sprintf("%s/%06d", seriesID, occurrence))
}

func (l *Ledger) ReminderDelivered(taskID, reminderID string) (bool, error) {
	return l.has(remindersBucket, reminderKey(taskID, reminderID))
}

func (l *Ledger) RecordReminder(taskID, reminderID string, at time.Time) error {
	return l.put(remindersBucket, reminderKey(taskID, reminderID), ledgerRecord{At: at})
}

// OccurrenceSpawned reports whether the occurrence after the given one was
// already created for the series.
func (l *Ledger) OccurrenceSpawned(seriesID string, occurrence int) (bool, error) {
	return l.has(occurrencesBucket, occurrenceKey(seriesID, occurrence))
}

func (l *Ledger) RecordOccurrence(seriesID string, occurrence int, taskID string, at time.Time) error {
	return l.put(occurrencesBucket, occurrenceKey(seriesID, occurrence), ledgerRecord{At: at, Ref: taskID})
}

// Counts returns the number of entries per bucket.
func (l *Ledger) Counts() (reminders, occurrences int, err error) {
	if l == nil || l.db == nil {
		return 0, 0, bolt.ErrDatabaseNotOpen
	}
	err = l.db.View(func(tx *bolt.Tx) error {
		reminders = tx.Bucket(remindersBucket).Stats().KeyN
		occurrences = tx.Bucket(occurrencesBucket).Stats().KeyN
		return nil
	})
	return reminders, occurrences, err
}

func (l *Ledger) has(bucket, key []byte) (bool, error) {
	if l == nil || l.db == nil {
		return false, bolt.ErrDatabaseNotOpen
	}
	var found bool
	err := l.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(bucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (l *Ledger) put(bucket, key []byte, rec ledgerRecord) error {
	if l == nil || l.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, payload)
	})
}
