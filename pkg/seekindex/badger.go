package seekindex

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Badger is a Store implementation backed by BadgerDB v4.
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the directory for BadgerDB data files.
	// Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB in memory-only mode (no disk persistence).
	// Useful for testing with a real badger engine.
	InMemory bool

	// Logger receives badger's warnings and errors. Defaults to slog.Default().
	Logger *slog.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, errors.New("seekindex: BadgerOptions.Dir is required for on-disk mode")
	}
	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = dbOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	logger := bopts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dbOpts = dbOpts.WithLogger(slogLogger{logger.With("component", "badger")})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("seekindex: open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Put(_ context.Context, rec *Record) error {
	if err := prepare(rec); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		// Another record of the same source goes away.
		item, err := txn.Get(srcKey(rec.Source))
		switch {
		case err == nil:
			old, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if string(old) != rec.ID {
				if err := txn.Delete(recKey(string(old))); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		// So does the source mapping of a record being moved.
		if old, err := getRecord(txn, rec.ID); err == nil && old.Source != rec.Source {
			if err := txn.Delete(srcKey(old.Source)); err != nil {
				return err
			}
		} else if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := txn.Set(recKey(rec.ID), data); err != nil {
			return err
		}
		return txn.Set(srcKey(rec.Source), []byte(rec.ID))
	})
}

func (b *Badger) Get(_ context.Context, id string) (*Record, error) {
	var rec *Record
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	return rec, err
}

func (b *Badger) Lookup(_ context.Context, source string) (*Record, error) {
	var rec *Record
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(srcKey(source))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		rec, err = getRecord(txn, string(id))
		return err
	})
	return rec, err
}

func (b *Badger) Delete(_ context.Context, id string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(recKey(id)); err != nil {
			return err
		}
		return txn.Delete(srcKey(rec.Source))
	})
}

func (b *Badger) List(_ context.Context) iter.Seq2[*Record, error] {
	prefix := []byte(recPrefix)
	return func(yield func(*Record, error) bool) {
		err := b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = prefix
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				val, err := it.Item().ValueCopy(nil)
				if err == nil {
					var rec *Record
					if rec, err = decodeRecord(val); err == nil {
						if !yield(rec, nil) {
							return nil
						}
						continue
					}
				}
				if !yield(nil, err) {
					return nil
				}
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func getRecord(txn *badger.Txn, id string) (*Record, error) {
	item, err := txn.Get(recKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(val)
}

// slogLogger routes badger's log output into slog. Info and debug
// messages are demoted to debug level.
type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Errorf(f string, v ...any)   { s.l.Error(trim(fmt.Sprintf(f, v...))) }
func (s slogLogger) Warningf(f string, v ...any) { s.l.Warn(trim(fmt.Sprintf(f, v...))) }
func (s slogLogger) Infof(f string, v ...any)    { s.l.Debug(trim(fmt.Sprintf(f, v...))) }
func (s slogLogger) Debugf(f string, v ...any)   { s.l.Debug(trim(fmt.Sprintf(f, v...))) }

func trim(s string) string {
	for len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	return s
}
