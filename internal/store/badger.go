package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zhouzirui/atlas/backend/internal/model/chat"
	"github.com/zhouzirui/atlas/backend/internal/model/progress"
)

// Badger is a Repository backed by BadgerDB with msgpack-encoded values.
//
// Key layout:
//
//	session:<id>          chat.Session
//	seq:<id>              uint64 next message sequence
//	msg:<id>:<seq>        chat.Message, seq big-endian so keys sort in order
//	progress:<id>         progress.Progression
type Badger struct {
	db *badger.DB
}

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	// Dir is the data directory. Required unless InMemory is set.
	Dir string

	// InMemory runs BadgerDB without disk persistence.
	InMemory bool
}

// NewBadger opens a BadgerDB-backed repository.
func NewBadger(opts BadgerOptions) (*Badger, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: badger data dir is required")
	}
	dbOpts := badger.DefaultOptions(opts.Dir).WithLogger(badgerLogger{})
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}
	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Badger{db: db}, nil
}

func sessionKey(id string) []byte  { return []byte("session:" + id) }
func seqKey(id string) []byte      { return []byte("seq:" + id) }
func progressKey(id string) []byte { return []byte("progress:" + id) }
func messagePrefix(id string) []byte {
	return []byte("msg:" + id + ":")
}

func messageKey(id string, seq uint64) []byte {
	key := messagePrefix(id)
	return binary.BigEndian.AppendUint64(key, seq)
}

func (b *Badger) CreateSession(_ context.Context, session chat.Session) error {
	sessionVal, err := msgpack.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	progressVal, err := msgpack.Marshal(progress.New(session.ID))
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(sessionKey(session.ID), sessionVal); err != nil {
			return err
		}
		return txn.Set(progressKey(session.ID), progressVal)
	})
}

func (b *Badger) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	var session chat.Session
	err := b.db.View(func(txn *badger.Txn) error {
		return getValue(txn, sessionKey(sessionID), &session)
	})
	return session, err
}

func (b *Badger) AppendMessage(_ context.Context, msg chat.Message) error {
	val, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(msg.SessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}

		var seq uint64
		item, err := txn.Get(seqKey(msg.SessionID))
		switch {
		case err == nil:
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			seq = binary.BigEndian.Uint64(raw)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(messageKey(msg.SessionID, seq), val); err != nil {
			return err
		}
		return txn.Set(seqKey(msg.SessionID), binary.BigEndian.AppendUint64(nil, seq+1))
	})
}

func (b *Badger) LoadHistory(_ context.Context, sessionID string) ([]chat.Message, error) {
	var messages []chat.Message
	err := b.db.View(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(sessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}

		prefix := messagePrefix(sessionID)
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var msg chat.Message
			if err := msgpack.Unmarshal(raw, &msg); err != nil {
				return fmt.Errorf("decode message: %w", err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

func (b *Badger) GetProgress(_ context.Context, sessionID string) (progress.Progression, error) {
	var p progress.Progression
	err := b.db.View(func(txn *badger.Txn) error {
		return getValue(txn, progressKey(sessionID), &p)
	})
	return p, err
}

func (b *Badger) SaveProgress(_ context.Context, p progress.Progression) error {
	val, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(sessionKey(p.SessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		return txn.Set(progressKey(p.SessionID), val)
	})
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("store: badger closed")
	}
	return nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func getValue(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if err := msgpack.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// badgerLogger routes badger warnings and errors to the standard logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Printf("[badger] ERROR: "+f, v...) }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Printf("[badger] WARN: "+f, v...) }
func (badgerLogger) Infof(string, ...interface{})        {}
func (badgerLogger) Debugf(string, ...interface{})       {}
