package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"paperlock/internal/paperlock"
)

// BadgerChain is a durable paperlock.Chain on BadgerDB. Each key has a head
// record holding its latest sequence number and an immutable record per
// committed entry:
//
//	s\x00<key>              -> big-endian uint64 latest seq
//	h\x00<key>\x00<seq>     -> JSON storedEntry
//	e\x00<key>\x00<seq>     -> JSON storedEvent
//
// Writes run in serializable Badger transactions, so a check and the write it
// guards commit together or not at all.
type BadgerChain struct {
	db    *badger.DB
	clock paperlock.Clock
	ids   paperlock.IDGenerator
}

var _ paperlock.Chain = (*BadgerChain)(nil)

type storedEntry struct {
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	Value     []byte    `json:"value"`
}

type storedEvent struct {
	Name      string    `json:"name"`
	TxID      string    `json:"tx_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload,omitempty"`
}

// NewBadgerChain opens (or creates) a chain in dir. An empty dir opens an
// in-memory database.
func NewBadgerChain(dir string, clock paperlock.Clock, ids paperlock.IDGenerator, logger paperlock.Logger) (*BadgerChain, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(&badgerLogger{l: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger chain: %w", err)
	}
	return &BadgerChain{db: db, clock: clock, ids: ids}, nil
}

func (c *BadgerChain) Get(ctx context.Context, key string) (*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var entry *paperlock.ChainEntry
	err := c.db.View(func(txn *badger.Txn) error {
		seq, err := headSeq(txn, key)
		if err != nil {
			return err
		}
		entry, err = readEntry(txn, key, seq)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *BadgerChain) Insert(ctx context.Context, key string, value []byte, event *paperlock.ChainEvent) (*paperlock.ChainEntry, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var entry *paperlock.ChainEntry
	err := c.update(ctx, func(txn *badger.Txn) error {
		_, err := headSeq(txn, key)
		switch {
		case err == nil:
			return paperlock.ErrKeyExists
		case !errors.Is(err, paperlock.ErrKeyNotFound):
			return err
		}
		entry, err = c.write(txn, key, 1, value, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *BadgerChain) Update(ctx context.Context, key string, fn paperlock.UpdateFunc) (*paperlock.ChainEntry, error) {
	var entry *paperlock.ChainEntry
	err := c.update(ctx, func(txn *badger.Txn) error {
		seq, err := headSeq(txn, key)
		if err != nil {
			return err
		}
		latest, err := readEntry(txn, key, seq)
		if err != nil {
			return err
		}

		next, event, err := fn(latest.Value)
		if err != nil {
			return err
		}
		if next == nil {
			entry = latest
			return nil
		}
		entry, err = c.write(txn, key, seq+1, next, event)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *BadgerChain) History(ctx context.Context, key string) ([]*paperlock.ChainEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*paperlock.ChainEntry
	err := c.db.View(func(txn *badger.Txn) error {
		return scan(txn, entryPrefix(key), func(k, v []byte) error {
			var se storedEntry
			if err := json.Unmarshal(v, &se); err != nil {
				return fmt.Errorf("decoding chain entry: %w", err)
			}
			out = append(out, &paperlock.ChainEntry{
				Key:       key,
				Seq:       int64(binary.BigEndian.Uint64(k[len(k)-8:])),
				TxID:      se.TxID,
				Timestamp: se.Timestamp,
				Value:     se.Value,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, paperlock.ErrKeyNotFound
	}
	return out, nil
}

func (c *BadgerChain) Events(ctx context.Context, key string) ([]*paperlock.ChainEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*paperlock.ChainEvent
	err := c.db.View(func(txn *badger.Txn) error {
		return scan(txn, eventPrefix(key), func(_, v []byte) error {
			var se storedEvent
			if err := json.Unmarshal(v, &se); err != nil {
				return fmt.Errorf("decoding chain event: %w", err)
			}
			out = append(out, &paperlock.ChainEvent{
				Name:      se.Name,
				Key:       key,
				TxID:      se.TxID,
				Timestamp: se.Timestamp,
				Payload:   se.Payload,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BadgerChain) Close() error {
	return c.db.Close()
}

// update runs fn in a read-write transaction, retrying when Badger reports a
// conflict. A conflict means another transaction committed, so retries make
// progress; fn must tolerate being run more than once.
func (c *BadgerChain) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
}

// write stores entry seq of key, moves the head and stores the event.
func (c *BadgerChain) write(txn *badger.Txn, key string, seq uint64, value []byte, event *paperlock.ChainEvent) (*paperlock.ChainEntry, error) {
	se := storedEntry{TxID: c.ids.New(), Timestamp: c.clock.Now().UTC(), Value: value}
	data, err := json.Marshal(se)
	if err != nil {
		return nil, fmt.Errorf("encoding chain entry: %w", err)
	}
	if err := txn.Set(entryKey(key, seq), data); err != nil {
		return nil, fmt.Errorf("writing chain entry: %w", err)
	}
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], seq)
	if err := txn.Set(headKey(key), head[:]); err != nil {
		return nil, fmt.Errorf("writing chain head: %w", err)
	}

	if event != nil {
		ev, err := json.Marshal(storedEvent{Name: event.Name, TxID: se.TxID, Timestamp: se.Timestamp, Payload: event.Payload})
		if err != nil {
			return nil, fmt.Errorf("encoding chain event: %w", err)
		}
		if err := txn.Set(eventKey(key, seq), ev); err != nil {
			return nil, fmt.Errorf("writing chain event: %w", err)
		}
	}

	return &paperlock.ChainEntry{
		Key:       key,
		Seq:       int64(seq),
		TxID:      se.TxID,
		Timestamp: se.Timestamp,
		Value:     append([]byte(nil), value...),
	}, nil
}

func headSeq(txn *badger.Txn, key string) (uint64, error) {
	item, err := txn.Get(headKey(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, paperlock.ErrKeyNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading chain head: %w", err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return 0, fmt.Errorf("reading chain head: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("corrupt chain head for %q", key)
	}
	return binary.BigEndian.Uint64(v), nil
}

func readEntry(txn *badger.Txn, key string, seq uint64) (*paperlock.ChainEntry, error) {
	item, err := txn.Get(entryKey(key, seq))
	if err != nil {
		return nil, fmt.Errorf("reading chain entry %d of %q: %w", seq, key, err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("reading chain entry %d of %q: %w", seq, key, err)
	}
	var se storedEntry
	if err := json.Unmarshal(v, &se); err != nil {
		return nil, fmt.Errorf("decoding chain entry: %w", err)
	}
	return &paperlock.ChainEntry{Key: key, Seq: int64(seq), TxID: se.TxID, Timestamp: se.Timestamp, Value: se.Value}, nil
}

func scan(txn *badger.Txn, prefix []byte, fn func(k, v []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		v, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), v); err != nil {
			return err
		}
	}
	return nil
}

func headKey(key string) []byte {
	return append([]byte("s\x00"), key...)
}

func entryPrefix(key string) []byte {
	return append(append([]byte("h\x00"), key...), 0)
}

func eventPrefix(key string) []byte {
	return append(append([]byte("e\x00"), key...), 0)
}

func entryKey(key string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(entryPrefix(key), seq)
}

func eventKey(key string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(eventPrefix(key), seq)
}

// badgerLogger routes Badger's internal logging into the engine logger.
// Badger's info output is routine compaction chatter, so it is logged at debug.
type badgerLogger struct {
	l paperlock.Logger
}

func (b *badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Infof(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}

func (b *badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), "component", "badger")
}
