package settings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/qieqieplus/meeting-client/pkg/log"
)

const (
	// FileName is the bbolt file created inside the data directory.
	FileName = "settings.db"
	// Bucket holds one entry per setting, value JSON-encoded.
	Bucket = "settings"
)

type subscription struct {
	deliver func(data []byte)
	done    func()
}

// Store persists typed settings and notifies per-key subscribers after
// every committed change.
type Store struct {
	db *bbolt.DB

	mu     sync.RWMutex
	subs   map[string]map[uint64]subscription
	hooks  map[uint64]func(name string)
	nextID uint64
	closed bool
}

// Open opens (or creates) the settings database in dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	path := filepath.Join(dataDir, FileName)
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open settings database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(Bucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize settings bucket: %w", err)
	}

	log.Debugf("Opened settings store at %s", path)
	return &Store{
		db:    db,
		subs:  make(map[string]map[uint64]subscription),
		hooks: make(map[uint64]func(string)),
	}, nil
}

// Close closes the database and every subscription channel.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[string]map[uint64]subscription)
	s.hooks = make(map[uint64]func(string))
	s.mu.Unlock()

	for _, byID := range subs {
		for _, sub := range byID {
			sub.done()
		}
	}

	return s.db.Close()
}

// Get returns the stored value of k, or its default when unset or
// unreadable.
func Get[T any](s *Store, k Key[T]) T {
	data, err := s.raw(k.Name)
	if err != nil {
		log.Warnf("Failed to read setting %s: %v", k.Name, err)
		return k.Default
	}
	return decode(k, data)
}

// Set stores v under k and notifies subscribers if the value changed.
func Set[T any](s *Store, k Key[T], v T) error {
	return s.Edit(func(e *Editor) error {
		Put(e, k, v)
		return nil
	})
}

// Subscribe delivers every committed change of k. The channel keeps only
// the latest value. Call the returned function to unsubscribe; it closes
// the channel.
func Subscribe[T any](s *Store, k Key[T]) (<-chan T, func()) {
	ch := make(chan T, 1)
	deliver := func(data []byte) {
		v := decode(k, data)
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}

	var once sync.Once
	done := func() { once.Do(func() { close(ch) }) }

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		done()
		return ch, func() {}
	}
	s.nextID++
	id := s.nextID
	if s.subs[k.Name] == nil {
		s.subs[k.Name] = make(map[uint64]subscription)
	}
	s.subs[k.Name][id] = subscription{deliver: deliver, done: done}
	s.mu.Unlock()

	return ch, func() {
		// No delivery is in flight once removed under the write lock.
		s.mu.Lock()
		delete(s.subs[k.Name], id)
		s.mu.Unlock()
		done()
	}
}

// OnConstraintChange registers fn to be called with the name of every
// changed constraint-affecting setting. It returns an unregister function.
func (s *Store) OnConstraintChange(fn func(name string)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.hooks[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.hooks, id)
		s.mu.Unlock()
	}
}

// Editor batches several writes into one transaction.
type Editor struct {
	bucket  *bbolt.Bucket
	changed []string
	values  map[string][]byte
	err     error
}

// Put stages v under k. The first error aborts the whole batch.
func Put[T any](e *Editor, k Key[T], v T) {
	data, err := json.Marshal(v)
	if err != nil {
		e.fail(fmt.Errorf("encode %s: %w", k.Name, err))
		return
	}
	e.putRaw(k.Name, data)
}

func (e *Editor) putRaw(name string, data []byte) {
	if e.err != nil {
		return
	}
	if bytes.Equal(e.bucket.Get([]byte(name)), data) {
		return
	}
	if err := e.bucket.Put([]byte(name), data); err != nil {
		e.fail(fmt.Errorf("write %s: %w", name, err))
		return
	}
	if _, seen := e.values[name]; !seen {
		e.changed = append(e.changed, name)
	}
	e.values[name] = data
}

func (e *Editor) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Edit runs fn inside a single write transaction. Either every Put is
// committed or none is. Subscribers are notified after the commit.
func (s *Store) Edit(fn func(e *Editor) error) error {
	if s.isClosed() {
		return ErrClosed
	}

	var committed *Editor
	err := s.db.Update(func(tx *bbolt.Tx) error {
		e := &Editor{bucket: tx.Bucket([]byte(Bucket)), values: make(map[string][]byte)}
		if err := fn(e); err != nil {
			return err
		}
		if e.err != nil {
			return e.err
		}
		committed = e
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(committed.changed, committed.values)
	return nil
}

// SetRaw parses raw according to the type of the named setting and stores it.
func (s *Store) SetRaw(name, raw string) error {
	entry, ok := registry[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	data, err := entry.parse(raw)
	if err != nil {
		return err
	}
	return s.Edit(func(e *Editor) error {
		e.putRaw(name, data)
		return nil
	})
}

// Value returns the current value of the named setting.
func (s *Store) Value(name string) (any, error) {
	entry, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	data, err := s.raw(name)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return entry.def, nil
	}
	v, err := entry.decode(data)
	if err != nil {
		log.Warnf("Setting %s holds unreadable value, using default: %v", name, err)
		return entry.def, nil
	}
	return v, nil
}

// Snapshot returns every setting with its current value.
func (s *Store) Snapshot() (map[string]any, error) {
	out := make(map[string]any, len(registry))
	for _, name := range Names() {
		v, err := s.Value(name)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func (s *Store) raw(name string) ([]byte, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}

	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket([]byte(Bucket)).Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	return data, err
}

func (s *Store) notify(changed []string, values map[string][]byte) {
	if len(changed) == 0 {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, name := range changed {
		log.WithFields(log.Fields{"key": name}).Debug("Setting changed")
		for _, sub := range s.subs[name] {
			sub.deliver(values[name])
		}
		if IsConstraintKey(name) {
			for _, hook := range s.hooks {
				hook(name)
			}
		}
	}
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func decode[T any](k Key[T], data []byte) T {
	if data == nil {
		return k.Default
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		log.Warnf("Setting %s holds unreadable value, using default: %v", k.Name, err)
		return k.Default
	}
	return v
}
