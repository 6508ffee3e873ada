package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qieqieplus/meeting-client/pkg/log"
)

// Message is a single chat broadcast.
type Message struct {
	ID     string    `json:"id"`
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	Time   time.Time `json:"time"`
	Local  bool      `json:"local"`
}

// NewMessage creates a message stamped with a fresh ID and the current time.
func NewMessage(sender, text string, local bool) Message {
	return Message{
		ID:     uuid.NewString(),
		Sender: sender,
		Text:   text,
		Time:   time.Now(),
		Local:  local,
	}
}

// SendFunc delivers an outgoing message to the call.
type SendFunc func(ctx context.Context, text string) (Message, error)

// Subscriber receives the unread count. Only the latest value is kept.
type Subscriber struct {
	ID        string
	Channel   chan int
	connected bool
	mutex     sync.Mutex
}

// NewSubscriber creates a new unread-count subscriber
func NewSubscriber(id string) *Subscriber {
	return &Subscriber{
		ID:        id,
		Channel:   make(chan int, 1),
		connected: true,
	}
}

// Send replaces any value the consumer has not read yet.
func (s *Subscriber) Send(count int) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.connected {
		return false
	}

	select {
	case <-s.Channel:
	default:
	}
	s.Channel <- count
	return true
}

// Close closes the subscriber
func (s *Subscriber) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.connected {
		s.connected = false
		close(s.Channel)
	}
}

// Store holds the chat state scoped to the current call.
type Store struct {
	mutex       sync.RWMutex
	messages    []Message
	unread      int
	send        SendFunc
	subscribers map[string]*Subscriber
}

// NewStore creates an empty chat store
func NewStore() *Store {
	return &Store{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a new unread-count subscriber and primes it with the
// current count.
func (s *Store) Subscribe() *Subscriber {
	sub := NewSubscriber(uuid.NewString())

	s.mutex.Lock()
	s.subscribers[sub.ID] = sub
	count := s.unread
	s.mutex.Unlock()

	sub.Send(count)
	log.Debugf("Added chat subscriber: %s", sub.ID)
	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (s *Store) Unsubscribe(id string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if sub, exists := s.subscribers[id]; exists {
		sub.Close()
		delete(s.subscribers, id)
		log.Debugf("Removed chat subscriber: %s", id)
	}
}

// SetSendCallback installs the function used by Send.
func (s *Store) SetSendCallback(fn SendFunc) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.send = fn
}

// RemoveSendCallback drops the send function. Pending Send calls that
// already captured it are not affected.
func (s *Store) RemoveSendCallback() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.send = nil
}

// HasSendCallback reports whether a send function is installed.
func (s *Store) HasSendCallback() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.send != nil
}

// Send delivers text through the installed callback and records the
// resulting message as local.
func (s *Store) Send(ctx context.Context, text string) (Message, error) {
	s.mutex.RLock()
	send := s.send
	s.mutex.RUnlock()

	if send == nil {
		return Message{}, ErrNoSendCallback
	}
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	msg, err := send(ctx, text)
	if err != nil {
		return Message{}, err
	}
	msg.Local = true

	s.mutex.Lock()
	s.messages = append(s.messages, msg)
	s.mutex.Unlock()
	return msg, nil
}

// Received records a message from another participant and bumps the unread
// count.
func (s *Store) Received(msg Message) {
	s.mutex.Lock()
	s.messages = append(s.messages, msg)
	s.unread++
	count := s.unread
	subs := s.snapshotSubscribers()
	s.mutex.Unlock()

	publish(subs, count)
}

// MarkRead resets the unread count.
func (s *Store) MarkRead() {
	s.setUnread(0)
}

// Clear drops every message of the current call.
func (s *Store) Clear() {
	s.mutex.Lock()
	s.messages = nil
	s.unread = 0
	subs := s.snapshotSubscribers()
	s.mutex.Unlock()

	publish(subs, 0)
}

// Messages returns a copy of the stored messages, oldest first.
func (s *Store) Messages() []Message {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// UnreadCount returns the number of unread messages
func (s *Store) UnreadCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.unread
}

// Shutdown closes all subscribers
func (s *Store) Shutdown() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, sub := range s.subscribers {
		sub.Close()
		delete(s.subscribers, id)
	}
}

func (s *Store) setUnread(count int) {
	s.mutex.Lock()
	s.unread = count
	subs := s.snapshotSubscribers()
	s.mutex.Unlock()

	publish(subs, count)
}

// snapshotSubscribers must be called with the mutex held.
func (s *Store) snapshotSubscribers() []*Subscriber {
	subs := make([]*Subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

func publish(subs []*Subscriber, count int) {
	for _, sub := range subs {
		sub.Send(count)
	}
}
