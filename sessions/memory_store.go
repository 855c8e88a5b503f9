package sessions

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
)

// memoryEntry guards one in-memory conversation
type memoryEntry struct {
	mu   sync.RWMutex
	conv *Conversation
}

// MemoryStore implements a thread-safe in-memory conversation store
type MemoryStore struct {
	sync.Map
	config *Config
}

// NewMemoryStore creates a new thread-safe in-memory store
func NewMemoryStore(config *Config) *MemoryStore {
	return &MemoryStore{config: config.withDefaults()}
}

// Create starts a new conversation
func (s *MemoryStore) Create(model string) (*Conversation, error) {
	for {
		conv := newConversation(NewID(), s.config, model)
		if _, loaded := s.LoadOrStore(conv.ID, &memoryEntry{conv: conv}); !loaded {
			return conv.Clone(), nil
		}
	}
}

func (s *MemoryStore) entry(id string) (*memoryEntry, error) {
	value, ok := s.Load(id)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return value.(*memoryEntry), nil
}

// Get returns a copy of a conversation
func (s *MemoryStore) Get(id string) (*Conversation, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.conv.Clone(), nil
}

// List returns all conversations, newest first
func (s *MemoryStore) List() ([]*Conversation, error) {
	var convs []*Conversation
	s.Range(func(_, value any) bool {
		e := value.(*memoryEntry)
		e.mu.RLock()
		convs = append(convs, e.conv.Clone())
		e.mu.RUnlock()
		return true
	})
	sortNewestFirst(convs)
	return convs, nil
}

// Delete removes a conversation
func (s *MemoryStore) Delete(id string) error {
	if _, loaded := s.LoadAndDelete(id); !loaded {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return nil
}

// Append adds a message to a conversation
func (s *MemoryStore) Append(id string, msg messages.ChatMessage) (*Conversation, error) {
	var out *Conversation
	err := s.update(id, func(c *Conversation) {
		c.appendMessage(msg, s.config.MaxHistory)
		out = c.Clone()
	})
	return out, err
}

// Rename sets a conversation's title
func (s *MemoryStore) Rename(id, title string) error {
	return s.update(id, func(c *Conversation) {
		c.Metadata.Title = title
	})
}

// SetModel binds a conversation to a model
func (s *MemoryStore) SetModel(id, model string) error {
	return s.update(id, func(c *Conversation) {
		c.Metadata.Model = model
	})
}

// Update applies a partial metadata update
func (s *MemoryStore) Update(id string, update *Metadata) error {
	return s.update(id, func(c *Conversation) {
		c.Metadata = MergeMetadata(c.Metadata, update)
	})
}

func (s *MemoryStore) update(id string, fn func(*Conversation)) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conv.Metadata == nil {
		e.conv.Metadata = &Metadata{}
	}
	fn(e.conv)
	e.conv.Updated = time.Now()
	return nil
}

func sortNewestFirst(convs []*Conversation) {
	slices.SortStableFunc(convs, func(a, b *Conversation) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return compareStrings(a.ID, b.ID)
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
