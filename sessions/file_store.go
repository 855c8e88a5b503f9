package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alexschlessinger/deskchat/messages"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const (
	lockTimeout = 10 * time.Second
	lockRetry   = 100 * time.Millisecond
)

// FileStore implements a file-based conversation store: one JSON file per
// conversation, each access serialized by an exclusive lock on that file.
type FileStore struct {
	baseDir string
	config  *Config
}

// NewFileStore creates a file-based store rooted at baseDir.
// An empty baseDir means ~/.deskchat/conversations.
func NewFileStore(baseDir string, config *Config) (*FileStore, error) {
	if baseDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".deskchat", "conversations")
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create conversation directory: %w", err)
	}

	return &FileStore{
		baseDir: baseDir,
		config:  config.withDefaults(),
	}, nil
}

// BaseDir returns the directory holding the conversation files
func (s *FileStore) BaseDir() string {
	return s.baseDir
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// lock acquires the exclusive lock on a conversation file, retrying every 100ms
// for up to 10 seconds. The file is created if missing.
func (s *FileStore) lock(path string) (*flock.Flock, error) {
	fileLock := flock.New(path)

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(ctx, lockRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("could not acquire lock within %s", lockTimeout)
	}
	return fileLock, nil
}

// Create starts a new conversation
func (s *FileStore) Create(model string) (*Conversation, error) {
	var conv *Conversation
	var path string
	for {
		conv = newConversation(NewID(), s.config, model)
		path = s.path(conv.ID)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
	}

	fileLock, err := s.lock(path)
	if err != nil {
		return nil, err
	}
	defer fileLock.Unlock()

	if err := write(path, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get loads a conversation
func (s *FileStore) Get(id string) (*Conversation, error) {
	var out *Conversation
	err := s.withConversation(id, false, func(c *Conversation) {
		out = c
	})
	return out, err
}

// List returns all readable conversations, newest first
func (s *FileStore) List() ([]*Conversation, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	var convs []*Conversation
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		conv, err := read(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			// Skip files being created or written by other processes
			zap.S().Debugw("conversation_file_skipped", "file", entry.Name(), "error", err)
			continue
		}
		convs = append(convs, conv)
	}
	sortNewestFirst(convs)
	return convs, nil
}

// Delete removes a conversation file
func (s *FileStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("invalid conversation id %q: %w", id, err)
	}
	// Unlink even if another process holds the lock; it disappears for new reads
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return err
	}
	return nil
}

// Append adds a message to a conversation
func (s *FileStore) Append(id string, msg messages.ChatMessage) (*Conversation, error) {
	var out *Conversation
	err := s.withConversation(id, true, func(c *Conversation) {
		c.appendMessage(msg, s.config.MaxHistory)
		out = c.Clone()
	})
	return out, err
}

// Rename sets a conversation's title
func (s *FileStore) Rename(id, title string) error {
	return s.withConversation(id, true, func(c *Conversation) {
		c.Metadata.Title = title
		c.Updated = time.Now()
	})
}

// SetModel binds a conversation to a model
func (s *FileStore) SetModel(id, model string) error {
	return s.withConversation(id, true, func(c *Conversation) {
		c.Metadata.Model = model
		c.Updated = time.Now()
	})
}

// Update applies a partial metadata update
func (s *FileStore) Update(id string, update *Metadata) error {
	return s.withConversation(id, true, func(c *Conversation) {
		c.Metadata = MergeMetadata(c.Metadata, update)
		c.Updated = time.Now()
	})
}

// withConversation runs fn on a conversation under its file lock, saving it
// afterwards when save is set
func (s *FileStore) withConversation(id string, save bool, fn func(*Conversation)) error {
	if err := validateID(id); err != nil {
		return fmt.Errorf("invalid conversation id %q: %w", id, err)
	}

	path := s.path(id)
	// flock creates missing files, so existence is checked before locking
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return err
	}

	fileLock, err := s.lock(path)
	if err != nil {
		return err
	}
	defer fileLock.Unlock()

	conv, err := read(path)
	if err != nil {
		return err
	}
	if conv.Metadata == nil {
		conv.Metadata = &Metadata{Title: s.config.DefaultTitle}
	}

	fn(conv)

	if !save {
		return nil
	}
	return write(path, conv)
}

func read(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%s: empty conversation file", filepath.Base(path))
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if conv.History == nil {
		conv.History = []messages.ChatMessage{}
	}
	return &conv, nil
}

// write persists the conversation in place; the file is held locked, so it
// is rewritten rather than replaced
func write(path string, conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
