package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON document per chat under dir. Writes go to a temp
// file that is renamed into place, so a chat file is always complete.
// The mutex serializes writers within this process only.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

var _ Store = (*FileStore)(nil)

type chatFile struct {
	Name      string        `json:"name"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []fileMessage `json:"messages"`
}

type fileMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFileStore creates dir if needed and seeds the default chat.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create chat dir: %w", ErrStorage, err)
	}
	s := &FileStore{dir: dir}
	if err := s.Ensure(context.Background(), DefaultChat); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(name))+".json")
}

func (s *FileStore) read(name string) (*chatFile, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, err
	}
	var cf chatFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return &cf, nil
}

func (s *FileStore) write(cf *chatFile) error {
	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".chat-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(cf.Name))
}

// readOrNew returns the stored chat, or a fresh unsaved one if absent.
func (s *FileStore) readOrNew(name string) (*chatFile, error) {
	cf, err := s.read(name)
	if errors.Is(err, fs.ErrNotExist) {
		now := time.Now()
		return &chatFile{Name: name, CreatedAt: now, UpdatedAt: now, Messages: []fileMessage{}}, nil
	}
	return cf, err
}

func (s *FileStore) exists(name string) (bool, error) {
	_, err := os.Stat(s.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (s *FileStore) Load(ctx context.Context, name string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return []Message{}, nil
	}
	if err != nil {
		return nil, storageErr("load chat", err)
	}
	out := make([]Message, len(cf.Messages))
	for i, m := range cf.Messages {
		out[i] = Message{Position: i, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	return out, nil
}

func (s *FileStore) Save(ctx context.Context, name string, messages []Message) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := validateMessages(messages); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.readOrNew(name)
	if err != nil {
		return storageErr("save chat", err)
	}
	now := time.Now()
	cf.Messages = make([]fileMessage, len(messages))
	for i, m := range messages {
		at := m.CreatedAt
		if at.IsZero() {
			at = now
		}
		cf.Messages[i] = fileMessage{Role: m.Role, Content: m.Content, CreatedAt: at}
	}
	cf.UpdatedAt = now
	return storageErr("save chat", s.write(cf))
}

func (s *FileStore) Clear(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cf, err := s.readOrNew(name)
	if err != nil {
		return storageErr("clear chat", err)
	}
	cf.Messages = []fileMessage{}
	cf.UpdatedAt = time.Now()
	return storageErr("clear chat", s.write(cf))
}

func (s *FileStore) Rename(ctx context.Context, oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	taken, err := s.exists(newName)
	if err != nil {
		return storageErr("rename chat", err)
	}
	if taken {
		return fmt.Errorf("%w: %s", ErrNameConflict, newName)
	}

	cf, err := s.readOrNew(oldName)
	if err != nil {
		return storageErr("rename chat", err)
	}
	cf.Name = newName
	cf.UpdatedAt = time.Now()
	if err := s.write(cf); err != nil {
		return storageErr("rename chat", err)
	}
	if err := os.Remove(s.path(oldName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("rename chat", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, name string) error {
	if name == DefaultChat {
		return ErrProtectedSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageErr("delete chat", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ok, err := s.exists(DefaultChat); err != nil {
		return nil, storageErr("list chats", err)
	} else if !ok {
		cf, _ := s.readOrNew(DefaultChat)
		if err := s.write(cf); err != nil {
			return nil, storageErr("list chats", err)
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, storageErr("list chats", err)
	}
	chats := make([]*chatFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		cf, err := s.read(string(raw))
		if err != nil {
			return nil, storageErr("list chats", err)
		}
		chats = append(chats, cf)
	}
	sort.SliceStable(chats, func(i, j int) bool {
		if !chats[i].CreatedAt.Equal(chats[j].CreatedAt) {
			return chats[i].CreatedAt.Before(chats[j].CreatedAt)
		}
		return chats[i].Name < chats[j].Name
	})
	names := make([]string, len(chats))
	for i, cf := range chats {
		names[i] = cf.Name
	}
	return names, nil
}

func (s *FileStore) Ensure(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.exists(name)
	if err != nil {
		return storageErr("ensure chat", err)
	}
	if ok {
		return nil
	}
	cf, _ := s.readOrNew(name)
	return storageErr("ensure chat", s.write(cf))
}

func (s *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if len(name) > MaxNameBytes {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.exists(name)
	if err != nil {
		return false, storageErr("check chat", err)
	}
	return ok, nil
}
