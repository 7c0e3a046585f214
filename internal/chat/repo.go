package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Repo is the relational Store: chat_sessions plus chat_messages keyed by the
// session's surrogate id, so renames never touch message rows.
type Repo struct {
	db *gorm.DB
}

var _ Store = (*Repo)(nil)

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the chat tables and seeds the default chat.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(&ChatSession{}, &Message{}); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	if stmt := caseSensitiveNameDDL(db.Dialector.Name()); stmt != "" {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("chat name collation: %w", err)
		}
	}
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureSession(tx, DefaultChat)
		return err
	})
}

// caseSensitiveNameDDL returns the statement that makes chat_sessions.name
// compare byte-wise. sqlite's default BINARY collation already does.
func caseSensitiveNameDDL(dialect string) string {
	switch dialect {
	case "mysql":
		return "ALTER TABLE chat_sessions MODIFY name VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL"
	}
	return ""
}

func findSession(tx *gorm.DB, name string) (*ChatSession, error) {
	var s ChatSession
	if err := tx.Where("name = ?", name).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func ensureSession(tx *gorm.DB, name string) (*ChatSession, error) {
	s := ChatSession{Name: name}
	if err := tx.Where(ChatSession{Name: name}).FirstOrCreate(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Load(ctx context.Context, name string) ([]Message, error) {
	msgs := []Message{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := findSession(tx, name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.Where("chat_session_id = ?", s.ID).
			Order("position ASC").
			Order("created_at ASC").
			Order("id ASC").
			Find(&msgs).Error
	})
	if err != nil {
		return nil, storageErr("load chat", err)
	}
	return msgs, nil
}

// Save deletes every stored message for the chat and reinserts messages in
// order inside one transaction.
func (r *Repo) Save(ctx context.Context, name string, messages []Message) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := validateMessages(messages); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := ensureSession(tx, name)
		if err != nil {
			return err
		}
		if err := tx.Where("chat_session_id = ?", s.ID).Delete(&Message{}).Error; err != nil {
			return err
		}
		if len(messages) == 0 {
			return nil
		}
		rows := make([]Message, len(messages))
		for i, m := range messages {
			rows[i] = Message{
				ChatSessionID: s.ID,
				Position:      i,
				Role:          m.Role,
				Content:       m.Content,
				CreatedAt:     m.CreatedAt,
			}
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}
		return tx.Model(s).Update("updated_at", time.Now()).Error
	})
	return storageErr("save chat", err)
}

func (r *Repo) Clear(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := ensureSession(tx, name)
		if err != nil {
			return err
		}
		return tx.Where("chat_session_id = ?", s.ID).Delete(&Message{}).Error
	})
	return storageErr("clear chat", err)
}

func (r *Repo) Rename(ctx context.Context, oldName, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&ChatSession{}).Where("name = ?", newName).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("%w: %s", ErrNameConflict, newName)
		}

		s, err := findSession(tx, oldName)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			_, err = ensureSession(tx, newName)
			return err
		}
		if err != nil {
			return err
		}
		return tx.Model(s).Update("name", newName).Error
	})
	return storageErr("rename chat", err)
}

func (r *Repo) Delete(ctx context.Context, name string) error {
	if name == DefaultChat {
		return ErrProtectedSession
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		s, err := findSession(tx, name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("chat_session_id = ?", s.ID).Delete(&Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(s).Error
	})
	return storageErr("delete chat", err)
}

// List returns chat names in creation order. The default chat is recreated if
// it has gone missing.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ensureSession(tx, DefaultChat); err != nil {
			return err
		}
		return tx.Model(&ChatSession{}).Order("id ASC").Pluck("name", &names).Error
	})
	if err != nil {
		return nil, storageErr("list chats", err)
	}
	return names, nil
}

func (r *Repo) Ensure(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureSession(tx, name)
		return err
	})
	return storageErr("ensure chat", err)
}

func (r *Repo) Exists(ctx context.Context, name string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&ChatSession{}).Where("name = ?", name).Count(&n).Error
	})
	if err != nil {
		return false, storageErr("check chat", err)
	}
	return n > 0, nil
}
