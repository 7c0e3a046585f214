package chat

import "time"

// DefaultChat is the protected chat every client starts on.
const DefaultChat = "default"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

type ChatSession struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	Name      string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Messages  []Message `gorm:"foreignKey:ChatSessionID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (ChatSession) TableName() string { return "chat_sessions" }

type Message struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	ChatSessionID uint64    `gorm:"not null;index:idx_chat_msg_session_pos,priority:1" json:"-"`
	Position      int       `gorm:"not null;index:idx_chat_msg_session_pos,priority:2" json:"-"`
	Role          Role      `gorm:"type:varchar(16);not null" json:"role"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	CreatedAt     time.Time `json:"-"`
}

func (Message) TableName() string { return "chat_messages" }
