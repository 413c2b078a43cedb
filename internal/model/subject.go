package model

import "time"

type Subject struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// DefaultSubjects are available to every student.
var DefaultSubjects = []Subject{
	{ID: "korean", Name: "Korean", Emoji: "📖", IsDefault: true},
	{ID: "english", Name: "English", Emoji: "🔤", IsDefault: true},
	{ID: "math", Name: "Math", Emoji: "🔢", IsDefault: true},
}
