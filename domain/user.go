package domain

import "time"

// User owns one or more characters.
type User struct {
	ID        string    `bson:"_id"` // uuid
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// UserCharacter links a character to its user. A character has at most one link.
type UserCharacter struct {
	CharacterID int64     `bson:"_id"`
	UserID      string    `bson:"user_id"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}
