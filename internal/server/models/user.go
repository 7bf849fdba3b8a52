package models

import "time"

// User is the identity anchor. Password is a bcrypt hash, never the raw
// credential. AvatarKey points at an object in media storage.
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	AvatarKey    string
	CreatedAt    time.Time
}
