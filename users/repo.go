package users

import "time"

type UserRepo interface {
	// Upsert stores user, assigning the next ID when user.ID is zero
	Upsert(user *User) error
	GetByUsername(username string) (*User, error)
	GetByID(id int) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetLastLogin(id int, at time.Time) error
}
