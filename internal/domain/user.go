package domain

import "github.com/google/uuid"

type Users struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserName     string    `db:"user_name" json:"user_name"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash *string   `db:"password_hash" json:"-"`
	IsAdmin      bool      `db:"is_admin" json:"is_admin"`
}

type UsersTable struct {
	ID           string
	UserName     string
	DisplayName  string
	PasswordHash string
	IsAdmin      string
}

func GetUserTable() UsersTable {
	return UsersTable{
		ID:           "id",
		UserName:     "user_name",
		DisplayName:  "display_name",
		PasswordHash: "password_hash",
		IsAdmin:      "is_admin",
	}
}

func (t UsersTable) GetTableName() string {
	return "users"
}
