package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk"`
	Email     string    `bun:"email,unique,notnull"`
	FullName  string    `bun:"full_name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
