// internal/model/client.go
package model

import "github.com/google/uuid"

type Client struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Name  string    `db:"client_name" json:"client_name"`
	Phone string    `db:"client_phone" json:"client_phone"`
}
