package domain

import "time"

// MetadataUserIDKey - ключ метаданных Stripe, в котором хранится внешний ID пользователя
const MetadataUserIDKey = "userId"

// Customer представляет собой клиента Stripe
type Customer struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt *time.Time        `json:"createdAt,omitempty"`
}

// UserID возвращает внешний ID пользователя из метаданных
func (c *Customer) UserID() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetadataUserIDKey]
}

// CustomerParams параметры создания клиента
type CustomerParams struct {
	Email    string
	Name     string
	Metadata map[string]string
}
