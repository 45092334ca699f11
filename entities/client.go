package entities

import (
	"time"
)

// Client is a buyer the freelancer invoices. The NIP is stored normalised
// (digits only) and is unique across all clients.
type Client struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"size:255;not null"`
	NIP        string    `json:"nip" gorm:"size:10;not null;uniqueIndex"`
	Address    string    `json:"address,omitempty" gorm:"size:255"`
	City       string    `json:"city,omitempty" gorm:"size:128"`
	PostalCode string    `json:"postal_code,omitempty" gorm:"size:16"`
	Email      string    `json:"email,omitempty" gorm:"size:255"`
	Phone      string    `json:"phone,omitempty" gorm:"size:64"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Client) TableName() string {
	return "clients"
}

// CreateClientRequest is the payload for creating a client.
type CreateClientRequest struct {
	Name       string `json:"name"`
	NIP        string `json:"nip"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ToClient validates and normalises the request into a Client entity.
func (r *CreateClientRequest) ToClient() (*Client, error) {
	name, err := TrimRequired("name", r.Name, MaxNameLength)
	if err != nil {
		return nil, err
	}
	nip, err := NormalizeNIP(r.NIP)
	if err != nil {
		return nil, err
	}
	address, err := TrimOptional("address", r.Address, MaxNameLength)
	if err != nil {
		return nil, err
	}
	city, err := TrimOptional("city", r.City, 128)
	if err != nil {
		return nil, err
	}
	postalCode, err := TrimOptional("postal_code", r.PostalCode, 16)
	if err != nil {
		return nil, err
	}
	email, err := TrimOptional("email", r.Email, MaxNameLength)
	if err != nil {
		return nil, err
	}
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	phone, err := TrimOptional("phone", r.Phone, 64)
	if err != nil {
		return nil, err
	}
	return &Client{
		Name:       name,
		NIP:        nip,
		Address:    address,
		City:       city,
		PostalCode: postalCode,
		Email:      email,
		Phone:      phone,
	}, nil
}

// UpdateClientRequest carries partial updates; nil fields are left unchanged.
type UpdateClientRequest struct {
	Name       *string `json:"name,omitempty"`
	NIP        *string `json:"nip,omitempty"`
	Address    *string `json:"address,omitempty"`
	City       *string `json:"city,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// ClientResponse is the API representation of a client.
type ClientResponse struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	NIP        string    `json:"nip"`
	Address    string    `json:"address,omitempty"`
	City       string    `json:"city,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
	Email      string    `json:"email,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (c *Client) ToResponse() *ClientResponse {
	return &ClientResponse{
		ID:         c.ID,
		Name:       c.Name,
		NIP:        c.NIP,
		Address:    c.Address,
		City:       c.City,
		PostalCode: c.PostalCode,
		Email:      c.Email,
		Phone:      c.Phone,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}
