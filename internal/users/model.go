package users

import "time"

// User is an account holder. PasswordHash is empty for Google-only accounts.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Phone        string
	Company      string
	Street       string
	City         string
	State        string
	Zip          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the user as returned by the API.
type Profile struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Phone:   u.Phone,
		Company: u.Company,
		Street:  u.Street,
		City:    u.City,
		State:   u.State,
		Zip:     u.Zip,
	}
}
