// Package models defines the client-side data models of the EduMarket
// session layer: backend DTOs and the typed login/register forms.
package models

// User is the account summary nested in a profile.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Profile is returned by GET user/profile/{user_id}/.
type Profile struct {
	ID       int     `json:"id"`
	User     *User   `json:"user,omitempty"`
	Image    *string `json:"image"`
	FullName string  `json:"full_name"`
	Country  *string `json:"country"`
	About    *string `json:"about"`
	Date     string  `json:"date,omitempty"`
}

// TokenPair is the body of the token and token refresh endpoints.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// CartCount is the body of GET cart/cart-count/{cart_id}/.
type CartCount struct {
	Count int `json:"count"`
}
