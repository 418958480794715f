package model

type User struct {
	// ID doubles as the wallet account id (a phone number).
	ID       string `json:"id"`
	Name     string `json:"name"`
	Password string `json:"-"`
}
