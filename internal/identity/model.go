package identity

import "time"

// User is the stored record for a primary phone number.
type User struct {
	UID         string
	Phone       string // hashed primary phone, the record key
	Name        string
	ShowReplies bool
	// Secondary maps additional hashed phones to this user's uid.
	Secondary map[string]string
	CreatedAt time.Time
}

// Identity is the resolved view handed to the session layer.
type Identity struct {
	UID         string
	Phone       string // hashed
	Name        string
	ShowReplies bool
	Operator    bool
}
