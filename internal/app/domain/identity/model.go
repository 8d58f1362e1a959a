package identity

import "strconv"

// User is the platform identity extracted from a verified signed payload.
// Values of this type are only ever produced by a successful verification.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// Key returns the user identifier in the string form used for storage
// lookups and log fields.
func (u User) Key() string {
	return strconv.FormatInt(u.ID, 10)
}
