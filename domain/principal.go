package domain

// Principal is the resolved identity behind a connection's credential.
// The zero value is Anonymous: a credential that failed to resolve.
type Principal struct {
	UserID UserID
	Email  string
}

var Anonymous = Principal{}

func (p Principal) IsAnonymous() bool {
	return p.UserID == 0
}
