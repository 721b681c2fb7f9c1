package domain

// Principal is the verified identity attached to a request or connection.
// It is supplied by the auth layer; the core trusts it opaquely and never
// re-derives it.
type Principal struct {
	UserID string
	Roles  []string
}

func (p Principal) Valid() bool {
	return p.UserID != ""
}
