package domain

// Principal is an authenticated identity.
type Principal struct {
	ID     string
	Active bool
}
