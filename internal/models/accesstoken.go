package models

import "time"

// AccessToken is a stored credential for one remote provider.
type AccessToken struct {
	ID        int64
	Provider  string
	Tag       string
	Token     string
	Active    bool
	CreatedAt time.Time
}
