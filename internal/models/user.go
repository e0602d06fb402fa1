package models

import (
	"net/url"
	"strconv"
	"time"
)

// User mirrors a remote user profile.
type User struct {
	Remote
	Payload

	FirstName      string
	LastName       string
	ScreenName     string
	Sex            int64
	BirthDate      *time.Time
	City           *City
	FollowersCount int64
	Photo          string
	// Lists holds friend-list ids, comma separated.
	Lists string
}

func (u *User) SetScreenName(s string) { u.ScreenName = s }

// RefreshRequest names the remote call that returns this user alone.
func (u *User) RefreshRequest() (string, url.Values) {
	return "get", url.Values{"user_ids": {strconv.FormatInt(u.RemoteID, 10)}}
}

// Group mirrors a remote community.
type Group struct {
	Remote
	Payload

	Name         string
	ScreenName   string
	Type         string
	IsClosed     int64
	MembersCount int64
}

func (g *Group) SetScreenName(s string) { g.ScreenName = s }

func (g *Group) RefreshRequest() (string, url.Values) {
	return "getById", url.Values{"group_id": {strconv.FormatInt(g.RemoteID, 10)}}
}

// City is a reference record nested inside user profiles.
type City struct {
	Remote

	Title string
}
