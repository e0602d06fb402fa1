package schema

import (
	"time"

	"github.com/dmitrijs2005/vksync/internal/models"
)

func Cities() *Schema[*models.City] {
	return New("city", Fields[*models.City]{
		"title": Text(func(c *models.City, s string) { c.Title = s }),
	})
}

// Users declares the user profile fields. cities resolves a city given by
// bare id.
func Users(cities LookupFunc[*models.City]) *Schema[*models.User] {
	city := OneToOne(Cities(), func() *models.City { return &models.City{} }, cities,
		func(u *models.User, c *models.City) { u.City = c })

	return New("user", Fields[*models.User]{
		"first_name":      Text(func(u *models.User, s string) { u.FirstName = s }),
		"last_name":       Text(func(u *models.User, s string) { u.LastName = s }),
		"screen_name":     Text(func(u *models.User, s string) { u.ScreenName = s }),
		"sex":             Int(func(u *models.User, n int64) { u.Sex = n }),
		"bdate":           Date(func(u *models.User, t *time.Time) { u.BirthDate = t }),
		"followers_count": Int(func(u *models.User, n int64) { u.FollowersCount = n }),
		"photo":           Text(func(u *models.User, s string) { u.Photo = s }),
		"lists":           Delimited(",", func(u *models.User, s string) { u.Lists = s }),
		"city":            city,
	})
}

func Groups() *Schema[*models.Group] {
	return New("group", Fields[*models.Group]{
		"name":          Text(func(g *models.Group, s string) { g.Name = s }),
		"screen_name":   Text(func(g *models.Group, s string) { g.ScreenName = s }),
		"type":          Text(func(g *models.Group, s string) { g.Type = s }),
		"is_closed":     Int(func(g *models.Group, n int64) { g.IsClosed = n }),
		"members_count": Int(func(g *models.Group, n int64) { g.MembersCount = n }),
	})
}

func Posts() *Schema[*models.Post] {
	return New("post", Fields[*models.Post]{
		"owner_id": Ref(func(p *models.Post, r models.Ref) { p.Owner = r }),
		"from_id":  Ref(func(p *models.Post, r models.Ref) { p.Author = r }),
		"text":     Text(func(p *models.Post, s string) { p.Text = s }),
		"date":     Timestamp(func(p *models.Post, t *time.Time) { p.Date = t }),
		"comments": Counter(func(p *models.Post, n int64) { p.CommentsCount = n }),
		"reposts":  Counter(func(p *models.Post, n int64) { p.RepostsCount = n }),
		"likes":    Counter(func(p *models.Post, n int64) { p.LikesCount = n }),
	})
}
