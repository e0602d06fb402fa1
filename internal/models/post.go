package models

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Post mirrors a wall post. Its remote id is only unique within the owner's
// wall, so the natural key is (owner, remote id).
type Post struct {
	Remote
	Payload
	Archive
	Likes

	Owner         Ref
	Author        Ref
	Text          string
	Date          *time.Time
	CommentsCount int64
	RepostsCount  int64
}

func (p *Post) NaturalKey() (Key, bool) {
	if p.RemoteID == 0 || p.Owner.IsZero() {
		return nil, false
	}
	return Key{p.Owner.Signed(), p.RemoteID}, true
}

// WallID is the "owner_post" form used by wall.getById.
func (p *Post) WallID() string {
	return fmt.Sprintf("%d_%d", p.Owner.Signed(), p.RemoteID)
}

func (p *Post) RefreshRequest() (string, url.Values) {
	return "getById", url.Values{"posts": {p.WallID()}}
}

// LikeTarget describes the post to likes.getList.
func (p *Post) LikeTarget() (kind string, ownerID, itemID int64) {
	return "post", p.Owner.Signed(), p.RemoteID
}

func (p *Post) CreateParams() url.Values {
	return url.Values{
		"owner_id": {strconv.FormatInt(p.Owner.Signed(), 10)},
		"message":  {p.Text},
	}
}

func (p *Post) UpdateParams() url.Values {
	return url.Values{
		"owner_id": {strconv.FormatInt(p.Owner.Signed(), 10)},
		"post_id":  {strconv.FormatInt(p.RemoteID, 10)},
		"message":  {p.Text},
	}
}

// FieldsRequiredForUpdate are sent with every wall.edit even when unchanged.
func (p *Post) FieldsRequiredForUpdate() []string {
	return []string{"owner_id", "post_id"}
}

func (p *Post) DeleteParams() url.Values {
	return url.Values{
		"owner_id": {strconv.FormatInt(p.Owner.Signed(), 10)},
		"post_id":  {strconv.FormatInt(p.RemoteID, 10)},
	}
}

func (p *Post) RestoreParams() url.Values {
	return p.DeleteParams()
}

// RemoteIDFromCreate extracts the new id from a wall.post response
// ({"post_id": 123}).
func (p *Post) RemoteIDFromCreate(resp any) (int64, error) {
	m, ok := resp.(map[string]any)
	if !ok {
		return 0, fmt.Errorf("unexpected wall.post response %T", resp)
	}
	id, err := strconv.ParseInt(fmt.Sprint(m["post_id"]), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("wall.post response without post_id: %v", resp)
	}
	return id, nil
}

// RemoteMethods maps the CRUD operations onto remote method names.
func (p *Post) RemoteMethods() (create, update, del, restore string) {
	return "wall.post", "wall.edit", "wall.delete", "wall.restore"
}
