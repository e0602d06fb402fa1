package postlikes

import "context"

// Repository stores the set of users endorsing a post.
type Repository interface {
	// Replace makes userIDs the complete set for postID.
	Replace(ctx context.Context, postID int64, userIDs []int64) error
	ListUserIDs(ctx context.Context, postID int64) ([]int64, error)
}
