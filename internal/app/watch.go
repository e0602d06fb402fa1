package app

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/notify"
	"github.com/dmitrijs2005/vksync/internal/remote"
)

// PostRefresher is the likes service as seen by the follower.
type PostRefresher interface {
	Refresh(ctx context.Context, p *models.Post) ([]*models.User, error)
}

// PostLoader loads a stored post by local id.
type PostLoader func(ctx context.Context, id int64) (*models.Post, error)

// likesFollower refreshes the likers of every newly stored post that
// reports likes.
type likesFollower struct {
	load  PostLoader
	likes PostRefresher
	log   logging.Logger
}

// Run handles msgs until the channel is closed. The caller subscribes
// before anything is published; gochannel drops messages nobody listens to.
func (f *likesFollower) Run(ctx context.Context, msgs <-chan *message.Message) {
	for msg := range msgs {
		f.handle(ctx, msg)
		msg.Ack()
	}
}

func (f *likesFollower) handle(ctx context.Context, msg *message.Message) {
	if msg.Metadata.Get("entity") != "post" {
		return
	}
	ev, err := notify.Decode(msg)
	if err != nil {
		f.log.Warn(ctx, "dropping undecodable event", "error", err)
		return
	}
	if !ev.Created {
		return
	}

	p, err := f.load(ctx, ev.LocalID)
	if err != nil {
		f.log.Warn(ctx, "post from event not found", "local_id", ev.LocalID, "error", err)
		return
	}
	if p.LikesCount == 0 {
		return
	}
	if _, err := f.likes.Refresh(ctx, p); err != nil {
		f.log.Error(ctx, "likes refresh failed", "post", p.WallID(), "error", err)
	}
}

// watch polls a wall every WatchInterval and stores posts newer than the
// last one seen. New posts with likes get their likers fetched in the
// background. It runs until ctx is cancelled.
func (app *App) watch(ctx context.Context, args []string) error {
	if err := need(args, 1, "watch <owner_id>"); err != nil {
		return err
	}
	owner, err := parseID(args[0])
	if err != nil {
		return err
	}

	msgs, err := app.pubsub.Subscribe(ctx, notify.TopicSynchronized)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", notify.TopicSynchronized, err)
	}
	follower := &likesFollower{
		load: func(ctx context.Context, id int64) (*models.Post, error) {
			return app.repos.Posts(app.db).GetByID(ctx, id)
		},
		likes: app.likes,
		log:   app.logger.With("component", "follower"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		follower.Run(ctx, msgs)
	}()
	defer wg.Wait()

	params := url.Values{"owner_id": {strconv.FormatInt(owner, 10)}, "count": {strconv.Itoa(remote.MaxPageSize)}}
	ticker := time.NewTicker(app.config.WatchInterval)
	defer ticker.Stop()

	var after *time.Time
	for {
		posts, err := app.managers.Posts.FetchTimeline(ctx, "get", params, remote.TimelineOptions{After: after})
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			app.logger.Error(ctx, "wall poll failed", "owner_id", owner, "error", err)
		default:
			after = newest(posts, after)
			app.logger.Info(ctx, "wall polled", "owner_id", owner, "posts", len(posts))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func newest(posts []*models.Post, cur *time.Time) *time.Time {
	for _, p := range posts {
		if p.Date != nil && (cur == nil || p.Date.After(*cur)) {
			d := *p.Date
			cur = &d
		}
	}
	return cur
}
