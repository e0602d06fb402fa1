package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/remote"
	"github.com/goccy/go-json"
)

const usage = `usage: vksync [flags] <command> [args]

commands:
  migrate                         apply database migrations
  token-add <token> [tag]         store an access token for rotation
  user <slug|url|id>              fetch one user profile
  users <id>...                   fetch user profiles by id
  group <slug|url|id>             fetch one community
  wall <owner_id>                 fetch every post of a wall
  likes <owner_id> <post_id>      refresh the likers of a stored post
  post <owner_id> <text>...       publish a post
  delete <owner_id> <post_id>     delete a post
  restore <owner_id> <post_id>    restore a deleted post
  watch <owner_id>                poll a wall and follow likes of new posts`

const userFields = "screen_name,sex,bdate,city,followers_count,photo,lists"

var errUsage = errors.New(usage)

func (app *App) dispatch(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "help":
		fmt.Fprintln(app.out, usage)
		return nil
	case "migrate":
		// NewApp already applied them.
		app.logger.Info(ctx, "database is up to date")
		return nil
	case "token-add":
		return app.tokenAdd(ctx, args)
	case "user":
		return app.user(ctx, args)
	case "users":
		return app.users(ctx, args)
	case "group":
		return app.group(ctx, args)
	case "wall":
		return app.wall(ctx, args)
	case "likes":
		return app.refreshLikes(ctx, args)
	case "post":
		return app.publish(ctx, args)
	case "delete", "restore":
		return app.archivePost(ctx, cmd, args)
	case "watch":
		return app.watch(ctx, args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (app *App) print(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, string(b))
	return err
}

func need(args []string, n int, what string) error {
	if len(args) < n {
		return fmt.Errorf("usage: %s: %w", what, common.ErrorValidation)
	}
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, common.ErrorValidation)
	}
	return id, nil
}

func (app *App) tokenAdd(ctx context.Context, args []string) error {
	if err := need(args, 1, "token-add <token> [tag]"); err != nil {
		return err
	}
	t := &models.AccessToken{Provider: app.config.CredentialProvider, Token: args[0], Active: true}
	if len(args) > 1 {
		t.Tag = args[1]
	}
	if _, err := app.tokens.Create(ctx, t); err != nil {
		return err
	}
	app.logger.Info(ctx, "access token stored", "id", t.ID, "provider", t.Provider, "tag", t.Tag, "sealed", app.sealer != nil)
	return nil
}

// lookup accepts a vk.com URL, a slug or a bare numeric id.
func lookup[T models.Entity](ctx context.Context, m *remote.Manager[T], prefix, arg string) (T, error) {
	switch {
	case strings.Contains(arg, "vk.com/"):
		return m.GetByURL(ctx, arg)
	case strings.Trim(arg, "0123456789") == "":
		return m.GetBySlug(ctx, prefix+arg)
	default:
		return m.GetBySlug(ctx, arg)
	}
}

func (app *App) user(ctx context.Context, args []string) error {
	if err := need(args, 1, "user <slug|url|id>"); err != nil {
		return err
	}
	u, err := lookup(ctx, app.managers.Users, "id", args[0])
	if err != nil {
		return err
	}
	fresh, err := app.managers.Users.Fetch(ctx, "get", url.Values{
		"user_ids": {strconv.FormatInt(u.RemoteID, 10)},
		"fields":   {userFields},
	})
	if err != nil {
		return err
	}
	if len(fresh) != 1 {
		return fmt.Errorf("user %d: %w", u.RemoteID, common.ErrorNotFound)
	}
	return app.print(fresh[0])
}

func (app *App) users(ctx context.Context, args []string) error {
	if err := need(args, 1, "users <id>..."); err != nil {
		return err
	}
	for _, a := range args {
		if _, err := parseID(a); err != nil {
			return err
		}
	}
	got, err := app.managers.Users.Fetch(ctx, "get", url.Values{
		"user_ids": {strings.Join(args, ",")},
		"fields":   {userFields},
	})
	if err != nil {
		return err
	}
	for _, u := range got {
		if err := app.print(u); err != nil {
			return err
		}
	}
	return nil
}

func (app *App) group(ctx context.Context, args []string) error {
	if err := need(args, 1, "group <slug|url|id>"); err != nil {
		return err
	}
	g, err := lookup(ctx, app.managers.Groups, "club", args[0])
	if err != nil {
		return err
	}
	fresh, err := app.managers.Groups.Refresh(ctx, g)
	if err != nil {
		return err
	}
	return app.print(fresh)
}

func (app *App) wall(ctx context.Context, args []string) error {
	if err := need(args, 1, "wall <owner_id>"); err != nil {
		return err
	}
	owner, err := parseID(args[0])
	if err != nil {
		return err
	}
	got, err := app.managers.Posts.FetchAll(ctx, "get", url.Values{"owner_id": {strconv.FormatInt(owner, 10)}},
		remote.PageOptions[*models.Post]{PageSize: remote.MaxPageSize, MaxExtraCalls: 1})
	if err != nil {
		return err
	}
	app.logger.Info(ctx, "wall synchronized", "owner_id", owner, "posts", len(got))
	return app.print(map[string]any{"owner_id": owner, "posts": len(got)})
}

func (app *App) findPost(ctx context.Context, args []string, what string) (*models.Post, error) {
	if err := need(args, 2, what); err != nil {
		return nil, err
	}
	owner, err := parseID(args[0])
	if err != nil {
		return nil, err
	}
	id, err := parseID(args[1])
	if err != nil {
		return nil, err
	}
	return app.managers.Posts.Reconciler().Find(ctx, models.Key{owner, id})
}

func (app *App) refreshLikes(ctx context.Context, args []string) error {
	p, err := app.findPost(ctx, args, "likes <owner_id> <post_id>")
	if err != nil {
		return err
	}
	users, err := app.likes.Refresh(ctx, p)
	if err != nil {
		return err
	}
	return app.print(map[string]any{"post": p.WallID(), "likes": p.LikesCount, "fetched": len(users)})
}

func (app *App) publish(ctx context.Context, args []string) error {
	if err := need(args, 2, "post <owner_id> <text>..."); err != nil {
		return err
	}
	owner, err := parseID(args[0])
	if err != nil {
		return err
	}
	ref, err := models.RefFromSigned(owner)
	if err != nil {
		return err
	}
	if ref, err = remote.NewOwnerResolver(app.db, app.repos).ResolveRef(ctx, ref); err != nil {
		return err
	}
	now := time.Now().UTC()
	p := &models.Post{Owner: ref, Text: strings.Join(args[1:], " "), Date: &now}
	if err := app.posts.Save(ctx, p, true); err != nil {
		return err
	}
	return app.print(p)
}

func (app *App) archivePost(ctx context.Context, cmd string, args []string) error {
	p, err := app.findPost(ctx, args, cmd+" <owner_id> <post_id>")
	if err != nil {
		return err
	}
	if cmd == "delete" {
		err = app.posts.Delete(ctx, p, true)
	} else {
		err = app.posts.Restore(ctx, p, true)
	}
	if err != nil {
		return err
	}
	return app.print(map[string]any{"post": p.WallID(), "archived": p.Archived})
}
