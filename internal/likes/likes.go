// Package likes refreshes the set of users endorsing a record and keeps the
// cached like counter consistent with it.
package likes

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/vksync/internal/common"
	"github.com/dmitrijs2005/vksync/internal/dbx"
	"github.com/dmitrijs2005/vksync/internal/logging"
	"github.com/dmitrijs2005/vksync/internal/models"
	"github.com/dmitrijs2005/vksync/internal/remote"
	"github.com/dmitrijs2005/vksync/internal/vkapi"
)

const listMethod = "likes.getList"

// Target is a record that can be liked.
type Target interface {
	models.Entity
	LikesState() *models.Likes
	LikeTarget() (kind string, ownerID, itemID int64)
}

// Association stores the endorsing users of one record.
type Association interface {
	Replace(ctx context.Context, localID int64, userIDs []int64) error
}

type Service[T Target] struct {
	db      *sql.DB
	users   *remote.Manager[*models.User]
	targets *remote.Reconciler[T]
	assoc   func(dbx.DBTX) Association
	log     logging.Logger
}

func NewService[T Target](db *sql.DB, users *remote.Manager[*models.User], targets *remote.Reconciler[T], assoc func(dbx.DBTX) Association, log logging.Logger) *Service[T] {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service[T]{db: db, users: users, targets: targets, assoc: assoc, log: log}
}

// Refresh fetches every endorsing user of e, stores them, replaces the
// association and reconciles the cached counter. A fetched set smaller than
// the counter is only logged; a larger one raises the counter.
func (s *Service[T]) Refresh(ctx context.Context, e T) ([]*models.User, error) {
	if !e.Base().Persisted() {
		return nil, fmt.Errorf("likes of an unsaved %s: %w", s.targets.Entity(), common.ErrorValidation)
	}

	kind, ownerID, itemID := e.LikeTarget()
	params := url.Values{
		"type":     {kind},
		"owner_id": {strconv.FormatInt(ownerID, 10)},
		"item_id":  {strconv.FormatInt(itemID, 10)},
		"filter":   {"likes"},
		"extended": {"1"},
	}

	users, err := s.users.FetchAll(ctx, listMethod, params, remote.PageOptions[*models.User]{
		PageSize: remote.MaxPageSize,
		Keep:     isProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch likes of %s %d: %w", s.targets.Entity(), e.Base().RemoteID, err)
	}

	seen := make(map[int64]struct{}, len(users))
	ids := make([]int64, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u.LocalID]; ok {
			continue
		}
		seen[u.LocalID] = struct{}{}
		ids = append(ids, u.LocalID)
	}

	err = dbx.WithTx(ctx, s.db, "replace likes of "+s.targets.Entity(), func(ctx context.Context, tx dbx.DBTX) error {
		return s.assoc(tx).Replace(ctx, e.Base().LocalID, ids)
	})
	if err != nil {
		return nil, err
	}

	counter := e.LikesState()
	fetched := int64(len(ids))
	switch {
	case fetched < counter.LikesCount:
		s.log.Warn(ctx, "fetched fewer likes than counted",
			"entity", s.targets.Entity(), "remote_id", e.Base().RemoteID, "counted", counter.LikesCount, "fetched", fetched)
	case fetched > counter.LikesCount:
		counter.LikesCount = fetched
		if err := s.targets.Save(ctx, e); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// isProfile rejects communities, which an extended likes list mixes in with
// users. Entries without a type are kept.
func isProfile(rec vkapi.Record) bool {
	typ, ok := rec["type"].(string)
	return !ok || typ == "profile"
}
