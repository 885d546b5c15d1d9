package repositories

import (
	"errors"

	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/db"
	"github.com/gomantics/gitwatch/domains/cursors"
	"github.com/gomantics/gitwatch/domains/repos"
	"go.uber.org/zap"
)

// GetResponse is the response for getting a repository
type GetResponse struct {
	RepoSummary
	LastCommitSHA string `json:"last_commit_sha,omitempty"`
	StoredSHA     string `json:"stored_sha,omitempty"`
	StoredAt      int64  `json:"stored_at,omitempty"`
}

// Get handles GET /v1/repositories/:name
func (h handler) Get(c web.Context) error {
	ctx := c.Ctx()

	r, err := repos.Find(h.src.Repositories(), c.Param("name"))
	if err != nil {
		return c.NotFound("repository not found")
	}

	resp := GetResponse{RepoSummary: toSummary(r)}
	err = r.With(ctx, func(sess *repos.Session) error {
		resp.LastCommitSHA = sess.LastCommit()
		return nil
	})
	if err != nil {
		c.L.Warn("repository busy", zap.String("repo", r.ShortName), zap.Error(err))
		return c.Unavailable("repository is busy")
	}

	if db.Enabled() {
		stored, err := cursors.Get(ctx, r.CursorKey())
		switch {
		case errors.Is(err, repos.ErrNotFound):
		case err != nil:
			c.L.Error("failed to get cursor", zap.Error(err))
			return c.InternalError("failed to get repository")
		default:
			resp.StoredSHA = stored.Hash
			if !stored.Updated.IsZero() {
				resp.StoredAt = stored.Updated.Unix()
			}
		}
	}

	return c.OK(resp)
}
