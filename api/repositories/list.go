package repositories

import (
	"github.com/gomantics/gitwatch/api/web"
	"github.com/gomantics/gitwatch/domains/repos"
)

// ListResponse is the response for listing repositories
type ListResponse struct {
	Repos []RepoSummary `json:"repos"`
	Total int64         `json:"total"`
}

// RepoSummary is a summary of a repository
type RepoSummary struct {
	ShortName string   `json:"short_name"`
	LongName  string   `json:"long_name"`
	URL       string   `json:"url"`
	Branch    string   `json:"branch"`
	Channels  []string `json:"channels"`
}

// List handles GET /v1/repositories
func (h handler) List(c web.Context) error {
	channel := c.QueryParam("channel")

	summaries := []RepoSummary{}
	for _, r := range h.src.Repositories() {
		if channel != "" && !r.InChannel(channel) {
			continue
		}
		summaries = append(summaries, toSummary(r))
	}

	return c.OK(ListResponse{
		Repos: summaries,
		Total: int64(len(summaries)),
	})
}

func toSummary(r *repos.Repository) RepoSummary {
	return RepoSummary{
		ShortName: r.ShortName,
		LongName:  r.LongName,
		URL:       r.URL,
		Branch:    r.BranchName(),
		Channels:  r.Channels,
	}
}
