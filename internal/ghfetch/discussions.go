package ghfetch

import (
	"context"
	"log/slog"
	"sort"

	"github.com/shurcooL/githubv4"
)

// discussionNode mirrors one discussion with its first hundred comments
// inline. Discussions are GraphQL-only; REST has no listing for them.
type discussionNode struct {
	Number    githubv4.Int
	Title     githubv4.String
	Body      githubv4.String
	CreatedAt githubv4.DateTime
	Author    struct {
		Login githubv4.String
	}
	Comments struct {
		Nodes []struct {
			DatabaseID githubv4.Int `graphql:"databaseId"`
			Body       githubv4.String
			CreatedAt  githubv4.DateTime
			Author     struct {
				Login githubv4.String
			}
		}
	} `graphql:"comments(first: 100)"`
}

type discussionsQuery struct {
	Repository struct {
		Discussions struct {
			Nodes    []discussionNode
			PageInfo struct {
				EndCursor   githubv4.String
				HasNextPage githubv4.Boolean
			}
		} `graphql:"discussions(first: $perPage, after: $cursor)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

// FetchDiscussions pages through repo's discussions by cursor until
// HasNextPage goes false. Callers treat a failure here as degradation, not
// abort: discussions sit outside the REST pipeline.
func (f *Fetcher) FetchDiscussions(ctx context.Context, repo Repo) ([]Discussion, error) {
	vars := map[string]any{
		"owner":   githubv4.String(repo.Owner),
		"name":    githubv4.String(repo.Name),
		"perPage": githubv4.Int(f.perPage),
		"cursor":  (*githubv4.String)(nil),
	}

	var out []Discussion
	seen := make(map[int]bool)
	for {
		var q discussionsQuery
		if err := f.graphql.Query(ctx, &q, vars); err != nil {
			return nil, &FetchError{Repo: repo.String(), Endpoint: "discussions", Attempts: 1, Err: err}
		}
		for _, node := range q.Repository.Discussions.Nodes {
			number := int(node.Number)
			if seen[number] {
				continue
			}
			seen[number] = true
			out = append(out, discussionFromNode(node))
		}
		if !q.Repository.Discussions.PageInfo.HasNextPage {
			break
		}
		vars["cursor"] = githubv4.NewString(q.Repository.Discussions.PageInfo.EndCursor)
	}
	slog.Debug("discussions fetched", "repo", repo, "count", len(out))
	return out, nil
}

func discussionFromNode(n discussionNode) Discussion {
	d := Discussion{
		Number:    int(n.Number),
		Title:     string(n.Title),
		Body:      string(n.Body),
		Author:    string(n.Author.Login),
		CreatedAt: n.CreatedAt.Time,
	}
	for _, c := range n.Comments.Nodes {
		d.Comments = append(d.Comments, Comment{
			ID:        int64(c.DatabaseID),
			Author:    string(c.Author.Login),
			Body:      string(c.Body),
			CreatedAt: c.CreatedAt.Time,
		})
	}
	sort.SliceStable(d.Comments, func(i, j int) bool {
		if d.Comments[i].CreatedAt.Equal(d.Comments[j].CreatedAt) {
			return d.Comments[i].ID < d.Comments[j].ID
		}
		return d.Comments[i].CreatedAt.Before(d.Comments[j].CreatedAt)
	})
	return d
}
