package ghfetch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/go-github/v68/github"
)

// Assemble fetches every issue, pull request, and comment of repo and returns
// them as a single corpus. The three listings run sequentially so the rate
// budget drains predictably. Any listing that fails after retries aborts the
// whole assembly; a partial corpus is never returned.
func (f *Fetcher) Assemble(ctx context.Context, repo Repo) (*Corpus, error) {
	corpus := NewCorpus(repo)

	issues, err := f.fetchIssues(ctx, repo)
	if err != nil {
		return nil, err
	}
	for _, is := range issues {
		corpus.Upsert(recordFromIssue(is))
	}

	// The issues endpoint reports merged pulls as plain closed; the pulls
	// endpoint carries the merge detail.
	pulls, err := f.fetchPulls(ctx, repo)
	if err != nil {
		return nil, err
	}
	for _, pr := range pulls {
		corpus.Upsert(recordFromPull(pr))
	}

	comments, err := f.fetchComments(ctx, repo)
	if err != nil {
		return nil, err
	}
	byParent := make(map[int][]Comment)
	for _, c := range comments {
		number, ok := issueNumberFromURL(c.GetIssueURL())
		if !ok {
			slog.Warn("comment without a parseable parent, skipping", "repo", repo, "comment_id", c.GetID())
			continue
		}
		if _, exists := corpus.Record(number); !exists {
			slog.Warn("comment references unknown record, skipping", "repo", repo, "comment_id", c.GetID(), "number", number)
			continue
		}
		byParent[number] = append(byParent[number], commentFromIssueComment(c))
	}
	for number, list := range byParent {
		corpus.SetThread(number, list)
	}

	corpus.FetchedAt = f.now()
	slog.Info("corpus assembled",
		"repo", repo, "records", corpus.Len(), "comments", corpus.CommentCount())
	return corpus, nil
}

// AssembleOrg assembles one corpus per repository of org, sequentially. The
// first repository that fails aborts the walk.
func (f *Fetcher) AssembleOrg(ctx context.Context, org string) ([]*Corpus, error) {
	repos, err := fetchAll(ctx, f, org, "org repos",
		func(r *github.Repository) int64 { return r.GetID() },
		func(ctx context.Context, page int) ([]*github.Repository, *github.Response, error) {
			opts := &github.RepositoryListByOrgOptions{
				Type:        "all",
				ListOptions: github.ListOptions{Page: page, PerPage: f.perPage},
			}
			return f.client.Repositories.ListByOrg(ctx, org, opts)
		})
	if err != nil {
		return nil, err
	}

	var corpora []*Corpus
	seen := make(map[string]bool)
	for _, r := range repos {
		full := r.GetFullName()
		if full == "" || seen[full] {
			continue
		}
		seen[full] = true
		repo := Repo{Owner: r.GetOwner().GetLogin(), Name: r.GetName()}
		corpus, err := f.Assemble(ctx, repo)
		if err != nil {
			return nil, fmt.Errorf("assembling %s: %w", repo, err)
		}
		corpora = append(corpora, corpus)
	}
	slog.Info("org assembled", "org", org, "repos", len(corpora))
	return corpora, nil
}

// ValidateToken checks the token by fetching the authenticated user and
// returns the login.
func (f *Fetcher) ValidateToken(ctx context.Context) (string, error) {
	var user *github.User
	err := f.retry(ctx, "", "user", func(ctx context.Context) error {
		var callErr error
		user, _, callErr = f.client.Users.Get(ctx, "")
		return callErr
	})
	if err != nil {
		return "", err
	}
	return user.GetLogin(), nil
}

// SeedRateLimit primes the governor from the rate_limit endpoint, which does
// not count against the budget. Failures only cost the seed, so they degrade
// to a warning.
func (f *Fetcher) SeedRateLimit(ctx context.Context) {
	limits, _, err := f.client.RateLimit.Get(ctx)
	if err != nil {
		slog.Warn("rate limit probe failed, governor starts unseeded", "error", err)
		return
	}
	core := limits.GetCore()
	if core == nil || f.governor == nil {
		return
	}
	f.governor.Seed(core.Remaining, core.Reset.Time)
	slog.Debug("rate limit seeded", "remaining", core.Remaining, "reset", core.Reset.Time)
}

func (f *Fetcher) fetchIssues(ctx context.Context, repo Repo) ([]*github.Issue, error) {
	return fetchAll(ctx, f, repo.String(), "issues",
		func(is *github.Issue) int64 { return is.GetID() },
		func(ctx context.Context, page int) ([]*github.Issue, *github.Response, error) {
			opts := &github.IssueListByRepoOptions{
				State:       "all",
				Sort:        "created",
				Direction:   "asc",
				ListOptions: github.ListOptions{Page: page, PerPage: f.perPage},
			}
			return f.client.Issues.ListByRepo(ctx, repo.Owner, repo.Name, opts)
		})
}

func (f *Fetcher) fetchPulls(ctx context.Context, repo Repo) ([]*github.PullRequest, error) {
	return fetchAll(ctx, f, repo.String(), "pulls",
		func(pr *github.PullRequest) int64 { return pr.GetID() },
		func(ctx context.Context, page int) ([]*github.PullRequest, *github.Response, error) {
			opts := &github.PullRequestListOptions{
				State:       "all",
				Sort:        "created",
				Direction:   "asc",
				ListOptions: github.ListOptions{Page: page, PerPage: f.perPage},
			}
			return f.client.PullRequests.List(ctx, repo.Owner, repo.Name, opts)
		})
}

// fetchComments lists the whole repository's issue comments in one paginated
// walk; issue number 0 selects the repo-wide endpoint. Comments carry their
// parent in issue_url, so one walk covers every thread.
func (f *Fetcher) fetchComments(ctx context.Context, repo Repo) ([]*github.IssueComment, error) {
	return fetchAll(ctx, f, repo.String(), "comments",
		func(c *github.IssueComment) int64 { return c.GetID() },
		func(ctx context.Context, page int) ([]*github.IssueComment, *github.Response, error) {
			opts := &github.IssueListCommentsOptions{
				Sort:        github.Ptr("created"),
				Direction:   github.Ptr("asc"),
				ListOptions: github.ListOptions{Page: page, PerPage: f.perPage},
			}
			return f.client.Issues.ListComments(ctx, repo.Owner, repo.Name, 0, opts)
		})
}

// issueNumberFromURL extracts the trailing issue number from an API issue
// URL such as .../repos/acme/widgets/issues/17.
func issueNumberFromURL(url string) (int, bool) {
	idx := strings.LastIndex(url, "/")
	if idx < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(url[idx+1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
