package ghfetch

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
)

// Kind classifies a conversation record.
type Kind string

const (
	KindIssue      Kind = "issue"
	KindPull       Kind = "pull_request"
	KindDiscussion Kind = "discussion"
)

// Record states. GitHub reports open or closed; merged is derived from the
// pull request detail and never downgrades.
const (
	StateOpen   = "open"
	StateClosed = "closed"
	StateMerged = "merged"
)

// Repo identifies a GitHub repository.
type Repo struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r Repo) String() string {
	return r.Owner + "/" + r.Name
}

// ParseRepo splits an owner/name argument.
func ParseRepo(s string) (Repo, error) {
	owner, name, ok := strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repo{}, fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return Repo{Owner: owner, Name: name}, nil
}

// Record is the head of one issue or pull request conversation. Only the
// author's login is kept; no other account data survives conversion.
type Record struct {
	Number    int       `json:"number"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Author    string    `json:"author,omitempty"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comment is one reply within a conversation. Its parent is tracked by the
// corpus thread map, not by the comment itself.
type Comment struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author,omitempty"`
	Body      string    `json:"body,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Discussion is a GraphQL-sourced conversation. Discussions number
// independently of issues and pull requests, so they live beside the record
// map rather than in it.
type Discussion struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Author    string    `json:"author,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Comments  []Comment `json:"comments,omitempty"`
}

func recordFromIssue(issue *github.Issue) Record {
	kind := KindIssue
	if issue.IsPullRequest() {
		kind = KindPull
	}
	rec := Record{
		Number:    issue.GetNumber(),
		Kind:      kind,
		Title:     issue.GetTitle(),
		Body:      issue.GetBody(),
		Author:    issue.GetUser().GetLogin(),
		State:     issue.GetState(),
		CreatedAt: issue.GetCreatedAt().Time,
		UpdatedAt: issue.GetUpdatedAt().Time,
	}
	for _, lbl := range issue.Labels {
		rec.Labels = append(rec.Labels, lbl.GetName())
	}
	return rec
}

func recordFromPull(pr *github.PullRequest) Record {
	state := pr.GetState()
	if pr.MergedAt != nil {
		state = StateMerged
	}
	rec := Record{
		Number:    pr.GetNumber(),
		Kind:      KindPull,
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		Author:    pr.GetUser().GetLogin(),
		State:     state,
		CreatedAt: pr.GetCreatedAt().Time,
		UpdatedAt: pr.GetUpdatedAt().Time,
	}
	for _, lbl := range pr.Labels {
		rec.Labels = append(rec.Labels, lbl.GetName())
	}
	return rec
}

func commentFromIssueComment(cm *github.IssueComment) Comment {
	return Comment{
		ID:        cm.GetID(),
		Author:    cm.GetUser().GetLogin(),
		Body:      cm.GetBody(),
		CreatedAt: cm.GetCreatedAt().Time,
	}
}
