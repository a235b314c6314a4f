package ghfetch

import (
	"encoding/json"
	"testing"
	"time"
)

var corpusBase = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Repo
		wantErr bool
	}{
		{name: "valid", input: "acme/widgets", want: Repo{Owner: "acme", Name: "widgets"}},
		{name: "missing slash", input: "acmewidgets", wantErr: true},
		{name: "empty owner", input: "/widgets", wantErr: true},
		{name: "empty name", input: "acme/", wantErr: true},
		{name: "extra slash", input: "acme/widgets/extra", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRepo(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRepo(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRepo(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseRepo(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestUpsertNewerWins(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	c.Upsert(Record{Number: 1, Kind: KindIssue, Title: "old title", State: StateOpen, UpdatedAt: corpusBase})
	c.Upsert(Record{Number: 1, Kind: KindIssue, Title: "new title", State: StateClosed, UpdatedAt: corpusBase.Add(time.Hour)})

	rec, ok := c.Record(1)
	if !ok {
		t.Fatal("record 1 missing")
	}
	if rec.Title != "new title" || rec.State != StateClosed {
		t.Errorf("got title %q state %q, want newer record to win", rec.Title, rec.State)
	}

	// A stale update must not clobber the newer one.
	c.Upsert(Record{Number: 1, Kind: KindIssue, Title: "stale title", State: StateOpen, UpdatedAt: corpusBase.Add(-time.Hour)})
	rec, _ = c.Record(1)
	if rec.Title != "new title" {
		t.Errorf("stale upsert replaced record, got title %q", rec.Title)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestUpsertMergedIsSticky(t *testing.T) {
	// The issues listing reports a merged pull as closed. Whichever order
	// the two listings land in, the record must end up a merged pull.
	tests := []struct {
		name   string
		first  Record
		second Record
	}{
		{
			name:   "pull detail first",
			first:  Record{Number: 2, Kind: KindPull, State: StateMerged, UpdatedAt: corpusBase},
			second: Record{Number: 2, Kind: KindIssue, State: StateClosed, UpdatedAt: corpusBase.Add(time.Minute)},
		},
		{
			name:   "issue listing first",
			first:  Record{Number: 2, Kind: KindIssue, State: StateClosed, UpdatedAt: corpusBase.Add(time.Minute)},
			second: Record{Number: 2, Kind: KindPull, State: StateMerged, UpdatedAt: corpusBase},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
			c.Upsert(tt.first)
			c.Upsert(tt.second)

			rec, ok := c.Record(2)
			if !ok {
				t.Fatal("record 2 missing")
			}
			if rec.Kind != KindPull {
				t.Errorf("Kind = %q, want %q", rec.Kind, KindPull)
			}
			if rec.State != StateMerged {
				t.Errorf("State = %q, want %q", rec.State, StateMerged)
			}
		})
	}
}

func TestSetThreadOrdersComments(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	c.Upsert(Record{Number: 1, Kind: KindIssue, State: StateOpen, UpdatedAt: corpusBase})

	c.SetThread(1, []Comment{
		{ID: 30, Body: "third", CreatedAt: corpusBase.Add(2 * time.Hour)},
		{ID: 10, Body: "first", CreatedAt: corpusBase},
		{ID: 21, Body: "tied later", CreatedAt: corpusBase.Add(time.Hour)},
		{ID: 20, Body: "tied earlier", CreatedAt: corpusBase.Add(time.Hour)},
	})

	thread := c.Thread(1)
	wantIDs := []int64{10, 20, 21, 30}
	if len(thread) != len(wantIDs) {
		t.Fatalf("thread length = %d, want %d", len(thread), len(wantIDs))
	}
	for i, cm := range thread {
		if cm.ID != wantIDs[i] {
			t.Errorf("thread[%d].ID = %d, want %d", i, cm.ID, wantIDs[i])
		}
	}
	if got := c.CommentCount(); got != 4 {
		t.Errorf("CommentCount = %d, want 4", got)
	}
}

func TestSetThreadReplaces(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	c.SetThread(1, []Comment{{ID: 10, CreatedAt: corpusBase}})
	c.SetThread(1, []Comment{{ID: 11, CreatedAt: corpusBase}})

	thread := c.Thread(1)
	if len(thread) != 1 || thread[0].ID != 11 {
		t.Errorf("thread = %+v, want single comment 11", thread)
	}
}

func TestThreadUnknownRecord(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	if got := c.Thread(99); len(got) != 0 {
		t.Errorf("Thread(99) = %v, want empty", got)
	}
}

func TestRecordsSortedByNumber(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	for _, n := range []int{5, 1, 3} {
		c.Upsert(Record{Number: n, Kind: KindIssue, State: StateOpen, UpdatedAt: corpusBase})
	}

	var got []int
	for _, rec := range c.Records() {
		got = append(got, rec.Number)
	}
	want := []int{1, 3, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Records order = %v, want %v", got, want)
		}
	}
}

func TestCorpusJSONNestsThreads(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	c.FetchedAt = corpusBase
	c.Upsert(Record{Number: 1, Kind: KindIssue, Title: "bug", State: StateOpen, CreatedAt: corpusBase, UpdatedAt: corpusBase})
	c.Upsert(Record{Number: 2, Kind: KindPull, Title: "fix", State: StateMerged, CreatedAt: corpusBase, UpdatedAt: corpusBase})
	c.SetThread(1, []Comment{
		{ID: 11, Author: "bob", Body: "second", CreatedAt: corpusBase.Add(time.Minute)},
		{ID: 10, Author: "alice", Body: "first", CreatedAt: corpusBase},
	})

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded struct {
		Repository string `json:"repository"`
		Records    []struct {
			Number   int    `json:"number"`
			Kind     string `json:"kind"`
			Comments []struct {
				ID   int64  `json:"id"`
				Body string `json:"body"`
			} `json:"comments"`
		} `json:"records"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Repository != "acme/widgets" {
		t.Errorf("repository = %q, want acme/widgets", decoded.Repository)
	}
	if len(decoded.Records) != 2 {
		t.Fatalf("records = %d, want 2", len(decoded.Records))
	}
	first := decoded.Records[0]
	if first.Number != 1 || len(first.Comments) != 2 {
		t.Fatalf("record 1 has %d comments, want 2", len(first.Comments))
	}
	if first.Comments[0].Body != "first" || first.Comments[1].Body != "second" {
		t.Errorf("comments out of order: %+v", first.Comments)
	}
	if len(decoded.Records[1].Comments) != 0 {
		t.Errorf("record 2 has %d comments, want none", len(decoded.Records[1].Comments))
	}
}

func TestDiscussionsSortedByNumber(t *testing.T) {
	c := NewCorpus(Repo{Owner: "acme", Name: "widgets"})
	c.SetDiscussions([]Discussion{{Number: 7}, {Number: 3}})

	ds := c.Discussions()
	if len(ds) != 2 || ds[0].Number != 3 || ds[1].Number != 7 {
		t.Errorf("Discussions = %+v, want sorted by number", ds)
	}
}

func TestIssueNumberFromURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		want  int
		valid bool
	}{
		{name: "issue url", url: "https://api.github.com/repos/acme/widgets/issues/17", want: 17, valid: true},
		{name: "trailing junk", url: "https://api.github.com/repos/acme/widgets/issues/abc", valid: false},
		{name: "zero", url: "https://api.github.com/repos/acme/widgets/issues/0", valid: false},
		{name: "no slash", url: "17", valid: false},
		{name: "empty", url: "", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := issueNumberFromURL(tt.url)
			if ok != tt.valid {
				t.Fatalf("issueNumberFromURL(%q) ok = %v, want %v", tt.url, ok, tt.valid)
			}
			if tt.valid && got != tt.want {
				t.Errorf("issueNumberFromURL(%q) = %d, want %d", tt.url, got, tt.want)
			}
		})
	}
}
