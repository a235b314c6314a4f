package ghfetch

import (
	"encoding/json"
	"sort"
	"time"
)

// Corpus is the assembled conversation history of one repository. Records
// are keyed by number; threading is an explicit map from record number to
// comment IDs in creation order. Records are merged on re-assembly and never
// removed.
type Corpus struct {
	Repo      Repo
	FetchedAt time.Time

	records     map[int]*Record
	comments    map[int64]*Comment
	threads     map[int][]int64
	discussions []Discussion
}

// NewCorpus returns an empty corpus for repo.
func NewCorpus(repo Repo) *Corpus {
	return &Corpus{
		Repo:     repo,
		records:  make(map[int]*Record),
		comments: make(map[int64]*Comment),
		threads:  make(map[int][]int64),
	}
}

// Upsert adds rec or merges it over an existing record with the same number.
// The newer updated_at wins. Once a record is known to be a pull request it
// stays one, and a merged state never downgrades: the issues listing reports
// merged pulls as merely closed.
func (c *Corpus) Upsert(rec Record) {
	cur, ok := c.records[rec.Number]
	if !ok {
		r := rec
		c.records[rec.Number] = &r
		return
	}
	isPull := cur.Kind == KindPull || rec.Kind == KindPull
	merged := cur.State == StateMerged || rec.State == StateMerged
	if !rec.UpdatedAt.Before(cur.UpdatedAt) {
		*cur = rec
	}
	if isPull {
		cur.Kind = KindPull
	}
	if merged {
		cur.State = StateMerged
	}
}

// SetThread attaches the conversation for one parent record, replacing any
// previous thread. Comments are ordered by creation time, oldest first, with
// the comment ID as tiebreak.
func (c *Corpus) SetThread(parent int, comments []Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	ids := make([]int64, 0, len(comments))
	for _, cm := range comments {
		stored := cm
		c.comments[cm.ID] = &stored
		ids = append(ids, cm.ID)
	}
	c.threads[parent] = ids
}

// Record returns the record stored under number.
func (c *Corpus) Record(number int) (*Record, bool) {
	rec, ok := c.records[number]
	return rec, ok
}

// Records returns every record ordered by number.
func (c *Corpus) Records() []*Record {
	out := make([]*Record, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Thread returns the comments of a record in thread order.
func (c *Corpus) Thread(number int) []*Comment {
	ids := c.threads[number]
	out := make([]*Comment, 0, len(ids))
	for _, id := range ids {
		if cm, ok := c.comments[id]; ok {
			out = append(out, cm)
		}
	}
	return out
}

// SetDiscussions replaces the corpus's discussions.
func (c *Corpus) SetDiscussions(ds []Discussion) {
	c.discussions = ds
}

// Discussions returns the corpus's discussions ordered by number.
func (c *Corpus) Discussions() []Discussion {
	out := make([]Discussion, len(c.discussions))
	copy(out, c.discussions)
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Len returns the number of issue and pull request records.
func (c *Corpus) Len() int {
	return len(c.records)
}

// CommentCount returns the number of threaded comments.
func (c *Corpus) CommentCount() int {
	return len(c.comments)
}

type corpusJSON struct {
	Repository  string       `json:"repository"`
	FetchedAt   time.Time    `json:"fetched_at"`
	Records     []recordJSON `json:"records"`
	Discussions []Discussion `json:"discussions,omitempty"`
}

type recordJSON struct {
	Record
	Comments []Comment `json:"comments,omitempty"`
}

// MarshalJSON renders the corpus with comments nested under their records in
// thread order, so the on-disk form needs no separate thread map.
func (c *Corpus) MarshalJSON() ([]byte, error) {
	out := corpusJSON{
		Repository:  c.Repo.String(),
		FetchedAt:   c.FetchedAt,
		Records:     make([]recordJSON, 0, len(c.records)),
		Discussions: c.Discussions(),
	}
	for _, rec := range c.Records() {
		rj := recordJSON{Record: *rec}
		for _, cm := range c.Thread(rec.Number) {
			rj.Comments = append(rj.Comments, *cm)
		}
		out.Records = append(out.Records, rj)
	}
	return json.Marshal(out)
}
