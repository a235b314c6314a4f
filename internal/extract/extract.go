// Package extract dispatches corpus conversations to an LLM provider and
// collects one raw extraction per conversation.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/repolore/repolore/internal/ghfetch"
	"github.com/repolore/repolore/internal/llm"
	"github.com/repolore/repolore/internal/textutil"
)

const (
	defaultMaxContextBytes = 30000 // bytes per LLM input
	defaultTimeout         = 2 * time.Minute
	defaultWorkers         = 4

	truncationMarker = "\n... (conversation truncated to fit context window)"
)

// Result is the extraction outcome for one conversation. Output holds the
// provider's text verbatim; it is never parsed.
type Result struct {
	Repo   string `json:"repository"`
	Number int    `json:"number"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Output string `json:"output,omitempty"`
	Err    string `json:"error,omitempty"`
}

// Failed reports whether this conversation's extraction failed.
func (r Result) Failed() bool { return r.Err != "" }

// Config bounds a Dispatcher. Zero values select the defaults.
type Config struct {
	// MaxContextBytes caps the conversation text sent per request.
	MaxContextBytes int
	// Timeout bounds one provider call.
	Timeout time.Duration
	// Workers is the number of concurrent provider calls.
	Workers int
}

// Dispatcher fans corpus conversations out to an LLM provider.
type Dispatcher struct {
	provider        llm.Provider
	maxContextBytes int
	timeout         time.Duration
	workers         int
}

// New returns a Dispatcher using the given provider.
func New(provider llm.Provider, cfg Config) *Dispatcher {
	d := &Dispatcher{
		provider:        provider,
		maxContextBytes: cfg.MaxContextBytes,
		timeout:         cfg.Timeout,
		workers:         cfg.Workers,
	}
	if d.maxContextBytes <= 0 {
		d.maxContextBytes = defaultMaxContextBytes
	}
	if d.timeout <= 0 {
		d.timeout = defaultTimeout
	}
	if d.workers <= 0 {
		d.workers = defaultWorkers
	}
	return d
}

// Run extracts every conversation in the corpus: records first, then
// discussions, each ordered by number. A provider failure lands on that
// result alone; the remaining conversations still run.
func (d *Dispatcher) Run(ctx context.Context, corpus *ghfetch.Corpus) []Result {
	records := corpus.Records()
	discussions := corpus.Discussions()
	results := make([]Result, len(records)+len(discussions))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, rec := range records {
		i, rec := i, rec
		g.Go(func() error {
			results[i] = d.extractRecord(gCtx, corpus, rec)
			return nil
		})
	}
	for i, disc := range discussions {
		i, disc := i, disc
		g.Go(func() error {
			results[len(records)+i] = d.extractDiscussion(gCtx, corpus.Repo, disc)
			return nil
		})
	}
	// Workers never return errors; failures live on their results.
	_ = g.Wait()
	return results
}

func (d *Dispatcher) extractRecord(ctx context.Context, corpus *ghfetch.Corpus, rec *ghfetch.Record) Result {
	res := Result{
		Repo:   corpus.Repo.String(),
		Number: rec.Number,
		Kind:   string(rec.Kind),
		Title:  rec.Title,
	}
	if err := ctx.Err(); err != nil {
		res.Err = err.Error()
		return res
	}
	slog.Debug("extracting conversation", "repo", res.Repo, "kind", res.Kind, "number", res.Number)
	prompt := fmt.Sprintf(extractionPrompt, res.Kind, d.BuildContext(corpus, rec))
	out, err := d.complete(ctx, prompt)
	if err != nil {
		slog.Warn("extraction failed", "repo", res.Repo, "number", res.Number, "error", err)
		res.Err = err.Error()
		return res
	}
	res.Output = strings.TrimSpace(out)
	return res
}

func (d *Dispatcher) extractDiscussion(ctx context.Context, repo ghfetch.Repo, disc ghfetch.Discussion) Result {
	res := Result{
		Repo:   repo.String(),
		Number: disc.Number,
		Kind:   string(ghfetch.KindDiscussion),
		Title:  disc.Title,
	}
	if err := ctx.Err(); err != nil {
		res.Err = err.Error()
		return res
	}
	slog.Debug("extracting conversation", "repo", res.Repo, "kind", res.Kind, "number", res.Number)
	prompt := fmt.Sprintf(extractionPrompt, res.Kind, d.buildDiscussionContext(disc))
	out, err := d.complete(ctx, prompt)
	if err != nil {
		slog.Warn("extraction failed", "repo", res.Repo, "number", res.Number, "error", err)
		res.Err = err.Error()
		return res
	}
	res.Output = strings.TrimSpace(out)
	return res
}

func (d *Dispatcher) complete(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.provider.Complete(callCtx, systemPrompt, prompt, nil)
}

// BuildContext renders one conversation as provider input: header, body, then
// the thread in creation order, truncated to the context limit.
func (d *Dispatcher) BuildContext(corpus *ghfetch.Corpus, rec *ghfetch.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s #%d: %s\n", strings.ToUpper(string(rec.Kind)), rec.Number, rec.Title)
	fmt.Fprintf(&b, "State: %s", rec.State)
	if len(rec.Labels) > 0 {
		fmt.Fprintf(&b, " | Labels: %s", strings.Join(rec.Labels, ", "))
	}
	b.WriteString("\n")
	if rec.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", rec.Author)
	}
	fmt.Fprintf(&b, "Opened: %s\n\n", rec.CreatedAt.Format("2006-01-02"))
	if rec.Body != "" {
		b.WriteString(rec.Body)
		b.WriteString("\n\n")
	}
	for _, cm := range corpus.Thread(rec.Number) {
		fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n\n", cm.Author, cm.CreatedAt.Format("2006-01-02"), cm.Body)
	}
	return textutil.Truncate(b.String(), d.maxContextBytes, truncationMarker)
}

func (d *Dispatcher) buildDiscussionContext(disc ghfetch.Discussion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DISCUSSION #%d: %s\n", disc.Number, disc.Title)
	if disc.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", disc.Author)
	}
	fmt.Fprintf(&b, "Opened: %s\n\n", disc.CreatedAt.Format("2006-01-02"))
	if disc.Body != "" {
		b.WriteString(disc.Body)
		b.WriteString("\n\n")
	}
	for _, cm := range disc.Comments {
		fmt.Fprintf(&b, "--- %s (%s) ---\n%s\n\n", cm.Author, cm.CreatedAt.Format("2006-01-02"), cm.Body)
	}
	return textutil.Truncate(b.String(), d.maxContextBytes, truncationMarker)
}

// Summary aggregates one Run's outcomes.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures across results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Failed() {
			s.Failed++
		} else {
			s.Succeeded++
		}
	}
	return s
}
