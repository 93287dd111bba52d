package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/jedib0t/go-pretty/v6/table"
)

const (
	stampLayout = "20060102_150405"

	maxFlairDeltaLines  = 20
	maxDomainDeltaLines = 30
	noneLine            = "_(none)_"
	redditBase          = "https://www.reddit.com"
)

// Paths are the files written for one report.
type Paths struct {
	Markdown string
	JSON     string
	Atom     string
}

// FilePaths returns the output paths for r under dir.
func FilePaths(r *Report, dir string) Paths {
	base := "dd_report_" + r.Generated.UTC().Format(stampLayout)
	suffix := ""
	if r.Diff != nil {
		suffix = "_diff"
	}
	return Paths{
		Markdown: filepath.Join(dir, base+suffix+".md"),
		JSON:     filepath.Join(dir, base+suffix+".json"),
		Atom:     filepath.Join(dir, base+".atom.xml"),
	}
}

// Write renders r as Markdown, JSON and an Atom feed of its top posts into dir.
func Write(r *Report, dir string) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create report dir: %w", err)
	}
	paths := FilePaths(r, dir)

	data, err := JSON(r)
	if err != nil {
		return Paths{}, err
	}
	if err = os.WriteFile(paths.JSON, data, 0o644); err != nil {
		return Paths{}, fmt.Errorf("write json report: %w", err)
	}

	if err = os.WriteFile(paths.Markdown, []byte(Markdown(r, paths)), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write markdown report: %w", err)
	}

	atom, err := Atom(r)
	if err != nil {
		return Paths{}, err
	}
	if err = os.WriteFile(paths.Atom, []byte(atom), 0o644); err != nil {
		return Paths{}, fmt.Errorf("write atom feed: %w", err)
	}
	return paths, nil
}

// JSON encodes r with two-space indentation.
func JSON(r *Report) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return data, nil
}

// Markdown renders r. The output paths are listed at the end.
func Markdown(r *Report, paths Paths) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s DD Library Report\n\n", r.Subreddit)
	fmt.Fprintf(&b, "Generated (UTC): `%s`  \n", r.GeneratedAt)
	fmt.Fprintf(&b, "Window: last **%d** days (since `%s`)\n\n", r.WindowDays, r.WindowStart)

	b.WriteString("## Totals\n")
	fmt.Fprintf(&b, "- Posts (all time): **%d**\n", r.Totals.PostsTotal)
	fmt.Fprintf(&b, "- Links (all time): **%d**\n", r.Totals.LinksTotal)
	fmt.Fprintf(&b, "- Posts in window: **%d**\n\n", r.Totals.PostsWindow)

	b.WriteString("## Flair breakdown\n")
	if len(r.Flairs) == 0 {
		b.WriteString(noneLine + "\n")
	}
	for _, f := range r.Flairs {
		fmt.Fprintf(&b, "- `%s`: **%d**\n", f.Flair, f.Count)
	}

	b.WriteString("\n## Top posts by score (window)\n")
	if len(r.TopPosts) == 0 {
		b.WriteString(noneLine + "\n")
	} else {
		b.WriteString(topPostsTable(r.TopPosts) + "\n")
	}

	b.WriteString("\n## Top cited domains (window)\n")
	if len(r.TopDomains) == 0 {
		b.WriteString(noneLine + "\n")
	}
	for _, d := range r.TopDomains {
		fmt.Fprintf(&b, "- `%s`: **%d**\n", d.Domain, d.Count)
	}

	if r.Diff != nil {
		writeDiff(&b, r.Diff)
	}

	b.WriteString("\nOutputs:\n")
	for _, p := range []string{paths.Markdown, paths.JSON, paths.Atom} {
		if p != "" {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

func topPostsTable(posts []TopPost) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Score", "Comments", "Flair", "Title"})
	for _, p := range posts {
		flair := "(none)"
		if p.Flair != nil {
			flair = *p.Flair
		}
		title := fmt.Sprintf("[%s](%s)", escapeLinkText(p.Title), p.Permalink)
		t.AppendRow(table.Row{p.Score, p.NumComments, flair, title})
	}
	return t.RenderMarkdown()
}

func writeDiff(b *strings.Builder, d *Diff) {
	b.WriteString("\n## Week-over-week Diff\n")
	fmt.Fprintf(b, "This week: `%s → %s`\n", d.ThisWeek.Start, d.ThisWeek.End)
	fmt.Fprintf(b, "Last week: `%s → %s`\n\n", d.LastWeek.Start, d.LastWeek.End)

	b.WriteString("### Flair deltas (this - last)\n")
	for _, x := range d.FlairDeltas[:min(len(d.FlairDeltas), maxFlairDeltaLines)] {
		fmt.Fprintf(b, "- `%s` Δ **%d** (this %d, last %d)\n", x.Key, x.Delta, x.This, x.Last)
	}

	b.WriteString("\n### Domain deltas (this - last)\n")
	for _, x := range d.DomainDeltas[:min(len(d.DomainDeltas), maxDomainDeltaLines)] {
		fmt.Fprintf(b, "- `%s` Δ **%d**\n", x.Key, x.Delta)
	}
}

// Atom renders the top posts of r as an Atom feed.
func Atom(r *Report) (string, error) {
	link := fmt.Sprintf("%s/r/%s/", redditBase, r.Subreddit)
	feed := &feeds.Feed{
		Title:       r.Subreddit + " DD Library: top posts",
		Description: fmt.Sprintf("Highest scoring posts of the last %d days", r.WindowDays),
		Link:        &feeds.Link{Href: link, Rel: "self", Type: "text/html"},
		Id:          link,
		Created:     r.Generated,
		Updated:     r.Generated,
	}

	for _, p := range r.TopPosts {
		desc := fmt.Sprintf("Score %d, %d comments", p.Score, p.NumComments)
		if p.Flair != nil {
			desc += ", flair " + *p.Flair
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Title:       p.Title,
			Link:        &feeds.Link{Href: p.Permalink, Rel: "alternate", Type: "text/html"},
			Id:          p.Permalink,
			Description: desc,
			Created:     time.Unix(p.CreatedUTC, 0).UTC(),
		})
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return "", fmt.Errorf("render atom feed: %w", err)
	}
	return atom, nil
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
