package crawl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"github.com/bit101/go-ansi"
	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/ryanuber/columnize"
	"github.com/zvonler/wallspider/graph"
	"github.com/zvonler/wallspider/model"
	"gopkg.in/yaml.v2"
)

const (
	FormatTable    = "table"
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
	FormatPager    = "pager"
)

var Formats = []string{FormatTable, FormatJSON, FormatYAML, FormatMarkdown, FormatPager}

const maxMessageWidth = 60

func ValidFormat(f string) bool {
	return slices.Contains(Formats, f)
}

// NodeRecords is the serialized form of one crawled node.
type NodeRecords struct {
	NodeID   string         `json:"nodeId" yaml:"nodeId"`
	NodeType string         `json:"nodeType" yaml:"nodeType"`
	Records  []model.Record `json:"records" yaml:"records"`
}

// documents returns the bare record list for a single node so the output
// matches a crawl's return value, and one entry per node otherwise.
func documents(results []graph.Result) any {
	if len(results) == 1 {
		return nonNil(results[0].Records)
	}
	docs := make([]NodeRecords, len(results))
	for i, r := range results {
		docs[i] = NodeRecords{NodeID: r.Target.NodeID, NodeType: r.Target.NodeType, Records: nonNil(r.Records)}
	}
	return docs
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}

// Render writes results to w in one of the non-interactive formats.
func Render(w io.Writer, format string, results []graph.Result, now time.Time) error {
	switch format {
	case FormatTable:
		return renderTable(w, results, now)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(documents(results))
	case FormatYAML:
		out, err := yaml.Marshal(documents(results))
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case FormatMarkdown:
		return renderMarkdown(w, results)
	case FormatPager:
		return renderColored(w, results, now)
	}
	return fmt.Errorf("unknown format %q", format)
}

// oneLine flattens whitespace and the column delimiter and shortens long
// messages.
func oneLine(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", "/")
	if r := []rune(s); len(r) > width {
		s = string(r[:width-3]) + "..."
	}
	return s
}

func renderTable(w io.Writer, results []graph.Result, now time.Time) error {
	output := []string{
		"Node | ID | By | Created | Message",
	}
	for _, r := range results {
		for _, rec := range r.Records {
			output = append(output, fmt.Sprintf("%s | %s | %s | %s | %s",
				r.Target.NodeID, rec.ID, oneLine(rec.By, 30),
				humanize.RelTime(rec.Created(), now, "ago", "from now"),
				oneLine(rec.Message, maxMessageWidth)))
		}
	}
	_, err := fmt.Fprintln(w, columnize.SimpleFormat(output))
	return err
}

func renderMarkdown(w io.Writer, results []graph.Result) error {
	md := markdown.NewMarkdown(w)
	for _, r := range results {
		md.H2(fmt.Sprintf("%s `%s`", r.Target.NodeType, r.Target.NodeID))
		md.PlainText("")

		if len(r.Records) == 0 {
			md.PlainText("*No records.*")
			md.PlainText("")
			continue
		}

		rows := make([][]string, len(r.Records))
		for i, rec := range r.Records {
			rows[i] = []string{"`" + rec.ID + "`", oneLine(rec.By, 30), rec.ReadableTime, oneLine(rec.Message, maxMessageWidth)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"ID", "By", "Created", "Message"},
			Rows:   rows,
		})
		md.PlainText("")
		md.PlainTextf("%s records", humanize.Comma(int64(len(r.Records))))
		md.PlainText("")
	}
	return md.Build()
}

func renderColored(w io.Writer, results []graph.Result, now time.Time) error {
	for _, r := range results {
		ansi.Fprintf(w, ansi.Yellow, "%s %s", r.Target.NodeType, r.Target.NodeID)
		ansi.Fprintf(w, ansi.Default, " (")
		ansi.Fprintf(w, ansi.Cyan, "%s records", humanize.Comma(int64(len(r.Records))))
		ansi.Fprintf(w, ansi.Default, ")\n")
		ansi.Fprintln(w, ansi.Blue, "========")

		for _, rec := range r.Records {
			ansi.Fprintf(w, ansi.Cyan, "%s", rec.ID)
			ansi.Fprintf(w, ansi.Default, " %s (%s)\n", rec.ReadableTime, humanize.RelTime(rec.Created(), now, "ago", "from now"))
			ansi.Fprintf(w, ansi.Red, "%s", rec.By)
			ansi.Fprintf(w, ansi.Default, ": ")
			ansi.Fprintf(w, ansi.Green, "\"")
			ansi.Fprintf(w, ansi.Default, "%s", rec.Message)
			ansi.Fprintf(w, ansi.Green, "\"\n")
			ansi.Fprintln(w, ansi.Blue, "--------")
		}
	}
	return nil
}

// Page pipes the colored rendering through less, or writes it straight to
// stdout when less is not installed.
func Page(results []graph.Result, now time.Time) error {
	less, err := exec.LookPath("less")
	if err != nil {
		return renderColored(os.Stdout, results, now)
	}

	cmd := exec.Command(less, "-FRX")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	go func() {
		defer stdin.Close()
		renderColored(stdin, results, now)
	}()

	return cmd.Run()
}
