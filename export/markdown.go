package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// MarkdownWriter writes a plain text report with one heading per section.
type MarkdownWriter struct{}

func (MarkdownWriter) Format() Format      { return FormatMarkdown }
func (MarkdownWriter) ContentType() string { return "text/markdown; charset=utf-8" }
func (MarkdownWriter) Extension() string   { return "md" }

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"#", `\#`,
)

func (MarkdownWriter) Write(w io.Writer, snapshot Snapshot) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# %s\n\n", markdownEscaper.Replace(snapshot.Title()))
	if !snapshot.RequestedAt.IsZero() {
		fmt.Fprintf(bw, "_Exported %s_\n\n", snapshot.RequestedAt.UTC().Format("2006-01-02 15:04 MST"))
	}

	for _, section := range snapshot.Sections() {
		fmt.Fprintf(bw, "## %s\n\n", section.Title)
		for _, f := range section.Fields {
			value := strings.ReplaceAll(markdownEscaper.Replace(f.Value), "\n", " ")
			fmt.Fprintf(bw, "- **%s:** %s\n", f.Label, value)
		}
		bw.WriteString("\n")
	}

	return bw.Flush()
}
