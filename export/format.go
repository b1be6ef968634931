package export

import "strings"

// Format is an export output format.
type Format string

const (
	FormatPDF      Format = "pdf"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

var formatAliases = map[string]Format{
	"pdf":      FormatPDF,
	"csv":      FormatCSV,
	"markdown": FormatMarkdown,
	"md":       FormatMarkdown,
}

// ParseFormat resolves a user supplied format name. Names are case
// insensitive and "md" is accepted for markdown.
func ParseFormat(name string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	return "", unsupported(name)
}

// SupportedFormats returns the canonical format names in display order.
func SupportedFormats() []Format {
	return []Format{FormatPDF, FormatCSV, FormatMarkdown}
}

func (f Format) String() string {
	return string(f)
}

func formatNames() []string {
	formats := SupportedFormats()
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}
