package output

import (
	"io"
	"strings"

	md "github.com/nao1215/markdown"
)

// MarkdownFormatter renders a View as a markdown report.
type MarkdownFormatter struct{}

// Format writes the title as a level one header and every section as a
// level two header followed by its table and notes. Anything other than a
// View is written as a YAML code block.
func (f *MarkdownFormatter) Format(w io.Writer, data any) error {
	doc := md.NewMarkdown(w)

	v, ok := data.(*View)
	if !ok {
		var buf strings.Builder
		if err := (&YAMLFormatter{}).Format(&buf, data); err != nil {
			return err
		}
		return doc.CodeBlocks(md.SyntaxHighlight("yaml"), buf.String()).Build()
	}

	if v.Title != "" {
		doc.H1(v.Title)
	}
	for _, section := range v.Sections {
		if section.Heading != "" {
			doc.H2(section.Heading)
		}
		if len(section.Rows) > 0 {
			doc.Table(md.TableSet{
				Header: TitleHeaders(section.Headers),
				Rows:   section.Rows,
			})
		}
		if len(section.Notes) > 0 {
			doc.BulletList(section.Notes...)
		}
	}
	return doc.Build()
}
