// Package extracttest builds small PDFs for tests.
package extracttest

import (
	"bytes"
	"fmt"
	"strings"
)

// BuildPDF returns a PDF with one page per entry of pages. Each line of a page's text is
// drawn with Helvetica; an empty entry produces a page without any content stream, which
// has no text layer, like a scanned page.
func BuildPDF(pages ...string) []byte {
	var objs []string
	// 1: catalog, 2: page tree, 3: font, then a page and optional content object per page.
	kids := make([]string, len(pages))
	next := 4
	type pageObjs struct{ page, content int }
	layout := make([]pageObjs, len(pages))
	for i, text := range pages {
		layout[i].page = next
		next++
		if text != "" {
			layout[i].content = next
			next++
		}
		kids[i] = fmt.Sprintf("%d 0 R", layout[i].page)
	}

	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>"
		if layout[i].content != 0 {
			page += fmt.Sprintf(" /Contents %d 0 R", layout[i].content)
		}
		objs = append(objs, page+" >>")
		if layout[i].content != 0 {
			stream := contentStream(text)
			objs = append(objs, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func contentStream(text string) string {
	var sb strings.Builder
	sb.WriteString("BT /F1 11 Tf 14 TL 72 740 Td")
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			sb.WriteString(" T*")
		}
		sb.WriteString(" (")
		sb.WriteString(escape(line))
		sb.WriteString(") Tj")
	}
	sb.WriteString(" ET")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
