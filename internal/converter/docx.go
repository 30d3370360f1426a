package converter

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const docxNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`</Types>`

const docxRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

// docxSection is a heading followed by paragraphs. Sections after the first start on a new page.
type docxSection struct {
	Heading    string
	Paragraphs []string
}

// writeDocx writes a minimal WordprocessingML package.
func writeDocx(path, title string, sections []docxSection) (err error) {
	var body bytes.Buffer
	if title != "" {
		writeDocxParagraph(&body, title, 40)
	}
	for i, s := range sections {
		if i > 0 {
			body.WriteString(`<w:p><w:r><w:br w:type="page"/></w:r></w:p>`)
		}
		if s.Heading != "" {
			writeDocxParagraph(&body, s.Heading, 28)
		}
		for _, p := range s.Paragraphs {
			writeDocxParagraph(&body, p, 0)
		}
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="` + docxNS + `"><w:body>` + body.String() + `</w:body></w:document>`

	// #nosec G304 - path is inside the job scratch directory
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create docx: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close docx: %w", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	parts := []struct{ name, data string }{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRels},
		{"word/document.xml", document},
	}
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", p.name, err)
		}
		if _, err := io.WriteString(w, p.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", p.name, err)
		}
	}
	return zw.Close()
}

// writeDocxParagraph appends one paragraph; a non-zero halfPoints makes it a bold heading.
func writeDocxParagraph(buf *bytes.Buffer, text string, halfPoints int) {
	buf.WriteString("<w:p><w:r>")
	if halfPoints > 0 {
		fmt.Fprintf(buf, `<w:rPr><w:b/><w:sz w:val="%d"/></w:rPr>`, halfPoints)
	}
	buf.WriteString(`<w:t xml:space="preserve">`)
	_ = xml.EscapeText(buf, []byte(text))
	buf.WriteString("</w:t></w:r></w:p>")
}

// readDocxText returns the text of word/document.xml with one line per paragraph.
func readDocxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document part: %w", err)
		}
		defer func() { _ = rc.Close() }()
		return extractWordText(rc)
	}
	return "", errors.New("docx has no word/document.xml")
}

func extractWordText(r io.Reader) (string, error) {
	var sb strings.Builder
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document part: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				if !isPageBreak(t) {
					sb.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func isPageBreak(el xml.StartElement) bool {
	for _, a := range el.Attr {
		if a.Name.Local == "type" && a.Value == "page" {
			return true
		}
	}
	return false
}
