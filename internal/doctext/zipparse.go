package doctext

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// maxSlides limits the number of slides to process.
const maxSlides = 200

// ZipParse extracts DOCX and PPTX text by opening the OOXML container
// directly and walking the XML. It needs no external tools and survives
// files that the converter chokes on.
type ZipParse struct{}

// NewZipParse creates the strategy.
func NewZipParse() *ZipParse {
	return &ZipParse{}
}

func (z *ZipParse) Name() string { return "zip-parse" }

func (z *ZipParse) Supports(format Format) bool {
	return format == FormatDOCX || format == FormatPPTX
}

func (z *ZipParse) Extract(ctx context.Context, doc Document) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return "", fmt.Errorf("not a valid ZIP container: %w", err)
	}

	switch doc.Format() {
	case FormatDOCX:
		return extractDOCX(zipReader)
	case FormatPPTX:
		return extractPPTX(zipReader)
	default:
		return "", fmt.Errorf("zip-parse does not handle %s", doc.Format())
	}
}

func extractDOCX(zipReader *zip.Reader) (string, error) {
	for _, file := range zipReader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("failed to read document.xml: %w", err)
		}
		return paragraphText(content, func(name xml.Name) bool {
			return name.Local == "p" && name.Space == "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
		}), nil
	}
	return "", fmt.Errorf("missing word/document.xml")
}

func extractPPTX(zipReader *zip.Reader) (string, error) {
	type slideFile struct {
		num  int
		file *zip.File
	}
	var slides []slideFile

	for _, file := range zipReader.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") || !strings.HasSuffix(file.Name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(path.Base(file.Name), "slide"), ".xml")
		num, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: num, file: file})
	}
	if len(slides) == 0 {
		return "", fmt.Errorf("no slides found")
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	if len(slides) > maxSlides {
		slides = slides[:maxSlides]
	}

	var b strings.Builder
	for _, slide := range slides {
		rc, err := slide.file.Open()
		if err != nil {
			continue
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}

		// a:p is the DrawingML paragraph element.
		text := paragraphText(content, func(name xml.Name) bool {
			return name.Local == "p" && strings.Contains(name.Space, "drawingml")
		})
		if text != "" {
			fmt.Fprintf(&b, "\n--- Slide %d ---\n%s\n", slide.num, text)
		}
	}

	return b.String(), nil
}

// paragraphText streams the XML and joins character data inside matching
// paragraph elements, one output line per paragraph.
func paragraphText(xmlContent []byte, isParagraph func(xml.Name) bool) string {
	var out strings.Builder
	decoder := xml.NewDecoder(bytes.NewReader(xmlContent))

	inParagraph := false
	var paragraph strings.Builder

	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}

		switch t := token.(type) {
		case xml.StartElement:
			if isParagraph(t.Name) {
				inParagraph = true
				paragraph.Reset()
			}
		case xml.EndElement:
			if isParagraph(t.Name) {
				if inParagraph && paragraph.Len() > 0 {
					out.WriteString(paragraph.String())
					out.WriteString("\n")
				}
				inParagraph = false
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text != "" && inParagraph {
				if paragraph.Len() > 0 {
					paragraph.WriteString(" ")
				}
				paragraph.WriteString(text)
			}
		}
	}

	return out.String()
}
