package server

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/alexschlessinger/deskchat/messages"
)

const (
	// UploadTextLimit bounds the extracted text, in runes
	UploadTextLimit = 15000

	maxUploadBytes = 50 << 20
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".webp": true, ".svg": true, ".tiff": true, ".ico": true,
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("reading upload: %v", err))
		return
	}

	name := header.Filename
	if name == "" {
		name = "unknown"
	}
	result := ExtractText(name, data)
	s.logger.Infow("server_upload_parsed", "name", name, "size", len(data), "type", result.Type, "truncated", result.Meta.Truncated)
	writeJSON(w, http.StatusOK, result)
}

// ExtractText pulls readable text out of an uploaded file, chosen by its
// extension. Extraction failures are reported in the text, never as errors.
func ExtractText(name string, data []byte) messages.UploadResult {
	result := messages.UploadResult{
		Type: "text",
		Meta: messages.UploadMeta{Name: name, Size: int64(len(data))},
	}

	ext := strings.ToLower(filepath.Ext(name))
	var err error
	switch {
	case ext == ".pdf":
		result.Type = "pdf"
		result.Text = fmt.Sprintf("[PDF text extraction is not supported: %s]", name)
	case ext == ".docx":
		result.Type = "docx"
		result.Text, err = officeText(data, isDocxPart, "p")
	case ext == ".pptx":
		result.Type = "pptx"
		result.Text, err = slidesText(data)
	case imageExts[ext]:
		result.Type = "image"
		result.Text = describeImage(name, data, &result.Meta)
	case ext == ".csv":
		result.Type = "spreadsheet"
		result.Text = decodeText(data)
	case ext == ".xls" || ext == ".xlsx":
		result.Type = "spreadsheet"
		result.Text = fmt.Sprintf("[Excel file: %s, upload it as CSV for best results]", name)
	default:
		result.Text = decodeText(data)
	}
	if err != nil {
		result.Text = fmt.Sprintf("[Could not parse file: %v]", err)
	}

	if n := utf8.RuneCountInString(result.Text); n > UploadTextLimit {
		result.Text = string([]rune(result.Text)[:UploadTextLimit]) +
			fmt.Sprintf("\n\n… (truncated, about %d characters in total)", n)
		result.Meta.Truncated = true
	}
	return result
}

// decodeText reads data as UTF-8, replacing invalid sequences
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

func describeImage(name string, data []byte, meta *messages.UploadMeta) string {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("[Could not read image: %s]", name)
	}
	meta.Width = cfg.Width
	meta.Height = cfg.Height
	meta.Format = strings.ToUpper(format)
	return fmt.Sprintf("[Image: %s, %dx%dpx, %s]", name, cfg.Width, cfg.Height, meta.Format)
}

func isDocxPart(name string) bool {
	return name == "word/document.xml"
}

// officeText collects the text runs of the zip parts selected by match,
// starting a new line at every closing element named paragraph
func officeText(data []byte, match func(string) bool, paragraph string) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var parts []string
	for _, f := range zr.File {
		if !match(f.Name) {
			continue
		}
		text, err := partText(f, paragraph)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// slidesText extracts each slide's text under a numbered heading
func slidesText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		n    int
		file *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		var n int
		if _, err := fmt.Sscanf(f.Name, "ppt/slides/slide%d.xml", &n); err == nil {
			slides = append(slides, slide{n, f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var parts []string
	for _, sl := range slides {
		text, err := partText(sl.file, "p")
		if err != nil {
			return "", fmt.Errorf("slide %d: %w", sl.n, err)
		}
		if text != "" {
			parts = append(parts, fmt.Sprintf("--- Slide %d ---\n%s", sl.n, text))
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// partText reads the character data of <t> elements in one XML part
func partText(f *zip.File, paragraph string) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var lines []string
	var line strings.Builder
	inText := false

	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			inText = t.Name.Local == "t"
		case xml.EndElement:
			if t.Name.Local == "t" {
				inText = false
			}
			if t.Name.Local == paragraph {
				if s := strings.TrimSpace(line.String()); s != "" {
					lines = append(lines, s)
				}
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(line.String()); s != "" {
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n"), nil
}
