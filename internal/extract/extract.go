package extract

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// Text extracts plain text from the file at path. PDF content is read page by
// page and joined with single spaces; a page that yields no text contributes
// an empty string. Anything else is decoded as text with invalid byte
// sequences replaced rather than rejected.
func Text(path, filename string) (string, error) {
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return pdfText(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), string(utf8.RuneError)), nil
}

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	pages := make([]string, 0, reader.NumPage())
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page should not sink the document
			slog.Debug("pdf page extraction failed", "path", path, "page", i, "error", err)
			text = ""
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, " "), nil
}
