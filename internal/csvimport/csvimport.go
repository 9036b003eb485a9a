// Package csvimport parses uploaded review files into dataset entries.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

// MaxRows bounds the number of data rows accepted from one file.
const MaxRows = 50_000

var (
	// ErrNoHeader is returned for an empty file.
	ErrNoHeader = errors.New("csv has no header row")
	// ErrNoRows is returned when no row carries usable text.
	ErrNoRows = errors.New("csv has no rows with text")
	// ErrTooManyRows is returned when the file exceeds MaxRows.
	ErrTooManyRows = fmt.Errorf("csv has more than %d rows", MaxRows)
)

// Header names recognized for each column, compared case-insensitively.
var (
	textHeaders  = []string{"text", "review", "content", "comment", "ulasan"}
	scoreHeaders = []string{"score", "rating", "stars", "bintang"}
)

const bom = "\ufeff"

var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Row is one usable line of the file.
type Row struct {
	Text  string
	Score *int
}

// Result is a parsed file.
type Result struct {
	Rows []Row
	// TextColumn and ScoreColumn are the header names used; ScoreColumn is
	// empty when the file has no score column.
	TextColumn  string
	ScoreColumn string
	// Skipped counts rows dropped for empty text.
	Skipped int
}

// HasScores reports whether the file carried a score column.
func (r *Result) HasScores() bool {
	return r.ScoreColumn != ""
}

// ParseFile opens and parses the file at path.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a CSV with a header row. The text column is the first header
// named like a review body, or the first column when none matches.
func Parse(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	names := make([]string, len(header))
	for i, h := range header {
		names[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, bom)))
	}

	textCol := findColumn(names, textHeaders)
	if textCol < 0 {
		textCol = 0
	}
	scoreCol := findColumn(names, scoreHeaders)

	res := &Result{TextColumn: strings.TrimSpace(strings.TrimPrefix(header[textCol], bom))}
	if scoreCol >= 0 {
		res.ScoreColumn = strings.TrimSpace(header[scoreCol])
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if len(res.Rows)+res.Skipped >= MaxRows {
			return nil, ErrTooManyRows
		}

		text := ""
		if textCol < len(record) {
			text = CleanText(record[textCol])
		}
		if text == "" {
			res.Skipped++
			continue
		}

		row := Row{Text: text}
		if scoreCol >= 0 && scoreCol < len(record) {
			row.Score = ParseScore(record[scoreCol])
		}
		res.Rows = append(res.Rows, row)
	}

	if len(res.Rows) == 0 {
		return nil, ErrNoRows
	}
	return res, nil
}

func findColumn(names, candidates []string) int {
	for i, name := range names {
		if slices.Contains(candidates, name) {
			return i
		}
	}
	return -1
}

// CleanText trims and NFC-normalizes s, converting HTML markup to markdown.
func CleanText(s string) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

// ParseScore reads a 1..5 score. Decimals are rounded; blank, malformed and
// out-of-range values yield nil.
func ParseScore(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	v := int(math.Round(f))
	if !domain.ValidScore(v) {
		return nil
	}
	return &v
}
