// Package suggest proposes a sentiment label for a review text, using a
// remote model when one is configured and a keyword heuristic otherwise.
package suggest

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/sentilabel/sentilabel-server/internal/domain"
)

// Model output labels.
const (
	LabelPositive = "LABEL_0"
	LabelNeutral  = "LABEL_1"
	LabelNegative = "LABEL_2"
)

// Sources of a suggestion.
const (
	SourceModel    = "model"
	SourceKeywords = "keywords"
)

// KeywordConfidence is reported for every keyword match.
const KeywordConfidence = 0.9

// ErrEmptyText is returned for blank input.
var ErrEmptyText = errors.New("empty text provided")

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "wonderful", "love", "perfect"}
	negativeWords = []string{"bad", "terrible", "awful", "horrible", "hate", "worst"}
)

// Result is one suggestion.
type Result struct {
	Label         domain.LabelValue `json:"label"`
	Confidence    float64           `json:"confidence"`
	OriginalLabel string            `json:"original_label"`
	// MappedLabel is the three-class label before binary folding.
	MappedLabel domain.LabelValue `json:"original_mapped_label,omitempty"`
	// NumericLabel is 1 for positive and 0 for negative, set in binary mode.
	NumericLabel *int               `json:"numeric_label,omitempty"`
	Scores       map[string]float64 `json:"scores"`
	Source       string             `json:"source"`
}

// BatchItem is one entry of a batch response: a result or an error.
type BatchItem struct {
	Index int `json:"index"`
	*Result
	Error string `json:"error,omitempty"`
}

// Analyzer produces raw model output for a text.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (originalLabel string, confidence float64, err error)
}

// Service suggests labels, falling back to keywords when the model fails.
type Service struct {
	remote Analyzer
	logger *slog.Logger
}

// NewService creates a suggestion service. remote may be nil.
func NewService(remote Analyzer, logger *slog.Logger) *Service {
	return &Service{remote: remote, logger: logger}
}

// Analyze suggests a label for text. When binary is set, neutral folds into negative.
func (s *Service) Analyze(ctx context.Context, text string, binary bool) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	source := SourceKeywords
	original, confidence := Keywords(text)

	if s.remote != nil {
		label, conf, err := s.remote.Analyze(ctx, text)
		if err != nil {
			s.logger.Warn("sentiment model unavailable, using keywords", "error", err)
		} else {
			original, confidence, source = label, conf, SourceModel
		}
	}

	return build(original, confidence, source, binary), nil
}

// AnalyzeBatch suggests labels for every text. Blank texts get a per-item error.
func (s *Service) AnalyzeBatch(ctx context.Context, texts []string, binary bool) []BatchItem {
	items := make([]BatchItem, len(texts))
	for i, text := range texts {
		items[i].Index = i
		res, err := s.Analyze(ctx, text, binary)
		if err != nil {
			items[i].Error = err.Error()
			continue
		}
		items[i].Result = res
	}
	return items
}

// Keywords is the fallback heuristic. Positive words win over negative ones.
func Keywords(text string) (string, float64) {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, positiveWords):
		return LabelPositive, KeywordConfidence
	case containsAny(lower, negativeWords):
		return LabelNegative, KeywordConfidence
	default:
		return LabelNeutral, KeywordConfidence
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// MapLabel converts a model label to a label value. Unknown labels are neutral.
func MapLabel(original string) domain.LabelValue {
	switch original {
	case LabelPositive:
		return domain.LabelPositive
	case LabelNegative:
		return domain.LabelNegative
	default:
		return domain.LabelNeutral
	}
}

func build(original string, confidence float64, source string, binary bool) *Result {
	mapped := MapLabel(original)
	res := &Result{
		Label:         mapped,
		Confidence:    confidence,
		OriginalLabel: original,
		Source:        source,
	}
	if binary {
		res.MappedLabel = mapped
		numeric := 1
		if mapped != domain.LabelPositive {
			res.Label = domain.LabelNegative
			numeric = 0
		}
		res.NumericLabel = &numeric
	}
	res.Scores = map[string]float64{string(res.Label): confidence}
	return res
}
