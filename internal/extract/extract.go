package extract

import (
	"errors"
	"io"
	"net/url"
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
	"github.com/sirupsen/logrus"
)

// ErrNoContent signals that no usable message text could be extracted.
var ErrNoContent = errors.New("no message content found")

// Strategy attempts to pull message text out of raw input. It returns an
// empty string (without an error) when the input is not its format.
type Strategy interface {
	Name() string
	Extract(raw []byte) (string, error)
}

// Extractor tries an ordered list of strategies, first match wins.
type Extractor struct {
	strategies []Strategy
}

// New returns the default extractor: HTML first, plain text as fallback.
func New() *Extractor {
	return &Extractor{strategies: []Strategy{htmlStrategy{}, plainStrategy{}}}
}

// Extract reads the full input and runs the strategy chain over it.
func (e *Extractor) Extract(r io.Reader) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	for _, strategy := range e.strategies {
		text, err := strategy.Extract(raw)
		if err != nil {
			logrus.WithError(err).WithField("strategy", strategy.Name()).Debug("extraction strategy failed")
			continue
		}
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			logrus.WithField("strategy", strategy.Name()).Debug("extracted message content")
			return trimmed, nil
		}
	}
	return "", ErrNoContent
}

var (
	htmlMarker = regexp.MustCompile(`(?i)<\s*(html|body|div|table|p|br)\b`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// htmlStrategy extracts readable text from HTML email bodies. Readability
// handles full documents; short fragments it rejects are tag-stripped
// instead so the chain never falls through to raw markup.
type htmlStrategy struct{}

func (htmlStrategy) Name() string { return "html" }

func (htmlStrategy) Extract(raw []byte) (string, error) {
	if !htmlMarker.Match(raw) {
		return "", nil
	}
	base, _ := url.Parse("http://localhost/")
	article, err := readability.FromReader(strings.NewReader(string(raw)), base)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}
	stripped := tagPattern.ReplaceAllString(string(raw), " ")
	return strings.Join(strings.Fields(stripped), " "), nil
}

// plainStrategy passes text through with whitespace normalized.
type plainStrategy struct{}

func (plainStrategy) Name() string { return "plain" }

func (plainStrategy) Extract(raw []byte) (string, error) {
	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t\r")
	}
	return strings.Join(lines, "\n"), nil
}
