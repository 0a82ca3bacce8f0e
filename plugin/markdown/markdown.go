// Package markdown renders conversation text to HTML.
package markdown

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Service renders assistant and user text. Raw HTML in the input is not passed through.
type Service interface {
	RenderHTML(content string) (string, error)
}

type service struct {
	md goldmark.Markdown
}

// NewService creates a markdown service with GFM and hard line breaks.
func NewService() Service {
	return &service{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// RenderHTML renders content to an HTML fragment.
func (s *service) RenderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(normalizeBullets(content)), &buf); err != nil {
		return "", errors.Wrap(err, "failed to render markdown")
	}
	return buf.String(), nil
}

// normalizeBullets turns lines starting with "•" into markdown list items
// and separates a list from a directly preceding paragraph line.
func normalizeBullets(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines)+2)
	prevBullet := false
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		isBullet := strings.HasPrefix(trimmed, "•")
		if isBullet {
			item := strings.TrimSpace(strings.TrimPrefix(trimmed, "•"))
			if !prevBullet && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, "- "+item)
		} else {
			if prevBullet && strings.TrimSpace(line) != "" {
				out = append(out, "")
			}
			out = append(out, line)
		}
		prevBullet = isBullet
	}
	return strings.Join(out, "\n")
}
