// Package content serves the devotional articles shown next to the
// check-in flow. Articles are markdown files with YAML front matter:
//
//	<root>/<locale>/<category>/<slug>.md
//
// A lookup in a locale that lacks the article falls back to the default
// locale. Rendered HTML is always sanitized.
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/warp/prayer-ledger/generic"
)

var (
	ErrNotFound    = errors.New("article not found")
	ErrInvalidPath = errors.New("invalid article path")
)

// Article is a rendered piece of content.
type Article struct {
	Category string              `json:"category"`
	Slug     string              `json:"slug"`
	Locale   string              `json:"locale"`
	Title    string              `json:"title"`
	Summary  string              `json:"summary,omitempty"`
	Mystery  generic.MysteryType `json:"mystery,omitempty"`
	HTML     string              `json:"html"`
}

// Source looks up articles.
type Source interface {
	Article(ctx context.Context, category, slug, locale string) (*Article, error)
}

type frontMatter struct {
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Mystery string `yaml:"mystery"`
}

var segmentPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// FileSource reads articles from a directory tree.
type FileSource struct {
	fsys          fs.FS
	defaultLocale string
	markdown      goldmark.Markdown
	policy        *bluemonday.Policy
}

// NewFileSource reads from root on disk.
func NewFileSource(root, defaultLocale string) *FileSource {
	return NewFSSource(os.DirFS(root), defaultLocale)
}

// NewFSSource reads from any fs.FS.
func NewFSSource(fsys fs.FS, defaultLocale string) *FileSource {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	return &FileSource{
		fsys:          fsys,
		defaultLocale: strings.ToLower(defaultLocale),
		markdown:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy:        bluemonday.UGCPolicy(),
	}
}

// Article returns the article in locale, or in the default locale when
// the requested one does not have it. An empty locale means the default.
func (s *FileSource) Article(ctx context.Context, category, slug, locale string) (*Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locale = strings.ToLower(strings.TrimSpace(locale))
	if locale == "" {
		locale = s.defaultLocale
	}
	for _, seg := range []string{category, slug, locale} {
		if !segmentPattern.MatchString(seg) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, seg)
		}
	}

	locales := []string{locale}
	if locale != s.defaultLocale {
		locales = append(locales, s.defaultLocale)
	}
	for _, loc := range locales {
		raw, err := fs.ReadFile(s.fsys, path.Join(loc, category, slug+".md"))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read article: %w", err)
		}
		article, err := s.render(raw)
		if err != nil {
			return nil, fmt.Errorf("article %s/%s/%s: %w", loc, category, slug, err)
		}
		article.Category, article.Slug, article.Locale = category, slug, loc
		return article, nil
	}
	return nil, ErrNotFound
}

func (s *FileSource) render(raw []byte) (*Article, error) {
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}
	var fm frontMatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return nil, fmt.Errorf("failed to parse front matter: %w", err)
		}
	}

	var html bytes.Buffer
	if err := s.markdown.Convert(body, &html); err != nil {
		return nil, fmt.Errorf("failed to render markdown: %w", err)
	}

	article := &Article{
		Title:   fm.Title,
		Summary: fm.Summary,
		HTML:    s.policy.Sanitize(html.String()),
	}
	if fm.Mystery != "" {
		m, err := generic.ParseMystery(fm.Mystery)
		if err != nil {
			return nil, err
		}
		article.Mystery = m
	}
	return article, nil
}

// splitFrontMatter separates a leading "---" delimited YAML block from
// the markdown body. Files without one are all body.
func splitFrontMatter(raw []byte) (meta, body []byte, err error) {
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	normalized := bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized, nil
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, nil, errors.New("unterminated front matter")
	}
	meta = rest[:end]
	body = rest[end+len("\n---"):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return meta, body, nil
}
