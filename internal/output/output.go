// Package output persists the distribution artifacts of an approved run.
// Artifacts derive only from the final approved draft; nothing is written
// for rejected or failed runs.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/inkforge/inkforge/internal/budget"
	"github.com/inkforge/inkforge/internal/models"
)

// Bundle is everything the writer persists for one approved run.
type Bundle struct {
	RunID       string
	Topic       string
	Article     string
	SEO         string
	Metrics     string
	Summary     string
	Social      string
	Validation  models.ValidationResult
	Sources     map[string]*models.SourceDocument
	Totals      budget.Totals
	Iterations  int
	Quick       bool
	GeneratedAt time.Time
}

// Writer writes run artifacts under a base directory.
type Writer struct {
	baseDir string
	logger  *zap.Logger
}

// NewWriter builds a Writer rooted at baseDir.
func NewWriter(baseDir string, logger *zap.Logger) *Writer {
	if baseDir == "" {
		baseDir = "runs"
	}
	return &Writer{baseDir: baseDir, logger: logger}
}

type sourceMeta struct {
	URL    string `yaml:"url"`
	Tier   int    `yaml:"tier"`
	Live   bool   `yaml:"live"`
	Status int    `yaml:"status,omitempty"`
	Reason string `yaml:"reason,omitempty"`
}

type claimMeta struct {
	Span       string  `yaml:"span"`
	Type       string  `yaml:"type"`
	Verdict    string  `yaml:"verdict"`
	Method     string  `yaml:"method,omitempty"`
	Confidence float64 `yaml:"confidence,omitempty"`
	URL        string  `yaml:"url,omitempty"`
}

type verificationMeta struct {
	Approved      bool        `yaml:"approved"`
	VerifiedRatio float64     `yaml:"verified_ratio"`
	LiveSources   int         `yaml:"live_sources"`
	CitationCount int         `yaml:"citation_count"`
	Claims        []claimMeta `yaml:"claims,omitempty"`
}

type roleCostMeta struct {
	Role         string  `yaml:"role"`
	Calls        int     `yaml:"calls"`
	InputTokens  int     `yaml:"input_tokens"`
	OutputTokens int     `yaml:"output_tokens"`
	CostUSD      float64 `yaml:"cost_usd"`
}

type costMeta struct {
	Tokens  int            `yaml:"tokens"`
	CostUSD float64        `yaml:"cost_usd"`
	ByRole  []roleCostMeta `yaml:"by_role,omitempty"`
}

type metadata struct {
	RunID        string           `yaml:"run_id"`
	Topic        string           `yaml:"topic"`
	GeneratedAt  time.Time        `yaml:"generated_at"`
	Iterations   int              `yaml:"iterations"`
	Quick        bool             `yaml:"quick,omitempty"`
	SEO          interface{}      `yaml:"seo,omitempty"`
	Metrics      interface{}      `yaml:"metrics,omitempty"`
	Verification verificationMeta `yaml:"verification"`
	Sources      []sourceMeta     `yaml:"sources,omitempty"`
	Cost         costMeta         `yaml:"cost"`
}

// Write persists the bundle and returns the artifact directory.
func (w *Writer) Write(b Bundle) (string, error) {
	dir := filepath.Join(w.baseDir, b.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	files := map[string]string{
		"article.md": b.Article,
		"summary.md": b.Summary,
		"social.md":  b.Social,
	}
	for name, content := range files {
		if strings.TrimSpace(content) == "" {
			continue
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}

	meta, err := yaml.Marshal(w.buildMetadata(b))
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.yaml"), meta, 0o644); err != nil {
		return "", fmt.Errorf("write metadata.yaml: %w", err)
	}

	w.logger.Info("Artifacts written",
		zap.String("run_id", b.RunID),
		zap.String("dir", dir),
	)
	return dir, nil
}

func (w *Writer) buildMetadata(b Bundle) metadata {
	m := metadata{
		RunID:       b.RunID,
		Topic:       b.Topic,
		GeneratedAt: b.GeneratedAt.UTC(),
		Iterations:  b.Iterations,
		Quick:       b.Quick,
		SEO:         parseYAMLBlock(b.SEO),
		Metrics:     parseYAMLBlock(b.Metrics),
		Verification: verificationMeta{
			Approved:      b.Validation.Approved,
			VerifiedRatio: b.Validation.VerifiedRatio,
			LiveSources:   b.Validation.LiveSources,
			CitationCount: b.Validation.CitationCount,
		},
		Cost: costMeta{
			Tokens:  b.Totals.Tokens,
			CostUSD: b.Totals.CostUSD,
		},
	}

	for _, v := range b.Validation.Verifications {
		m.Verification.Claims = append(m.Verification.Claims, claimMeta{
			Span:       v.Claim.Span,
			Type:       string(v.Claim.Type),
			Verdict:    string(v.Verdict),
			Method:     string(v.Method),
			Confidence: v.Confidence,
			URL:        v.Claim.CitationURL,
		})
	}
	urls := make([]string, 0, len(b.Sources))
	for u := range b.Sources {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	for _, u := range urls {
		doc := b.Sources[u]
		m.Sources = append(m.Sources, sourceMeta{
			URL:    doc.URL,
			Tier:   doc.Tier,
			Live:   doc.Live(),
			Status: doc.Status,
			Reason: doc.Reason,
		})
	}
	for _, ru := range b.Totals.ByRole {
		m.Cost.ByRole = append(m.Cost.ByRole, roleCostMeta{
			Role:         ru.Role,
			Calls:        ru.Calls,
			InputTokens:  ru.InputTokens,
			OutputTokens: ru.OutputTokens,
			CostUSD:      ru.CostUSD,
		})
	}
	return m
}

// parseYAMLBlock keeps generated metadata structured when the model
// honored the output contract, and falls back to the raw text when not.
func parseYAMLBlock(s string) interface{} {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parsed map[string]interface{}
	if err := yaml.Unmarshal([]byte(s), &parsed); err == nil && len(parsed) > 0 {
		return parsed
	}
	return s
}
