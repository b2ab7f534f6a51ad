// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hvollmer/costchat/internal/model"
)

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// ExportOptions configures session export.
type ExportOptions struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata includes a metadata header (timestamps, counts).
	IncludeMetadata bool

	// IncludeTimestamps includes per-message timestamps.
	IncludeTimestamps bool
}

// DefaultExportOptions returns default export options.
func DefaultExportOptions() *ExportOptions {
	return &ExportOptions{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// =============================================================================
// MARKDOWN EXPORT
// =============================================================================

// ExportMarkdown writes a session transcript as a Markdown file and returns
// the output path.
func ExportMarkdown(rec *Record, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	if rec == nil || len(rec.Messages) == 0 {
		return "", fmt.Errorf("session has no messages")
	}

	var sb strings.Builder

	title := previewOf(rec.Messages)
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))

	if opts.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		sb.WriteString(fmt.Sprintf("- **Created**: %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("- **Last Updated**: %s\n", rec.UpdatedAt.Format("2006-01-02 15:04:05")))
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(rec.Messages)))
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")
	for i, msg := range rec.Messages {
		label := msg.Role.DisplayName()
		if opts.IncludeTimestamps {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, msg.Timestamp.Format("15:04:05")))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		content := msg.Content
		if content == "" && msg.Transcript != "" {
			content = fmt.Sprintf("*Voice message:* %s", msg.Transcript)
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")

		if msg.CostEstimate != nil {
			sb.WriteString(formatEstimateMarkdown(msg.CostEstimate))
		}
		if att := msg.DocumentAttachment; att != nil {
			sb.WriteString(fmt.Sprintf("*Attachment: %s (%s, %d bytes)*\n\n",
				att.Filename, att.MimeType, att.Size))
		}

		if i < len(rec.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	filename := fmt.Sprintf("session_%s_%s.md",
		sanitizeFilename(title), time.Now().Format("20060102_150405"))
	return writeExport(opts.OutputDir, filename, []byte(sb.String()))
}

// formatEstimateMarkdown renders a cost estimate as a Markdown table block.
func formatEstimateMarkdown(est *model.CostEstimate) string {
	var sb strings.Builder
	sb.WriteString("#### Cost Estimate\n\n")
	sb.WriteString(fmt.Sprintf("- **Total**: %.2f EUR\n", est.TotalCostEur))
	if est.CostPerSqm > 0 {
		sb.WriteString(fmt.Sprintf("- **Per m²**: %.2f EUR\n", est.CostPerSqm))
	}
	if est.ConfidenceLevel != "" {
		sb.WriteString(fmt.Sprintf("- **Confidence**: %s\n", est.ConfidenceLevel))
	}
	if len(est.ComponentBreakdown) > 0 {
		sb.WriteString("\n| Component | Category | Cost (EUR) |\n|---|---|---|\n")
		for _, comp := range est.ComponentBreakdown {
			sb.WriteString(fmt.Sprintf("| %s | %s | %.2f |\n",
				comp.ComponentName, comp.ComponentCategory, comp.CostEur))
		}
	}
	sb.WriteString("\n")
	return sb.String()
}

// =============================================================================
// JSON EXPORT
// =============================================================================

// ExportJSON writes the raw session record as an indented JSON file and
// returns the output path.
func ExportJSON(rec *Record, opts *ExportOptions) (string, error) {
	if opts == nil {
		opts = DefaultExportOptions()
	}
	if rec == nil || len(rec.Messages) == 0 {
		return "", fmt.Errorf("session has no messages")
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}

	filename := fmt.Sprintf("session_%s_%s.json",
		sanitizeFilename(previewOf(rec.Messages)), time.Now().Format("20060102_150405"))
	return writeExport(opts.OutputDir, filename, data)
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func writeExport(dir, filename string, content []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	outputPath := filepath.Join(dir, filename)
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	runes := []rune(s)
	if len(runes) > 50 {
		s = string(runes[:50])
	}

	var result []rune
	for _, r := range s {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|':
			result = append(result, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}
	return string(result)
}
