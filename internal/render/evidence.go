// Package render formats evidence packs for terminal output.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/muesli/reflow/wordwrap"

	"github.com/PabloGalante/worksession/internal/domain"
)

const DefaultWidth = 80

// Markdown renders a pack and its session as plain Markdown, with prose
// wrapped at width columns.
func Markdown(pack *domain.EvidencePack, session *domain.WorkSession, width int) string {
	if width < 20 {
		width = 20
	}
	sum := pack.Summary

	var b strings.Builder
	b.WriteString("# Evidence pack\n\n")
	fmt.Fprintf(&b, "- Share id: `%s`\n", pack.ShareID)
	fmt.Fprintf(&b, "- Generated: %s\n", pack.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"))
	if session != nil {
		fmt.Fprintf(&b, "- Session: %s %s, %d minutes, %s\n",
			session.Level, session.RoleTrack, session.DurationMinutes, session.Status)
		fmt.Fprintf(&b, "- Repository: %s\n", session.GitHubURL)
	}
	fmt.Fprintf(&b, "- Estimate: %s (confidence: %s)\n", sum.RoleLevelEstimate, sum.Confidence)

	writeList(&b, "Strengths", sum.Strengths, width)
	writeList(&b, "Risks", sum.Risks, width)

	if len(sum.DecisionLog) > 0 {
		b.WriteString("\n## Decision log\n\n")
		for _, d := range sum.DecisionLog {
			line := fmt.Sprintf("**%s**: %s", d.Stage, d.Decision)
			if d.Rationale != "" {
				line += " (" + d.Rationale + ")"
			}
			b.WriteString(listItem(line, width))
		}
	}

	writeList(&b, "Observations", sum.Observations, width)

	if len(sum.Highlights) > 0 {
		b.WriteString("\n## Highlights\n\n")
		for _, h := range sum.Highlights {
			b.WriteString(quote(h, width))
			b.WriteString("\n")
		}
	}

	if sum.RecommendedNextStep != "" {
		b.WriteString("\n## Recommended next step\n\n")
		b.WriteString(wordwrap.String(sum.RecommendedNextStep, width))
		b.WriteString("\n")
	}

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string, width int) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, item := range items {
		b.WriteString(listItem(item, width))
	}
}

// listItem wraps text and indents continuation lines under the bullet.
func listItem(text string, width int) string {
	wrapped := wordwrap.String(strings.Join(strings.Fields(text), " "), width-2)
	return "- " + strings.ReplaceAll(wrapped, "\n", "\n  ") + "\n"
}

func quote(text string, width int) string {
	wrapped := wordwrap.String(strings.Join(strings.Fields(text), " "), width-2)
	return "> " + strings.ReplaceAll(wrapped, "\n", "\n> ") + "\n"
}

var (
	rendererMu sync.Mutex
	renderers  = map[int]*glamour.TermRenderer{}
)

// Terminal styles Markdown for an interactive terminal. If no renderer can
// be built the input is returned unchanged.
func Terminal(md string, width int) string {
	if width < 20 {
		width = 20
	}
	r := termRenderer(width)
	if r == nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

func termRenderer(width int) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if cached, ok := renderers[width]; ok {
		return cached
	}
	style := styles.ASCIIStyleConfig
	style.Item.BlockPrefix = "- "
	created, err := glamour.NewTermRenderer(
		glamour.WithStyles(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	renderers[width] = created
	return created
}
