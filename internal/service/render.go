// internal/service/render.go
package service

import (
	"fmt"
	"strings"

	"github.com/funilzap/crm-backend/internal/model"
)

// RenderContext carries the per-lead data the template variables resolve
// against.
type RenderContext struct {
	Lead        model.Lead
	StageName   string
	TagsText    string
	CompanyName string
}

// ResolveVariables substitutes every supported token in raw. Both the brace
// form ({nome}) and the legacy bracket form ([NOME_LEAD]) are kept because
// stored templates use either.
func ResolveVariables(raw string, ctx RenderContext) string {
	nome := ctx.Lead.Title
	if nome == "" {
		nome = ctx.Lead.Client
	}
	empresa := ctx.Lead.Client
	etapa := ctx.StageName
	if etapa == "" {
		etapa = ctx.Lead.Status
	}
	vendedor := ""
	if ctx.Lead.AssignedTo != nil {
		vendedor = ctx.Lead.AssignedTo.Name
	}

	primeiroNome := ""
	if parts := strings.Fields(nome); len(parts) > 0 {
		primeiroNome = parts[0]
	}

	replacements := [][2]string{
		{"{nome}", nome},
		{"{empresa}", empresa},
		{"{etapa_funil}", etapa},
		{"{vendedor}", vendedor},
		{"{tags}", ctx.TagsText},
		{"[NOME_LEAD]", nome},
		{"[PRIMEIRO_NOME_LEAD]", primeiroNome},
		{"[RAZAO_SOCIAL]", empresa},
		{"[NOME_MINHA_EMPRESA]", ctx.CompanyName},
		{"[TAGS]", ctx.TagsText},
	}

	out := raw
	for _, r := range replacements {
		out = strings.ReplaceAll(out, r[0], r[1])
	}
	return out
}

// RenderTemplate produces the final message text for one lead. For buttons
// templates the designated start step is rendered with its options as a
// numbered list.
func RenderTemplate(t model.Template, ctx RenderContext) string {
	switch t.Type {
	case model.TemplateText:
		return ResolveVariables(t.Content.Text, ctx)

	case model.TemplateImage, model.TemplateVideo:
		caption := ResolveVariables(t.Content.Caption, ctx)
		media := strings.TrimSpace(t.Content.MediaURL)
		if media != "" && caption != "" {
			return caption + "\n\n" + media
		}
		if caption != "" {
			return caption
		}
		return media

	case model.TemplateButtons:
		step := t.StartStep()
		if step == nil {
			return ""
		}
		text := ResolveVariables(step.Text, ctx)
		lines := []string{}
		for i, b := range step.Buttons {
			label := strings.TrimSpace(b.Label)
			if label == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%d) %s", i+1, label))
		}
		if len(lines) > 0 {
			return text + "\n\n" + strings.Join(lines, "\n")
		}
		return text
	}

	return ""
}
