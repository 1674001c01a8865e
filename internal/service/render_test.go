package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/funilzap/crm-backend/internal/model"
)

func sampleLead() model.Lead {
	return model.Lead{
		ID:         "lead-1",
		Title:      "João da Silva",
		Client:     "Padaria Central LTDA",
		Status:     "stage-prospeccao",
		AssignedTo: &model.Person{ID: "u1", Name: "Marina"},
	}
}

func TestResolveVariables(t *testing.T) {
	ctx := RenderContext{
		Lead:        sampleLead(),
		StageName:   "Prospecção",
		TagsText:    "cliente-vip, follow-up",
		CompanyName: "FunilZap",
	}

	out := ResolveVariables("{nome} | {empresa} | {etapa_funil} | {vendedor} | {tags}", ctx)
	require.Equal(t, "João da Silva | Padaria Central LTDA | Prospecção | Marina | cliente-vip, follow-up", out)

	out = ResolveVariables("[NOME_LEAD] / [PRIMEIRO_NOME_LEAD] / [RAZAO_SOCIAL] / [NOME_MINHA_EMPRESA] / [TAGS]", ctx)
	require.Equal(t, "João da Silva / João / Padaria Central LTDA / FunilZap / cliente-vip, follow-up", out)
}

func TestResolveVariablesFallsBackToClientName(t *testing.T) {
	lead := sampleLead()
	lead.Title = ""
	out := ResolveVariables("{nome}", RenderContext{Lead: lead})
	require.Equal(t, "Padaria Central LTDA", out)
}

func TestRenderTextTemplate(t *testing.T) {
	tpl := model.Template{
		ID:      "tpl-1",
		Type:    model.TemplateText,
		Content: model.TemplateContent{Text: "Oi {nome}!"},
	}
	out := RenderTemplate(tpl, RenderContext{Lead: sampleLead()})
	require.Equal(t, "Oi João da Silva!", out)
}

func TestRenderImageTemplate(t *testing.T) {
	tpl := model.Template{
		Type: model.TemplateImage,
		Content: model.TemplateContent{
			Caption:  "Oferta para {empresa}",
			MediaURL: "https://cdn.example.com/promo.jpg",
		},
	}
	out := RenderTemplate(tpl, RenderContext{Lead: sampleLead()})
	require.Equal(t, "Oferta para Padaria Central LTDA\n\nhttps://cdn.example.com/promo.jpg", out)

	// Caption-only and media-only fallbacks.
	tpl.Content.MediaURL = ""
	require.Equal(t, "Oferta para Padaria Central LTDA", RenderTemplate(tpl, RenderContext{Lead: sampleLead()}))

	tpl.Content.Caption = ""
	tpl.Content.MediaURL = "https://cdn.example.com/promo.jpg"
	require.Equal(t, "https://cdn.example.com/promo.jpg", RenderTemplate(tpl, RenderContext{Lead: sampleLead()}))
}

func TestRenderButtonsTemplateUsesStartStep(t *testing.T) {
	tpl := model.Template{
		Type: model.TemplateButtons,
		Content: model.TemplateContent{
			StartStepID: "s2",
			Steps: []model.TemplateStep{
				{ID: "s1", Text: "wrong step"},
				{ID: "s2", Text: "Olá {nome}!", Buttons: []model.TemplateButton{
					{ID: "b1", Label: "Falar com vendas"},
					{ID: "b2", Label: "  "},
					{ID: "b3", Label: "Suporte"},
				}},
			},
		},
	}
	out := RenderTemplate(tpl, RenderContext{Lead: sampleLead()})
	require.Equal(t, "Olá João da Silva!\n\n1) Falar com vendas\n3) Suporte", out)
}

func TestRenderButtonsTemplateFallsBackToFirstStep(t *testing.T) {
	tpl := model.Template{
		Type: model.TemplateButtons,
		Content: model.TemplateContent{
			StartStepID: "missing",
			Steps:       []model.TemplateStep{{ID: "s1", Text: "primeiro"}},
		},
	}
	require.Equal(t, "primeiro", RenderTemplate(tpl, RenderContext{Lead: sampleLead()}))
}
