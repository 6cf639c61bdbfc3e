package queryengine

import (
	"testing"

	"github.com/alejandrogutier/claro-data-ai-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
)

func term(v string) domain.QueryTerm   { return domain.QueryTerm{Value: v} }
func phrase(v string) domain.QueryTerm { return domain.QueryTerm{Value: v, IsPhrase: true} }

func TestCompile(t *testing.T) {
	def := domain.QueryDefinition{
		Include: []domain.QueryTerm{term("claro"), term("colombia")},
		Any:     []domain.QueryTerm{term("5g"), term("fibra")},
		Exclude: []domain.QueryTerm{term("futbol")},
	}
	assert.Equal(t, "claro colombia (5g OR fibra) -futbol", Compile(def).Query)
}

func TestCompileSkipsEmptyGroups(t *testing.T) {
	def := domain.QueryDefinition{Include: []domain.QueryTerm{term("claro"), term("  ")}}
	assert.Equal(t, "claro", Compile(def).Query)
}

func TestMatches(t *testing.T) {
	article := ArticleFields{
		Provider:     "newsapi",
		Title:        "Claro amplía su red 5G en Colombia",
		Summary:      "El operador anunció nuevas inversiones",
		Content:      "La expansión cubre quince ciudades.",
		CanonicalURL: "https://www.eltiempo.com/tecnologia/claro-5g",
	}

	tests := []struct {
		name string
		def  domain.QueryDefinition
		want bool
	}{
		{
			name: "all include terms match",
			def:  domain.QueryDefinition{Include: []domain.QueryTerm{term("claro"), term("colombia")}},
			want: true,
		},
		{
			name: "missing include term fails",
			def:  domain.QueryDefinition{Include: []domain.QueryTerm{term("claro"), term("movistar")}},
			want: false,
		},
		{
			name: "exclude term vetoes",
			def: domain.QueryDefinition{
				Include: []domain.QueryTerm{term("claro")},
				Exclude: []domain.QueryTerm{term("inversiones")},
			},
			want: false,
		},
		{
			name: "any requires at least one alternative",
			def: domain.QueryDefinition{
				Include: []domain.QueryTerm{term("claro")},
				Any:     []domain.QueryTerm{term("fibra"), term("satelite")},
			},
			want: false,
		},
		{
			name: "any satisfied by one alternative",
			def: domain.QueryDefinition{
				Include: []domain.QueryTerm{term("claro")},
				Any:     []domain.QueryTerm{term("fibra"), term("5g")},
			},
			want: true,
		},
		{
			name: "literal is whole-word",
			def:  domain.QueryDefinition{Include: []domain.QueryTerm{term("amplia")}},
			want: false,
		},
		{
			name: "phrase is substring",
			def:  domain.QueryDefinition{Include: []domain.QueryTerm{phrase("red 5g en col")}},
			want: true,
		},
		{
			name: "canonical host is searchable",
			def:  domain.QueryDefinition{Include: []domain.QueryTerm{phrase("eltiempo.com")}},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.def, article))
		})
	}
}

func TestSanitizeExecution(t *testing.T) {
	exec := SanitizeExecution(domain.ExecutionConfig{
		ProvidersDeny: []string{" GNews ", "gnews", "", "NewsAPI"},
		DomainsAllow:  []string{"ElTiempo.com"},
	})
	assert.Equal(t, []string{"gnews", "newsapi"}, exec.ProvidersDeny)
	assert.Equal(t, []string{"eltiempo.com"}, exec.DomainsAllow)
	assert.Empty(t, exec.CountriesAllow)
}

func TestSanitizeCapsAtFifty(t *testing.T) {
	in := make([]string, 80)
	for i := range in {
		in[i] = string(rune('a'+i%26)) + string(rune('0'+i/26))
	}
	out := sanitizeList(in)
	assert.Len(t, out, 50)
}

func TestSelectProviders(t *testing.T) {
	all := []string{"newsapi", "gnews", "gdelt"}

	assert.Equal(t, []string{"gdelt", "gnews", "newsapi"},
		SelectProviders(all, domain.ExecutionConfig{}))

	assert.Equal(t, []string{"gdelt", "newsapi"},
		SelectProviders(all, domain.ExecutionConfig{ProvidersDeny: []string{"gnews"}}))

	assert.Equal(t, []string{"gnews"},
		SelectProviders(all, domain.ExecutionConfig{ProvidersAllow: []string{"gnews", "mediastack"}}))

	// Allow ∩ deny leaves nothing: the query is reported as skipped.
	assert.Empty(t,
		SelectProviders(all, domain.ExecutionConfig{
			ProvidersAllow: []string{"gnews"},
			ProvidersDeny:  []string{"gnews"},
		}))
}
