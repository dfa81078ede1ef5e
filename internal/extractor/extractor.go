package extractor

import (
	"regexp"
	"strconv"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// QueryType selects which scoring configuration applies downstream.
type QueryType string

const (
	TypeCertification  QueryType = "certification_sustainability"
	TypeFourthDistrict QueryType = "fourth_district_art74"
	TypeArticle        QueryType = "article_specific"
	TypeNeighborhood   QueryType = "neighborhood_specific"
	TypeConstruction   QueryType = "construction_generic"
	TypeGeneric        QueryType = "generic"
)

type IntentKind string

const (
	IntentLookup  IntentKind = "lookup"
	IntentCount   IntentKind = "count"
	IntentSummary IntentKind = "summary"
)

// Intent is everything the pipeline knows about a query before retrieval.
type Intent struct {
	Query     string
	QueryType QueryType
	Kind      IntentKind

	Bairros       []string
	Zonas         []string
	ArticleNumber int
	DocumentType  string
	Topics        []string

	RequestedFields []string

	IsExtremeValue   bool
	ExtremeDirection string // max or min
	ExtremeField     string
	ExtremeScope     string // city or neighborhood

	IsRisk     bool
	IsSemantic bool

	NeedsClarification   bool
	ClarificationMessage string

	SignificantTerms []string
}

var (
	articleRe   = regexp.MustCompile(`(?i)art(?:igo)?\.?\s*(\d+)`)
	paragraphRe = regexp.MustCompile(`§\s*\d+`)
	zotRe       = regexp.MustCompile(`(?i)zot\s*(\d+(?:\.\d+)?(?:\s*-\s*[A-Da-d])?)`)
	streetRe    = regexp.MustCompile(`(?i)\b(rua|avenida|av\.|travessa|beco|alameda|estrada)\s+[A-ZÀ-Úa-zà-ú]`)
)

var constructionTerms = []string{
	"altura", "gabarito", "elevação", "coeficiente", "aproveitamento",
	"zona", "zot", "construção", "edificação", "construir", "recuo",
	"afastamento", "permeabilidade", "regime urbanístico",
}

var riskTerms = []string{
	"risco", "inundação", "alagamento", "enchente", "deslizamento",
	"vendaval", "granizo", "desastre", "cota de inundação",
}

var countingTerms = []string{
	"quantos", "quantas", "quantidade", "total de", "número de",
	"lista", "listar", "média",
}

var summaryTerms = []string{"resumo", "resumir", "resuma", "síntese"}

var semanticTerms = []string{"o que", "como", "por que", "qual o conceito", "explicar", "explique", "significa"}

var certificationTerms = []string{"certificação", "certificacao", "sustentabilidade", "sustentável", "sustentavel"}

var fourthDistrictTerms = []string{"art. 74", "artigo 74", "art 74", "quarto distrito", "4º distrito", "distrito 4"}

// fieldRules maps query phrasings to regime table fields. Ordered so the
// most specific phrasing wins (coeficiente máximo before coeficiente).
var fieldRules = []struct {
	terms []string
	field string
}{
	{[]string{"área mínima", "área do lote", "lote mínimo"}, "area_minima_lote"},
	{[]string{"testada mínima", "testada"}, "testada_minima_lote"},
	{[]string{"altura máxima", "altura máx", "gabarito", "limite de altura", "altura permitida"}, "altura_maxima"},
	{[]string{"coeficiente máximo", "ca máximo", "aproveitamento máximo"}, "coef_aproveitamento_maximo"},
	{[]string{"coeficiente básico", "ca básico", "aproveitamento básico"}, "coef_aproveitamento_basico"},
	{[]string{"afastamento de frente", "afastamento frontal"}, "afastamento_frente"},
	{[]string{"afastamento lateral"}, "afastamento_lateral"},
	{[]string{"afastamento de fundos", "afastamento dos fundos"}, "afastamento_fundos"},
	{[]string{"comércio varejista"}, "comercio_varejista_inocuo"},
	{[]string{"comércio atacadista"}, "comercio_atacadista_ia1"},
	{[]string{"serviço inócuo"}, "servico_inocuo"},
	{[]string{"indústria"}, "industria_inocua"},
	{[]string{"permeabilidade", "taxa permeável"}, "taxa_permeabilidade_acima_1500"},
	{[]string{"recuo de jardim", "recuo jardim"}, "recuo_jardim"},
}

// extremeFieldRules resolves which numeric column an extreme-value query
// targets.
var extremeFieldRules = []struct {
	terms []string
	field string
}{
	{[]string{"altura", "gabarito", "alto", "alta"}, "altura_maxima"},
	{[]string{"coeficiente", "aproveitamento"}, "coef_aproveitamento_maximo"},
	// "testada mínima de lote" mentions "lote" too, so testada must win
	// before the area rule gets a look.
	{[]string{"testada"}, "testada_minima_lote"},
	{[]string{"área", "lote"}, "area_minima_lote"},
	{[]string{"recuo"}, "recuo_jardim"},
}

var topicRules = []struct {
	terms []string
	topic string
}{
	{[]string{"zoneamento", "uso do solo"}, "zoneamento"},
	{[]string{"patrimônio", "patrimonio", "histórico"}, "patrimonio"},
	{[]string{"ambiental", "meio ambiente", "verde"}, "meio_ambiente"},
	{[]string{"outorga"}, "outorga_onerosa"},
	{[]string{"eiv", "estudo de impacto"}, "eiv"},
	{[]string{"4º distrito", "quarto distrito"}, "quarto_distrito"},
	{[]string{"habitação", "habitacao", "moradia", "zeis"}, "habitacao"},
	{[]string{"mobilidade", "transporte"}, "mobilidade"},
}

const clarificationTemplate = "Para responder com precisão, preciso saber o bairro ou a zona (ZOT) onde fica esse endereço. " +
	"Por favor, informe o bairro correspondente e eu consulto o regime urbanístico para você."

// Extractor turns raw query text into a structured Intent. It is a pure
// function of the text: no network, no state, so repeated runs agree.
type Extractor struct {
	bairros []string
}

func New() *Extractor {
	return &Extractor{bairros: knownBairros}
}

func (e *Extractor) Extract(query string) *Intent {
	lower := strings.ToLower(query)

	intent := &Intent{
		Query: query,
		Kind:  IntentLookup,
	}

	intent.Bairros = e.matchBairros(lower)
	intent.Zonas = matchZonas(query)

	if m := articleRe.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			intent.ArticleNumber = n
		}
	}

	intent.DocumentType = detectDocumentType(lower)
	intent.Topics = matchTopics(lower)
	intent.RequestedFields = matchFields(lower)
	intent.SignificantTerms = significantTerms(query)

	if containsAny(lower, summaryTerms) {
		intent.Kind = IntentSummary
	} else if containsAny(lower, countingTerms) {
		intent.Kind = IntentCount
	}

	intent.IsRisk = containsAny(lower, riskTerms)
	intent.IsSemantic = containsAny(lower, semanticTerms)

	e.detectExtremeValue(lower, intent)
	e.detectClarification(lower, intent)

	intent.QueryType = classify(lower, intent)

	return intent
}

// detectExtremeValue flags "mais alta"/"maior"/"menor" comparisons and
// resolves the target column and scope.
func (e *Extractor) detectExtremeValue(lower string, intent *Intent) {
	hasMax := containsAny(lower, []string{"mais alta", "mais alto", "maior", "máxima mais", "máximo mais"})
	hasMin := containsAny(lower, []string{"mais baixa", "mais baixo", "menor", "mínima mais", "mínimo mais"})
	if !hasMax && !hasMin {
		return
	}

	intent.IsExtremeValue = true
	if hasMin && !hasMax {
		intent.ExtremeDirection = "min"
	} else {
		intent.ExtremeDirection = "max"
	}

	intent.ExtremeField = "altura_maxima"
	for _, rule := range extremeFieldRules {
		if containsAny(lower, rule.terms) {
			intent.ExtremeField = rule.field
			break
		}
	}

	// "Porto Alegre" is the city, never a bairro.
	if len(intent.Bairros) > 0 {
		intent.ExtremeScope = "neighborhood"
	} else {
		intent.ExtremeScope = "city"
	}
}

// detectClarification catches address-like queries with no bairro or
// zona: answering them would require guessing the location.
func (e *Extractor) detectClarification(lower string, intent *Intent) {
	if len(intent.Bairros) > 0 || len(intent.Zonas) > 0 {
		return
	}
	if !streetRe.MatchString(intent.Query) {
		return
	}
	intent.NeedsClarification = true
	intent.ClarificationMessage = clarificationTemplate
}

// classify applies the ordered first-match-wins rules that pick the
// scoring configuration.
func classify(lower string, intent *Intent) QueryType {
	switch {
	case containsAny(lower, certificationTerms):
		return TypeCertification
	case containsAny(lower, fourthDistrictTerms):
		return TypeFourthDistrict
	case intent.ArticleNumber > 0 || paragraphRe.MatchString(lower) || strings.Contains(lower, "inciso"):
		return TypeArticle
	case len(intent.Bairros) > 0:
		return TypeNeighborhood
	case containsAny(lower, constructionTerms):
		return TypeConstruction
	default:
		return TypeGeneric
	}
}

func (e *Extractor) matchBairros(lower string) []string {
	var found []string
	for _, bairro := range e.bairros {
		needle := strings.ToLower(bairro)
		if !strings.Contains(lower, needle) {
			continue
		}
		// "boa vista" must not shadow "boa vista do sul".
		if bairro == "BOA VISTA" && strings.Contains(lower, "boa vista do sul") {
			continue
		}
		found = append(found, bairro)
	}
	return found
}

func matchZonas(query string) []string {
	var zonas []string
	for _, m := range zotRe.FindAllStringSubmatch(query, -1) {
		code := strings.ToUpper(strings.Join(strings.Fields(m[1]), " "))
		zonas = append(zonas, "ZOT "+code)
	}
	return zonas
}

func detectDocumentType(lower string) string {
	switch {
	case strings.Contains(lower, "luos") || strings.Contains(lower, "lei de uso e ocupação"):
		return "LUOS"
	case strings.Contains(lower, "pdus") || strings.Contains(lower, "plano diretor"):
		return "PDUS"
	case strings.Contains(lower, "lei complementar"):
		return "LUOS"
	default:
		return ""
	}
}

func matchTopics(lower string) []string {
	var topics []string
	for _, rule := range topicRules {
		if containsAny(lower, rule.terms) {
			topics = append(topics, rule.topic)
		}
	}
	return topics
}

func matchFields(lower string) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, rule := range fieldRules {
		if containsAny(lower, rule.terms) && !seen[rule.field] {
			fields = append(fields, rule.field)
			seen[rule.field] = true
		}
	}
	return fields
}

// significantTerms tokenizes the query and keeps content words longer
// than two characters, used for keyword search and the too-generic test.
func significantTerms(query string) []string {
	var terms []string

	doc, err := prose.NewDocument(query, prose.WithExtraction(false), prose.WithTagging(false))
	if err != nil {
		// Tokenizer failure degrades to whitespace splitting.
		for _, w := range strings.Fields(strings.ToLower(query)) {
			if len([]rune(w)) > 2 && !stopwords[w] {
				terms = append(terms, w)
			}
		}
		return terms
	}

	for _, tok := range doc.Tokens() {
		w := strings.ToLower(tok.Text)
		if len([]rune(w)) > 2 && !stopwords[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

var stopwords = map[string]bool{
	"qual": true, "quais": true, "para": true, "com": true, "uma": true,
	"dos": true, "das": true, "que": true, "por": true, "como": true,
	"sobre": true, "mais": true, "muito": true, "este": true, "esta": true,
	"isso": true, "são": true, "ser": true, "tem": true, "seu": true,
	"sua": true, "pelo": true, "pela": true, "nos": true, "nas": true,
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
