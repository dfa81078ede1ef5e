package scoring

import "github.com/chat-pd-poa/backend/internal/extractor"

// TermBoost is one (phrase, boost) rule. Underscores in the term match
// spaces in the candidate text.
type TermBoost struct {
	Term  string
	Boost float64
}

// Config is the scoring profile of one query type: a minimum passing
// score plus the boosts and penalties that reshape raw similarity.
type Config struct {
	Threshold float64
	Boosts    []TermBoost

	// BairroBoost and ConstructionBoost only apply to the
	// neighborhood-specific profile.
	BairroBoost       float64
	ConstructionBoost float64

	// ExactArticleBoost and friends only apply to the article profile.
	ExactArticleBoost  float64
	ArticleNumberBoost float64
	IncisoBoost        float64
	ParagraphBoost     float64

	// GenericPenalty dampens every candidate when the query only
	// name-drops the plan (plano, diretor, lei) without a concrete
	// subject; TooGenericPenalty dampens everything when the query
	// carries too few significant terms.
	GenericPenalty    float64
	TooGenericPenalty float64
}

// configs holds the hand-tuned profiles. The values are product
// constants calibrated against the evaluation set; treat changes as a
// retuning exercise, not a refactor.
var configs = map[extractor.QueryType]Config{
	extractor.TypeCertification: {
		Threshold: 0.20,
		Boosts: []TermBoost{
			{"certificação", 0.8},
			{"certification", 0.8},
			{"sustentabilidade", 0.8},
			{"sustentável", 0.7},
			{"sustainable", 0.7},
			{"meio_ambiente", 0.6},
			{"verde", 0.5},
		},
		GenericPenalty: 0.7,
	},
	extractor.TypeFourthDistrict: {
		Threshold: 0.30,
		Boosts: []TermBoost{
			{"art._74", 2.0},
			{"artigo_74", 2.0},
			{"quarto_distrito", 2.0},
			{"4º_distrito", 2.0},
			{"distrito_4", 2.0},
			{"art_74", 1.8},
		},
	},
	extractor.TypeConstruction: {
		Threshold: 0.15,
		Boosts: []TermBoost{
			{"altura_máxima", 0.9},
			{"gabarito_máximo", 0.9},
			{"altura_permitida", 0.8},
			{"limite_de_altura", 0.8},
			{"altura", 0.8},
			{"gabarito", 0.8},
			{"elevação", 0.7},
			{"limite_vertical", 0.7},
			{"coeficiente", 0.6},
			{"aproveitamento", 0.5},
			{"construção", 0.5},
			{"edificação", 0.5},
			{"zona", 0.4},
			{"zot", 0.4},
		},
		GenericPenalty: 0.3,
	},
	extractor.TypeNeighborhood: {
		Threshold:         0.20,
		BairroBoost:       0.7,
		ConstructionBoost: 0.5,
	},
	extractor.TypeArticle: {
		Threshold:          0.25,
		ExactArticleBoost:  1.5,
		ArticleNumberBoost: 1.0,
		IncisoBoost:        0.8,
		ParagraphBoost:     0.7,
	},
	extractor.TypeGeneric: {
		Threshold:         0.15,
		TooGenericPenalty: 0.3,
	},
}

// ConfigFor returns the scoring profile for a query type, falling back
// to the generic profile.
func ConfigFor(queryType extractor.QueryType) Config {
	if cfg, ok := configs[queryType]; ok {
		return cfg
	}
	return configs[extractor.TypeGeneric]
}
