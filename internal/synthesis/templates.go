package synthesis

// Footer carries the canonical reference links. Appending it to every
// response is a content-compliance requirement.
const Footer = `

📍 Explore mais:
Mapa com Regras Construtivas: https://bit.ly/3ILdXRA ↗ ↗
Contribua com sugestões: https://bit.ly/4o7AWqb ↗ ↗
Participe da Audiência Pública: https://bit.ly/4oefZKm ↗ ↗
💬 Dúvidas? planodiretor@portoalegre.rs.gov.br`

// BetaResponse replaces answers the validator refused to stand behind.
const BetaResponse = `A plataforma ainda está em versão Beta e para esta pergunta recomendamos que o usuário consulte os canais oficiais.` + Footer

// NotFoundResponse guides the user when no source had an answer.
const NotFoundResponse = `Não encontrei informações sobre esse local ou tema na base do Plano Diretor. ` +
	`Verifique se o nome do bairro ou da zona (ZOT) está correto, ou reformule a pergunta ` +
	`indicando o bairro, a zona ou o artigo de interesse.`

// ErrorResponse is the generic apology for internal failures.
const ErrorResponse = `Desculpe, ocorreu um erro interno ao processar sua pergunta. Tente novamente em instantes.`

// siglasGlossary explains the abbreviations used in regime tables.
const siglasGlossary = `
**Siglas:**
- **CA**: Coeficiente de Aproveitamento
- **ZOT**: Zona de Ordenamento Territorial`
