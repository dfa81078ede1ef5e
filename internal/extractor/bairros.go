package extractor

// knownBairros is the canonical neighborhood list of Porto Alegre, in
// the uppercase accented form used by the regime tables. Longer names
// come before their prefixes so partial matches resolve correctly.
var knownBairros = []string{
	"ABERTA DOS MORROS",
	"AGRONOMIA",
	"ANCHIETA",
	"ARQUIPÉLAGO",
	"AUXILIADORA",
	"AZENHA",
	"BELA VISTA",
	"BELÉM NOVO",
	"BELÉM VELHO",
	"BOA VISTA DO SUL",
	"BOA VISTA",
	"BOM FIM",
	"BOM JESUS",
	"CAMAQUÃ",
	"CAMPO NOVO",
	"CASCATA",
	"CAVALHADA",
	"CENTRO HISTÓRICO",
	"CHÁCARA DAS PEDRAS",
	"CHAPÉU DO SOL",
	"CIDADE BAIXA",
	"CORONEL APARÍCIO BORGES",
	"COSTA E SILVA",
	"CRISTAL",
	"CRISTO REDENTOR",
	"ESPÍRITO SANTO",
	"EXTREMA",
	"FARRAPOS",
	"FARROUPILHA",
	"FLORESTA",
	"GLÓRIA",
	"GUARUJÁ",
	"HIGIENÓPOLIS",
	"HÍPICA",
	"HUMAITÁ",
	"INDEPENDÊNCIA",
	"IPANEMA",
	"JARDIM BOTÂNICO",
	"JARDIM CARVALHO",
	"JARDIM DO SALSO",
	"JARDIM EUROPA",
	"JARDIM FLORESTA",
	"JARDIM ITU",
	"JARDIM LEOPOLDINA",
	"JARDIM LINDÓIA",
	"JARDIM SABARÁ",
	"JARDIM SÃO PEDRO",
	"LAGEADO",
	"LAMI",
	"LOMBA DO PINHEIRO",
	"MÁRIO QUINTANA",
	"MEDIANEIRA",
	"MENINO DEUS",
	"MOINHOS DE VENTO",
	"MONT'SERRAT",
	"MORRO SANTANA",
	"NAVEGANTES",
	"NONOAI",
	"PARQUE SANTA FÉ",
	"PARTENON",
	"PASSO DA AREIA",
	"PASSO DAS PEDRAS",
	"PEDRA REDONDA",
	"PETRÓPOLIS",
	"PONTA GROSSA",
	"PRAIA DE BELAS",
	"RESTINGA",
	"RIO BRANCO",
	"RUBEM BERTA",
	"SANTA CECÍLIA",
	"SANTA MARIA GORETTI",
	"SANTA ROSA DE LIMA",
	"SANTA TEREZA",
	"SANTANA",
	"SANTO ANTÔNIO",
	"SÃO GERALDO",
	"SÃO JOÃO",
	"SÃO JOSÉ",
	"SÃO SEBASTIÃO",
	"SARANDI",
	"SERRARIA",
	"TERESÓPOLIS",
	"TRÊS FIGUEIRAS",
	"TRISTEZA",
	"VILA ASSUNÇÃO",
	"VILA CONCEIÇÃO",
	"VILA IPIRANGA",
	"VILA JARDIM",
	"VILA JOÃO PESSOA",
	"VILA NOVA",
}
