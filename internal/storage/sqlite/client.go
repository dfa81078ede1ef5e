package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chat-pd-poa/backend/internal/storage/models"
	"github.com/chat-pd-poa/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

// orderableFields is the allow-list for extreme-value ordering. Anything
// outside this map is rejected before SQL is built.
var orderableFields = map[string]string{
	"altura_maxima":              "altura_maxima",
	"coef_aproveitamento_basico": "coef_aproveitamento_basico",
	"coef_aproveitamento_maximo": "coef_aproveitamento_maximo",
	"area_minima_lote":           "area_minima_lote",
	"testada_minima_lote":        "testada_minima_lote",
	"recuo_jardim":               "recuo_jardim",
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS regime_urbanistico (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bairro TEXT NOT NULL,
		zona TEXT NOT NULL,
		altura_maxima REAL,
		coef_aproveitamento_basico REAL,
		coef_aproveitamento_maximo REAL,
		area_minima_lote REAL,
		testada_minima_lote REAL,
		taxa_permeabilidade_acima_1500 REAL,
		taxa_permeabilidade_ate_1500 REAL,
		recuo_jardim REAL,
		afastamento_frente TEXT,
		afastamento_lateral TEXT,
		afastamento_fundos TEXT,
		comercio_varejista_inocuo TEXT,
		comercio_atacadista_ia1 TEXT,
		servico_inocuo TEXT,
		industria_inocua TEXT,
		nivel_controle_entretenimento TEXT,
		UNIQUE(bairro, zona)
	);
	CREATE INDEX IF NOT EXISTS idx_regime_bairro ON regime_urbanistico(bairro);
	CREATE INDEX IF NOT EXISTS idx_regime_zona ON regime_urbanistico(zona);
	CREATE INDEX IF NOT EXISTS idx_regime_altura ON regime_urbanistico(altura_maxima);

	CREATE TABLE IF NOT EXISTS zots_bairros (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bairro TEXT NOT NULL,
		zona TEXT NOT NULL,
		total_zonas_no_bairro INTEGER,
		caracteristicas TEXT,
		restricoes TEXT,
		incentivos TEXT,
		UNIQUE(bairro, zona)
	);
	CREATE INDEX IF NOT EXISTS idx_zots_bairro ON zots_bairros(bairro);

	CREATE TABLE IF NOT EXISTS bairros_risco_desastre (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		bairro TEXT NOT NULL,
		tipo_risco TEXT NOT NULL,
		nivel_risco TEXT,
		descricao TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_risco_bairro ON bairros_risco_desastre(bairro);

	CREATE TABLE IF NOT EXISTS kb_articles (
		id TEXT PRIMARY KEY,
		document_type TEXT NOT NULL,
		article_number INTEGER,
		title TEXT,
		content TEXT NOT NULL,
		hierarchy_level TEXT DEFAULT 'article',
		keywords TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kb_doc_article ON kb_articles(document_type, article_number);
	CREATE INDEX IF NOT EXISTS idx_kb_level ON kb_articles(hierarchy_level);

	CREATE TABLE IF NOT EXISTS knowledge_gaps (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		topic TEXT NOT NULL,
		severity TEXT NOT NULL,
		failed_query TEXT NOT NULL,
		last_response TEXT,
		confidence_at_failure REAL NOT NULL,
		suggested_action TEXT,
		priority INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'detected',
		similar_failures_count INTEGER NOT NULL DEFAULT 1,
		escalated INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_gaps_category_topic ON knowledge_gaps(category, topic);
	CREATE INDEX IF NOT EXISTS idx_gaps_status ON knowledge_gaps(status);
	CREATE INDEX IF NOT EXISTS idx_gaps_priority ON knowledge_gaps(priority);

	CREATE TABLE IF NOT EXISTS session_memory (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		query TEXT NOT NULL,
		response TEXT,
		confidence REAL,
		created_at INTEGER NOT NULL,
		UNIQUE(session_id, turn_number)
	);
	CREATE INDEX IF NOT EXISTS idx_session ON session_memory(session_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

const regimeColumns = `id, bairro, zona, altura_maxima, coef_aproveitamento_basico,
	coef_aproveitamento_maximo, area_minima_lote, testada_minima_lote,
	taxa_permeabilidade_acima_1500, taxa_permeabilidade_ate_1500, recuo_jardim,
	afastamento_frente, afastamento_lateral, afastamento_fundos,
	comercio_varejista_inocuo, comercio_atacadista_ia1, servico_inocuo,
	industria_inocua, nivel_controle_entretenimento`

func scanRegime(rows *sql.Rows) (models.RegimeRecord, error) {
	var r models.RegimeRecord
	var frente, lateral, fundos, varejista, atacadista, servico, industria, entretenimento sql.NullString
	err := rows.Scan(
		&r.ID, &r.Bairro, &r.Zona, &r.AlturaMaxima,
		&r.CoefAproveitamentoBasico, &r.CoefAproveitamentoMaximo,
		&r.AreaMinimaLote, &r.TestadaMinimaLote,
		&r.TaxaPermeabilidadeAcima1500, &r.TaxaPermeabilidadeAte1500,
		&r.RecuoJardim,
		&frente, &lateral, &fundos,
		&varejista, &atacadista, &servico, &industria, &entretenimento,
	)
	if err != nil {
		return r, err
	}
	r.AfastamentoFrente = frente.String
	r.AfastamentoLateral = lateral.String
	r.AfastamentoFundos = fundos.String
	r.ComercioVarejistaInocuo = varejista.String
	r.ComercioAtacadistaIA1 = atacadista.String
	r.ServicoInocuo = servico.String
	r.IndustriaInocua = industria.String
	r.NivelControleEntretenimento = entretenimento.String
	return r, nil
}

func (c *Client) collectRegime(query string, args ...interface{}) ([]models.RegimeRecord, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query regime: %w", err)
	}
	defer rows.Close()

	var records []models.RegimeRecord
	for rows.Next() {
		r, err := scanRegime(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetRegimeByBairro does a case-insensitive partial match on the
// neighborhood name. A bairro with several zones returns one row per zone.
func (c *Client) GetRegimeByBairro(bairro string) ([]models.RegimeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM regime_urbanistico WHERE bairro LIKE ? COLLATE NOCASE ORDER BY zona`, regimeColumns)
	return c.collectRegime(query, "%"+strings.ToUpper(strings.TrimSpace(bairro))+"%")
}

// GetRegimeByZona matches the zone code exactly.
func (c *Client) GetRegimeByZona(zona string) ([]models.RegimeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM regime_urbanistico WHERE zona = ? COLLATE NOCASE ORDER BY bairro`, regimeColumns)
	return c.collectRegime(query, strings.ToUpper(strings.TrimSpace(zona)))
}

// GetExtremeRegime orders all rows by an allow-listed numeric field and
// returns the top N. Used for "altura máxima mais alta" style queries.
func (c *Client) GetExtremeRegime(field string, descending bool, limit int) ([]models.RegimeRecord, error) {
	col, ok := orderableFields[field]
	if !ok {
		return nil, fmt.Errorf("field %q is not orderable", field)
	}
	dir := "ASC"
	if descending {
		dir = "DESC"
	}
	if limit <= 0 {
		limit = 1
	}
	query := fmt.Sprintf(
		`SELECT %s FROM regime_urbanistico WHERE %s IS NOT NULL ORDER BY %s %s LIMIT ?`,
		regimeColumns, col, col, dir,
	)
	return c.collectRegime(query, limit)
}

// ListBairros returns every distinct neighborhood in the regime table,
// alphabetically. Drives the administrative sweep.
func (c *Client) ListBairros() ([]string, error) {
	rows, err := c.db.Query(`SELECT DISTINCT bairro FROM regime_urbanistico ORDER BY bairro`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bairros: %w", err)
	}
	defer rows.Close()

	var bairros []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		bairros = append(bairros, b)
	}
	return bairros, rows.Err()
}

func (c *Client) InsertRegimeRecord(r *models.RegimeRecord) error {
	query := `
		INSERT INTO regime_urbanistico (bairro, zona, altura_maxima,
			coef_aproveitamento_basico, coef_aproveitamento_maximo,
			area_minima_lote, testada_minima_lote,
			taxa_permeabilidade_acima_1500, taxa_permeabilidade_ate_1500,
			recuo_jardim, afastamento_frente, afastamento_lateral,
			afastamento_fundos, comercio_varejista_inocuo,
			comercio_atacadista_ia1, servico_inocuo, industria_inocua,
			nivel_controle_entretenimento)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(bairro, zona) DO UPDATE SET
			altura_maxima = excluded.altura_maxima,
			coef_aproveitamento_basico = excluded.coef_aproveitamento_basico,
			coef_aproveitamento_maximo = excluded.coef_aproveitamento_maximo
	`
	_, err := c.db.Exec(query,
		r.Bairro, r.Zona, r.AlturaMaxima,
		r.CoefAproveitamentoBasico, r.CoefAproveitamentoMaximo,
		r.AreaMinimaLote, r.TestadaMinimaLote,
		r.TaxaPermeabilidadeAcima1500, r.TaxaPermeabilidadeAte1500,
		r.RecuoJardim, r.AfastamentoFrente, r.AfastamentoLateral,
		r.AfastamentoFundos, r.ComercioVarejistaInocuo,
		r.ComercioAtacadistaIA1, r.ServicoInocuo, r.IndustriaInocua,
		r.NivelControleEntretenimento,
	)
	if err != nil {
		return fmt.Errorf("failed to insert regime record: %w", err)
	}
	return nil
}

func (c *Client) GetZotsByBairro(bairro string) ([]models.ZotInfo, error) {
	query := `
		SELECT id, bairro, zona, total_zonas_no_bairro, caracteristicas, restricoes, incentivos
		FROM zots_bairros
		WHERE bairro LIKE ? COLLATE NOCASE
		ORDER BY zona
	`
	rows, err := c.db.Query(query, "%"+strings.ToUpper(strings.TrimSpace(bairro))+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to query zots: %w", err)
	}
	defer rows.Close()

	var zots []models.ZotInfo
	for rows.Next() {
		var z models.ZotInfo
		var total sql.NullInt64
		var carac, restr, incen sql.NullString
		if err := rows.Scan(&z.ID, &z.Bairro, &z.Zona, &total, &carac, &restr, &incen); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		z.TotalZonasNoBairro = int(total.Int64)
		z.Caracteristicas = carac.String
		z.Restricoes = restr.String
		z.Incentivos = incen.String
		zots = append(zots, z)
	}
	return zots, rows.Err()
}

func (c *Client) InsertZotInfo(z *models.ZotInfo) error {
	query := `
		INSERT INTO zots_bairros (bairro, zona, total_zonas_no_bairro, caracteristicas, restricoes, incentivos)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(bairro, zona) DO UPDATE SET
			total_zonas_no_bairro = excluded.total_zonas_no_bairro
	`
	_, err := c.db.Exec(query, z.Bairro, z.Zona, z.TotalZonasNoBairro, z.Caracteristicas, z.Restricoes, z.Incentivos)
	if err != nil {
		return fmt.Errorf("failed to insert zot info: %w", err)
	}
	return nil
}

func (c *Client) GetRisksByBairro(bairro string) ([]models.RiskRecord, error) {
	query := `
		SELECT id, bairro, tipo_risco, nivel_risco, descricao
		FROM bairros_risco_desastre
		WHERE bairro LIKE ? COLLATE NOCASE
	`
	return c.collectRisks(query, "%"+strings.ToUpper(strings.TrimSpace(bairro))+"%")
}

func (c *Client) GetAllRisks() ([]models.RiskRecord, error) {
	query := `SELECT id, bairro, tipo_risco, nivel_risco, descricao FROM bairros_risco_desastre ORDER BY bairro`
	return c.collectRisks(query)
}

func (c *Client) collectRisks(query string, args ...interface{}) ([]models.RiskRecord, error) {
	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query risks: %w", err)
	}
	defer rows.Close()

	var risks []models.RiskRecord
	for rows.Next() {
		var r models.RiskRecord
		var nivel, desc sql.NullString
		if err := rows.Scan(&r.ID, &r.Bairro, &r.TipoRisco, &nivel, &desc); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.NivelRisco = nivel.String
		r.Descricao = desc.String
		risks = append(risks, r)
	}
	return risks, rows.Err()
}

func (c *Client) InsertRiskRecord(r *models.RiskRecord) error {
	query := `INSERT INTO bairros_risco_desastre (bairro, tipo_risco, nivel_risco, descricao) VALUES (?, ?, ?, ?)`
	_, err := c.db.Exec(query, r.Bairro, r.TipoRisco, r.NivelRisco, r.Descricao)
	if err != nil {
		return fmt.Errorf("failed to insert risk record: %w", err)
	}
	return nil
}

func (c *Client) InsertKBArticle(a *models.KBArticle) error {
	query := `
		INSERT INTO kb_articles (id, document_type, article_number, title, content, hierarchy_level, keywords, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			keywords = excluded.keywords
	`
	_, err := c.db.Exec(query, a.ID, a.DocumentType, a.ArticleNumber, a.Title, a.Content, a.HierarchyLevel, a.Keywords, a.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert kb article: %w", err)
	}
	return nil
}

func (c *Client) GetKBArticle(documentType string, articleNumber int) (*models.KBArticle, error) {
	query := `
		SELECT id, document_type, article_number, title, content, hierarchy_level, keywords, created_at
		FROM kb_articles
		WHERE document_type = ? AND article_number = ?
		LIMIT 1
	`
	var a models.KBArticle
	var title, keywords sql.NullString
	var createdAt int64
	err := c.db.QueryRow(query, documentType, articleNumber).Scan(
		&a.ID, &a.DocumentType, &a.ArticleNumber, &title, &a.Content, &a.HierarchyLevel, &keywords, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kb article: %w", err)
	}
	a.Title = title.String
	a.Keywords = keywords.String
	a.CreatedAt = time.Unix(createdAt, 0)
	return &a, nil
}

// SearchKBArticles does keyword LIKE search over content and keywords.
// Every term must appear somewhere in the row.
func (c *Client) SearchKBArticles(terms []string, limit int) ([]models.KBArticle, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var conds []string
	var args []interface{}
	for _, t := range terms {
		conds = append(conds, "(content LIKE ? COLLATE NOCASE OR keywords LIKE ? COLLATE NOCASE OR title LIKE ? COLLATE NOCASE)")
		pattern := "%" + t + "%"
		args = append(args, pattern, pattern, pattern)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, document_type, article_number, title, content, hierarchy_level, keywords, created_at
		FROM kb_articles
		WHERE %s
		LIMIT ?
	`, strings.Join(conds, " AND "))

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search kb articles: %w", err)
	}
	defer rows.Close()

	var articles []models.KBArticle
	for rows.Next() {
		var a models.KBArticle
		var title, keywords sql.NullString
		var number sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.DocumentType, &number, &title, &a.Content, &a.HierarchyLevel, &keywords, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		a.ArticleNumber = int(number.Int64)
		a.Title = title.String
		a.Keywords = keywords.String
		a.CreatedAt = time.Unix(createdAt, 0)
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// FindOpenGap returns the non-resolved gap for a (category, topic) pair,
// or nil when none exists.
func (c *Client) FindOpenGap(category, topic string) (*models.KnowledgeGap, error) {
	query := `
		SELECT id, category, topic, severity, failed_query, last_response,
			confidence_at_failure, suggested_action, priority, status,
			similar_failures_count, escalated, created_at, updated_at
		FROM knowledge_gaps
		WHERE category = ? AND topic = ? AND status != 'resolved'
		LIMIT 1
	`
	var g models.KnowledgeGap
	var lastResponse, action sql.NullString
	var escalated int
	var createdAt, updatedAt int64
	err := c.db.QueryRow(query, category, topic).Scan(
		&g.ID, &g.Category, &g.Topic, &g.Severity, &g.FailedQuery, &lastResponse,
		&g.ConfidenceAtFailure, &action, &g.Priority, &g.Status,
		&g.SimilarFailuresCount, &escalated, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find open gap: %w", err)
	}
	g.LastResponse = lastResponse.String
	g.SuggestedAction = action.String
	g.Escalated = escalated == 1
	g.CreatedAt = time.Unix(createdAt, 0)
	g.UpdatedAt = time.Unix(updatedAt, 0)
	return &g, nil
}

func (c *Client) InsertGap(g *models.KnowledgeGap) error {
	query := `
		INSERT INTO knowledge_gaps (id, category, topic, severity, failed_query,
			last_response, confidence_at_failure, suggested_action, priority,
			status, similar_failures_count, escalated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	escalated := 0
	if g.Escalated {
		escalated = 1
	}
	now := time.Now().Unix()
	_, err := c.db.Exec(query,
		g.ID, g.Category, g.Topic, g.Severity, g.FailedQuery,
		g.LastResponse, g.ConfidenceAtFailure, g.SuggestedAction, g.Priority,
		g.Status, g.SimilarFailuresCount, escalated, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gap: %w", err)
	}
	logger.Info("Knowledge gap recorded",
		zap.String("gap_id", g.ID),
		zap.String("category", g.Category),
		zap.String("topic", g.Topic),
		zap.Int("priority", g.Priority),
	)
	return nil
}

// UpdateGapOnRepeat increments the similar-failure counter of an existing
// open gap and refreshes its priority and suggested action.
func (c *Client) UpdateGapOnRepeat(id string, priority int, suggestedAction, lastResponse string, confidence float64) error {
	query := `
		UPDATE knowledge_gaps
		SET similar_failures_count = similar_failures_count + 1,
			priority = ?,
			suggested_action = ?,
			last_response = ?,
			confidence_at_failure = ?,
			updated_at = ?
		WHERE id = ?
	`
	_, err := c.db.Exec(query, priority, suggestedAction, lastResponse, confidence, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to update gap: %w", err)
	}
	return nil
}

func (c *Client) ListGaps(status string, limit int) ([]models.KnowledgeGap, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, category, topic, severity, failed_query, last_response,
			confidence_at_failure, suggested_action, priority, status,
			similar_failures_count, escalated, created_at, updated_at
		FROM knowledge_gaps
	`
	var args []interface{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY priority DESC, updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gaps: %w", err)
	}
	defer rows.Close()

	var gaps []models.KnowledgeGap
	for rows.Next() {
		var g models.KnowledgeGap
		var lastResponse, action sql.NullString
		var escalated int
		var createdAt, updatedAt int64
		if err := rows.Scan(
			&g.ID, &g.Category, &g.Topic, &g.Severity, &g.FailedQuery, &lastResponse,
			&g.ConfidenceAtFailure, &action, &g.Priority, &g.Status,
			&g.SimilarFailuresCount, &escalated, &createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		g.LastResponse = lastResponse.String
		g.SuggestedAction = action.String
		g.Escalated = escalated == 1
		g.CreatedAt = time.Unix(createdAt, 0)
		g.UpdatedAt = time.Unix(updatedAt, 0)
		gaps = append(gaps, g)
	}
	return gaps, rows.Err()
}

func (c *Client) ResolveGap(id string) error {
	query := `UPDATE knowledge_gaps SET status = 'resolved', updated_at = ? WHERE id = ?`
	res, err := c.db.Exec(query, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve gap: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("gap %s not found", id)
	}
	return nil
}

// AppendSessionTurn stores one conversation exchange, assigning the next
// turn number for the session.
func (c *Client) AppendSessionTurn(sessionID, query, response string, confidence float64) error {
	var next int
	err := c.db.QueryRow(
		`SELECT COALESCE(MAX(turn_number), 0) + 1 FROM session_memory WHERE session_id = ?`,
		sessionID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to compute turn number: %w", err)
	}

	_, err = c.db.Exec(
		`INSERT INTO session_memory (session_id, turn_number, query, response, confidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, next, query, response, confidence, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append session turn: %w", err)
	}
	return nil
}

func (c *Client) GetSessionTurns(sessionID string, limit int) ([]models.SessionTurn, error) {
	if limit <= 0 {
		limit = 5
	}
	query := `
		SELECT id, session_id, turn_number, query, response, confidence, created_at
		FROM session_memory
		WHERE session_id = ?
		ORDER BY turn_number DESC
		LIMIT ?
	`
	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get session turns: %w", err)
	}
	defer rows.Close()

	var turns []models.SessionTurn
	for rows.Next() {
		var t models.SessionTurn
		var response sql.NullString
		var confidence sql.NullFloat64
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.SessionID, &t.TurnNumber, &t.Query, &response, &confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t.Response = response.String
		t.Confidence = confidence.Float64
		t.CreatedAt = time.Unix(createdAt, 0)
		turns = append(turns, t)
	}
	// Oldest first for prompt assembly.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, rows.Err()
}
