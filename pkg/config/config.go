package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Milvus   MilvusConfig
	Neo4j    Neo4jConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Sweep    SweepConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
	IndexType      string
}

type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

type LLMConfig struct {
	Provider       string
	Model          string
	APIKey         string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
	EmbeddingModel string
	EmbeddingDim   int
}

// PipelineConfig holds the tunables of the query pipeline itself.
type PipelineConfig struct {
	GapThreshold        float64
	BetaThreshold       float64
	ContradictionDelta  float64
	SemanticTopK        int
	LegalPerLevel       int
	SubQueryTimeoutSec  int
	SessionMemoryTurns  int
}

type CacheConfig struct {
	MinConfidence float64
	BaseTTLMin    int
}

type SweepConfig struct {
	Concurrency int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/chat-pd-poa")

	viper.SetEnvPrefix("PDPOA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/plano_diretor.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "document_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)
	viper.SetDefault("milvus.indexType", "IVF_FLAT")

	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 30)
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.embeddingDim", 1536)

	viper.SetDefault("pipeline.gapThreshold", 0.60)
	viper.SetDefault("pipeline.betaThreshold", 0.40)
	viper.SetDefault("pipeline.contradictionDelta", 10.0)
	viper.SetDefault("pipeline.semanticTopK", 8)
	viper.SetDefault("pipeline.legalPerLevel", 3)
	viper.SetDefault("pipeline.subQueryTimeoutSec", 30)
	viper.SetDefault("pipeline.sessionMemoryTurns", 5)

	viper.SetDefault("cache.minConfidence", 0.6)
	viper.SetDefault("cache.baseTTLMin", 30)

	viper.SetDefault("sweep.concurrency", 4)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
