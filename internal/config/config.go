// Package config resolves process configuration the way the Config
// Resolver contract (C12) describes: environment-variable-first lookup with
// defaults applied after, optionally backed by a label-precedence remote
// store. Load() populates a flat Config struct in one pass, the same shape
// the teacher's env-based loader uses.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// S3SSEConfig configures server-side encryption for an S3-compatible bucket.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// S3Config configures an object-store bucket connection.
type S3Config struct {
	Bucket                string
	Region                string
	Endpoint              string
	Prefix                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// QdrantConfig configures the vector index backing the Search Gateway.
type QdrantConfig struct {
	DSN        string
	Collection string
	Dimensions int
	Metric     string
}

// EmbeddingConfig configures the Embedding Client (C4).
type EmbeddingConfig struct {
	BaseURL            string
	Model               string
	APIKey             string
	APIHeader          string
	Path               string
	TimeoutSeconds     int
	MaxConcurrency     int
	BackoffMaxSeconds  int
	MaxTransientTries  int
	MaxRateLimitTries  int
	MaxInputTokens     int
}

// ChatConfig configures the chat-completion sibling client used for
// multimodal figure captions and spreadsheet/transcription summaries.
type ChatConfig struct {
	BaseURL string
	Model   string
	APIKey  string
}

// ChunkerConfig configures the chunker family's shared token-budget knobs.
type ChunkerConfig struct {
	MaxChunkSize                       int
	MinChunkSize                       int
	TokenOverlap                       int
	SpreadsheetNumTokens               int
	SpreadsheetChunkByRow              bool
	SpreadsheetChunkByRowIncludeHeader bool
	Multimodal                         bool
	FiguresContainer                   string
	MinimumFigureAreaPercentage        float64
}

// TimeoutsConfig bundles the concurrency/resource-model timeouts of §5.
type TimeoutsConfig struct {
	ItemTimeout            time.Duration
	HTTPTotalTimeout       time.Duration
	BlobOpTimeout          time.Duration
	ListGatherTimeout      time.Duration
	RunSummaryTotalTimeout time.Duration
}

// SourceConfig names the containers/indexes involved for one source.
type SourceConfig struct {
	StorageAccountName  string
	SourceContainer     string
	NL2SQLContainer     string
	JobsLogContainer    string
	BlobPrefix          string
	SearchEndpoint      string
	RAGIndexName        string
	QueriesIndexName    string
	TablesIndexName     string
	MeasuresIndexName   string
}

// Config is the flat, process-wide configuration the engines are built from.
type Config struct {
	LogLevel string
	LogPath  string

	IndexerMaxConcurrency int
	IndexerBatchSize      int
	FreshnessSkew         time.Duration

	S3       S3Config
	Qdrant   QdrantConfig
	Embed    EmbeddingConfig
	Chat     ChatConfig
	Chunker  ChunkerConfig
	Timeouts TimeoutsConfig
	Source   SourceConfig

	CronBlob       string
	CronSharePoint string
	CronNL2SQL     string
	CronPurger     string
	RunOnStartup   bool
	SchedulerTZ    string
}

// Load reads configuration from the environment, optionally overlaid from a
// ".env" file, and applies defaults for anything left unset.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	cfg.LogLevel = firstNonEmpty(env("LOG_LEVEL"), "info")
	cfg.LogPath = env("LOG_PATH")

	cfg.IndexerMaxConcurrency = envInt("INDEXER_MAX_CONCURRENCY", 8)
	cfg.IndexerBatchSize = envInt("INDEXER_BATCH_SIZE", 500)
	cfg.FreshnessSkew = time.Duration(envInt("FRESHNESS_SKEW_SECONDS", 1)) * time.Second

	cfg.S3 = S3Config{
		Bucket:       env("DOCUMENTS_STORAGE_CONTAINER"),
		Region:       firstNonEmpty(env("AWS_REGION"), "us-east-1"),
		Endpoint:     env("S3_ENDPOINT"),
		Prefix:       env("BLOB_PREFIX"),
		AccessKey:    env("AWS_ACCESS_KEY_ID"),
		SecretKey:    env("AWS_SECRET_ACCESS_KEY"),
		UsePathStyle: envBool("S3_USE_PATH_STYLE", false),
		SSE: S3SSEConfig{
			Mode:     env("S3_SSE_MODE"),
			KMSKeyID: env("S3_SSE_KMS_KEY_ID"),
		},
	}

	cfg.Qdrant = QdrantConfig{
		DSN:        firstNonEmpty(env("SEARCH_SERVICE_QUERY_ENDPOINT"), "http://localhost:6334"),
		Collection: firstNonEmpty(env("SEARCH_RAG_INDEX_NAME"), "rag-index"),
		Dimensions: envInt("EMBEDDING_DIMENSIONS", 1536),
		Metric:     firstNonEmpty(env("SEARCH_DISTANCE_METRIC"), "cosine"),
	}

	cfg.Embed = EmbeddingConfig{
		BaseURL:           env("EMBEDDING_BASE_URL"),
		Model:             firstNonEmpty(env("EMBEDDING_MODEL"), "text-embedding-3-small"),
		APIKey:            env("EMBEDDING_API_KEY"),
		APIHeader:         firstNonEmpty(env("EMBEDDING_API_HEADER"), "Authorization"),
		Path:              firstNonEmpty(env("EMBEDDING_PATH"), "/embeddings"),
		TimeoutSeconds:    envInt("HTTP_TOTAL_TIMEOUT_SECONDS", 120),
		MaxConcurrency:    envInt("AOAI_MAX_CONCURRENCY", 2),
		BackoffMaxSeconds: envInt("AOAI_BACKOFF_MAX_SECONDS", 60),
		MaxTransientTries: envInt("AOAI_MAX_TRANSIENT_ATTEMPTS", 8),
		MaxRateLimitTries: envInt("AOAI_MAX_RATE_LIMIT_ATTEMPTS", 8),
		MaxInputTokens:    envInt("EMBEDDING_MAX_INPUT_TOKENS", 8192),
	}

	cfg.Chat = ChatConfig{
		BaseURL: env("ANTHROPIC_BASE_URL"),
		Model:   firstNonEmpty(env("ANTHROPIC_MODEL"), "claude-haiku-4-5"),
		APIKey:  env("ANTHROPIC_API_KEY"),
	}

	cfg.Chunker = ChunkerConfig{
		MaxChunkSize:                       envInt("NUM_TOKENS", 2048),
		MinChunkSize:                       envInt("MIN_CHUNK_SIZE", 100),
		TokenOverlap:                       envInt("TOKEN_OVERLAP", 100),
		SpreadsheetNumTokens:               envInt("SPREADSHEET_CHUNKING_NUM_TOKENS", 2048),
		SpreadsheetChunkByRow:              envBool("SPREADSHEET_CHUNKING_BY_ROW", false),
		SpreadsheetChunkByRowIncludeHeader: envBool("SPREADSHEET_CHUNKING_BY_ROW_INCLUDE_HEADER", true),
		Multimodal:                         envBool("MULTIMODAL", false),
		FiguresContainer:                   firstNonEmpty(env("STORAGE_CONTAINER_IMAGES"), "documents-images"),
		MinimumFigureAreaPercentage:        envFloat("MINIMUM_FIGURE_AREA_PERCENTAGE", 4.0),
	}

	cfg.Timeouts = TimeoutsConfig{
		ItemTimeout:            time.Duration(envInt("INDEXER_ITEM_TIMEOUT_SECONDS", 600)) * time.Second,
		HTTPTotalTimeout:       time.Duration(envInt("HTTP_TOTAL_TIMEOUT_SECONDS", 120)) * time.Second,
		BlobOpTimeout:          time.Duration(envInt("BLOB_OP_TIMEOUT_SECONDS", 20)) * time.Second,
		ListGatherTimeout:      time.Duration(envInt("LIST_GATHER_TIMEOUT_SECONDS", 7200)) * time.Second,
		RunSummaryTotalTimeout: time.Duration(envInt("RUN_SUMMARY_TOTAL_TIMEOUT_SECONDS", 90)) * time.Second,
	}

	cfg.Source = SourceConfig{
		StorageAccountName: env("STORAGE_ACCOUNT_NAME"),
		SourceContainer:    env("SOURCE_CONTAINER"),
		NL2SQLContainer:    env("NL2SQL_STORAGE_CONTAINER"),
		JobsLogContainer:   firstNonEmpty(env("JOBS_LOG_CONTAINER"), "jobs"),
		BlobPrefix:         env("BLOB_PREFIX"),
		SearchEndpoint:     env("SEARCH_SERVICE_QUERY_ENDPOINT"),
		RAGIndexName:       env("SEARCH_RAG_INDEX_NAME"),
		QueriesIndexName:   env("SEARCH_QUERIES_INDEX_NAME"),
		TablesIndexName:    env("SEARCH_TABLES_INDEX_NAME"),
		MeasuresIndexName:  env("SEARCH_MEASURES_INDEX_NAME"),
	}

	cfg.CronBlob = env("CRON_RUN_BLOB")
	cfg.CronSharePoint = env("CRON_RUN_SHAREPOINT")
	cfg.CronNL2SQL = env("CRON_RUN_NL2SQL")
	cfg.CronPurger = env("CRON_RUN_PURGER")
	cfg.RunOnStartup = envBool("RUN_ON_STARTUP", false)
	cfg.SchedulerTZ = firstNonEmpty(env("SCHEDULER_TIMEZONE"), "UTC")

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, def int) int {
	v := env(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := env(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := env(key)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}
