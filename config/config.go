package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
	BackendOpenAI = "openai"
	BackendNone   = "none"

	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

type Config struct {
	Env          string
	HTTPAddr     string
	StoreBackend string
	// AsyncUploads routes uploads through Kafka instead of ingesting them
	// inside the request.
	AsyncUploads bool

	Engine  EngineConfig
	Neural  NeuralConfig
	AWS     AWSConfig
	Valkey  ValkeyConfig
	Kafka   KafkaConfig
	Fb      FacebookConfig
	Monitor MonitorConfig
}

type EngineConfig struct {
	LexicalWeight     float64
	NeuralWeight      float64
	NeuralTimeout     time.Duration
	FastPathThreshold float64
	CategoriesFile    string
	ResultCacheTTL    time.Duration
	WarmupOnStart     bool
}

type NeuralConfig struct {
	Backend        string
	ModelName      string
	ModelDir       string
	Runtime        string
	OnnxLibrary    string
	RemoteEndpoint string
	RemoteToken    string
	OpenAIKey      string
	OpenAIModel    string
}

type AWSConfig struct {
	Region        string
	Endpoint      string
	FeedbackTable string
}

type ValkeyConfig struct {
	Address  string
	Password string
	TLS      bool
}

type KafkaConfig struct {
	Broker      string
	GroupID     string
	UploadTopic string
}

type FacebookConfig struct {
	ClientID     string
	ClientSecret string
	PageID       string
	FetchEvery   time.Duration
	RatePerSec   float64
}

type MonitorConfig struct {
	ModelCheckInterval time.Duration
}

// Load reads the process environment. Call LoadEnv first to pull in the
// env file for the current APP_ENV.
func Load() Config {
	return Config{
		Env:          getEnv("APP_ENV", "dev"),
		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", StoreDynamoDB)),
		AsyncUploads: getBool("ASYNC_UPLOADS", false),
		Engine: EngineConfig{
			LexicalWeight:     getFloat("LEXICAL_WEIGHT", 0.4),
			NeuralWeight:      getFloat("NEURAL_WEIGHT", 0.6),
			NeuralTimeout:     getDuration("NEURAL_TIMEOUT", 5*time.Second),
			FastPathThreshold: getFloat("SPECTRUM_FAST_PATH_THRESHOLD", 0.8),
			CategoriesFile:    getEnv("SPECTRUM_CATEGORIES_FILE", ""),
			ResultCacheTTL:    getDuration("RESULT_CACHE_TTL", 24*time.Hour),
			WarmupOnStart:     getBool("MODEL_WARMUP_ON_START", true),
		},
		Neural: NeuralConfig{
			Backend:        strings.ToLower(getEnv("NEURAL_BACKEND", BackendONNX)),
			ModelName:      getEnv("MODEL_NAME", "KnightsAnalytics/distilbert-base-uncased-finetuned-sst-2-english"),
			ModelDir:       getEnv("MODEL_DIR", "./models"),
			Runtime:        strings.ToLower(getEnv("HUGOT_RUNTIME", "ort")),
			OnnxLibrary:    getEnv("ONNX_LIBRARY_PATH", ""),
			RemoteEndpoint: getEnv("HF_CLASSIFIER_ENDPOINT", "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english"),
			RemoteToken:    getEnv("HF_API_TOKEN", ""),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		},
		AWS: AWSConfig{
			Region:        getEnv("AWS_REGION", "us-west-2"),
			Endpoint:      getEnv("AWS_ENDPOINT", ""),
			FeedbackTable: getEnv("FEEDBACK_TABLE_NAME", "Feedback"),
		},
		Valkey: ValkeyConfig{
			Address:  getEnv("VALKEY_INIT_ADDRESS", ""),
			Password: getEnv("VALKEY_PASSWORD", ""),
			TLS:      getBool("VALKEY_TLS", false),
		},
		Kafka: KafkaConfig{
			Broker:      getEnv("KAFKA_BROKER", "localhost:29092"),
			GroupID:     getEnv("KAFKA_CONSUMER_GROUP_ID", "feedbackflow-consumer-group"),
			UploadTopic: getEnv("KAFKA_UPLOAD_TOPIC", "feedback-uploads"),
		},
		Fb: FacebookConfig{
			ClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
			ClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
			PageID:       getEnv("FACEBOOK_PAGE_ID", ""),
			FetchEvery:   getDuration("FACEBOOK_FETCH_INTERVAL", 30*time.Minute),
			RatePerSec:   getFloat("FACEBOOK_RATE_PER_SEC", 1),
		},
		Monitor: MonitorConfig{
			ModelCheckInterval: getDuration("MODEL_CHECK_INTERVAL", 30*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("[Config] Invalid float, using default",
			slog.String("key", key),
			slog.String("value", raw))
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("5s") or a bare number of seconds.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	slog.Warn("[Config] Invalid duration, using default",
		slog.String("key", key),
		slog.String("value", raw))
	return defaultValue
}
