package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Registry  RegistryConfig
	LLM       LLMConfig
	Translate TranslateConfig
	Vector    VectorConfig
	Logging   LoggingConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// RegistryConfig covers the EU food-additives endpoint. Both credentials are
// optional; the endpoint answers unauthenticated read requests.
type RegistryConfig struct {
	BaseURL    string
	APIVersion string
	HeaderKey  string
	QueryKey   string
	TimeoutSec int
	PaceMS     int
	DataDir    string
	TTLDays    int
}

type LLMConfig struct {
	APIKey         string
	Model          string
	VisionModel    string
	EmbeddingModel string
	Temperature    float32
	MaxTokens      int
	TimeoutSec     int
}

type TranslateConfig struct {
	Enabled bool
}

type VectorConfig struct {
	Endpoint       string
	CollectionName string
	VectorDim      int
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
	viper.AddConfigPath("/etc/labelscan")

	viper.SetEnvPrefix("LABELSCAN")
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
	viper.SetDefault("server.writeTimeout", 60)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/labelscan.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("registry.baseURL", "https://api.datalake.sante.service.ec.europa.eu/food-additives/food_additives_details")
	viper.SetDefault("registry.apiVersion", "v1.0")
	viper.SetDefault("registry.timeoutSec", 45)
	viper.SetDefault("registry.paceMS", 200)
	viper.SetDefault("registry.dataDir", "./data")
	viper.SetDefault("registry.ttlDays", 180)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.visionModel", "gpt-4o")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.maxTokens", 2048)
	viper.SetDefault("llm.timeoutSec", 30)

	viper.SetDefault("translate.enabled", true)

	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "risk_guide")
	viper.SetDefault("vector.vectorDim", 1536)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
