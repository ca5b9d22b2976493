package config

import (
	"fmt"
	"strings"
	"time"
)

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
	Timeout  time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// DetectorConfig holds the scoring knobs and rule table overrides
type DetectorConfig struct {
	ThresholdLow    int
	ThresholdMedium int
	ThresholdHigh   int
	WeightGPT       float64
	WeightPatterns  float64
	WeightURLs      float64
	WeightSender    float64
	RulesFile       string
	TrustedDomains  []string
	SuspiciousTLDs  []string
	URLShorteners   []string
	BatchWorkers    int
}

// CacheConfig represents the LLM response cache settings
type CacheConfig struct {
	Enabled          bool
	Type             string
	TTL              time.Duration
	CleanupFrequency time.Duration
	MaxEntries       int
	SQLitePath       string
	MySQLDSN         string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	PostgresDSN      string
}

// ServerConfig represents the filter surfaces
type ServerConfig struct {
	FilterType        string
	ListenAddress     string
	BlockPhishing     bool
	BlockLevel        string
	ScoreHeader       string
	LevelHeader       string
	ThreatsHeader     string
	SubjectPrefix     string
	ModifySubject     bool
	PostfixAddress    string
	PostfixPort       int
	PostfixEnabled    bool
	HTTPListenAddress string
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: strings.ToLower(c.GetString("llm.provider")),
		Timeout:  c.durationOr("llm.timeout", 30*time.Second),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetDetector returns the detector configuration
func (c *Config) GetDetector() DetectorConfig {
	workers := c.GetInt("engine.batch_workers")
	if workers < 1 {
		workers = 1
	}
	return DetectorConfig{
		ThresholdLow:    c.GetInt("detector.thresholds.low"),
		ThresholdMedium: c.GetInt("detector.thresholds.medium"),
		ThresholdHigh:   c.GetInt("detector.thresholds.high"),
		WeightGPT:       c.GetFloat64("detector.weights.gpt"),
		WeightPatterns:  c.GetFloat64("detector.weights.patterns"),
		WeightURLs:      c.GetFloat64("detector.weights.urls"),
		WeightSender:    c.GetFloat64("detector.weights.sender"),
		RulesFile:       c.GetString("detector.rules_file"),
		TrustedDomains:  c.GetStringSlice("detector.trusted_domains"),
		SuspiciousTLDs:  c.GetStringSlice("detector.suspicious_tlds"),
		URLShorteners:   c.GetStringSlice("detector.url_shorteners"),
		BatchWorkers:    workers,
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Enabled:          c.GetBool("cache.enabled"),
		Type:             strings.ToLower(c.GetString("cache.type")),
		TTL:              c.durationOr("cache.ttl", 0),
		CleanupFrequency: c.durationOr("cache.cleanup_frequency", time.Hour),
		MaxEntries:       c.GetInt("cache.max_entries"),
		SQLitePath:       c.GetString("cache.sqlite_path"),
		MySQLDSN:         c.GetString("cache.mysql_dsn"),
		RedisAddr:        c.GetString("cache.redis_addr"),
		RedisPassword:    c.GetString("cache.redis_password"),
		RedisDB:          c.GetInt("cache.redis_db"),
		PostgresDSN:      c.GetString("cache.postgres_dsn"),
	}
}

// GetServer returns the filter server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		FilterType:        strings.ToLower(c.GetString("server.filter_type")),
		ListenAddress:     c.GetString("server.listen_address"),
		BlockPhishing:     c.GetBool("server.block_phishing"),
		BlockLevel:        strings.ToUpper(c.GetString("server.block_level")),
		ScoreHeader:       c.GetString("server.headers.score"),
		LevelHeader:       c.GetString("server.headers.level"),
		ThreatsHeader:     c.GetString("server.headers.threats"),
		SubjectPrefix:     c.GetString("server.subject_prefix"),
		ModifySubject:     c.GetBool("server.modify_subject"),
		PostfixAddress:    c.GetString("server.postfix.address"),
		PostfixPort:       c.GetInt("server.postfix.port"),
		PostfixEnabled:    c.GetBool("server.postfix.enabled"),
		HTTPListenAddress: c.GetString("server.http.listen_address"),
	}
}

// Validate checks the values that are parsed rather than read verbatim
func (c *Config) Validate() error {
	for _, key := range []string{"llm.timeout", "cache.ttl", "cache.cleanup_frequency"} {
		if _, err := c.GetDuration(key); err != nil {
			return err
		}
	}

	d := c.GetDetector()
	if !(d.ThresholdLow <= d.ThresholdMedium && d.ThresholdMedium <= d.ThresholdHigh) {
		return fmt.Errorf("detector thresholds must be ordered low <= medium <= high, got %d/%d/%d",
			d.ThresholdLow, d.ThresholdMedium, d.ThresholdHigh)
	}
	return nil
}

func (c *Config) durationOr(key string, def time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return def
	}
	return d
}
