// Package config provides configuration types and loading for marvin.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Paths, Model, Pipeline, Memory, Broker, Notify.
type Config struct {
	Paths    PathsConfig    `json:"paths"`
	Model    ModelConfig    `json:"model"`
	Pipeline PipelineConfig `json:"pipeline"`
	Memory   MemoryConfig   `json:"memory"`
	Broker   BrokerConfig   `json:"broker"`
	Notify   NotifyConfig   `json:"notify"`
	Learning LearningConfig `json:"learning"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	// DBPath overrides the default <dataDir>/marvin.db location.
	DBPath string `json:"dbPath,omitempty" envconfig:"DB_PATH"`
}

// ModelConfig groups text-generation settings.
type ModelConfig struct {
	APIKey      string  `json:"apiKey" envconfig:"API_KEY"`
	APIBase     string  `json:"apiBase" envconfig:"API_BASE"`
	Name        string  `json:"name" envconfig:"MODEL"`
	MaxTokens   int     `json:"maxTokens" envconfig:"MAX_TOKENS"`
	Temperature float64 `json:"temperature" envconfig:"TEMPERATURE"`
}

// PipelineConfig groups orchestration settings for a single task run.
type PipelineConfig struct {
	// MaxConcurrent caps sub-agent fan-out within one batch.
	MaxConcurrent int `json:"maxConcurrent" envconfig:"MAX_CONCURRENT"`
	// AgentTimeoutSeconds bounds each sub-agent, expert and verification call.
	AgentTimeoutSeconds int `json:"agentTimeoutSeconds" envconfig:"AGENT_TIMEOUT_SECONDS"`
	// Fields lists the expert panel domains. Empty means the default panel.
	Fields []string `json:"fields,omitempty"`
}

// AgentTimeout returns the per-agent deadline as a duration.
func (c PipelineConfig) AgentTimeout() time.Duration {
	if c.AgentTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.AgentTimeoutSeconds) * time.Second
}

// MemoryConfig groups shared-memory settings.
type MemoryConfig struct {
	// KeyPath overrides the default <dataDir>/master.key location.
	KeyPath string `json:"keyPath,omitempty" envconfig:"KEY_PATH"`
}

// BrokerConfig configures the optional Kafka transport for cross-process
// agent messaging. Disabled by default; the in-process bus is always on.
type BrokerConfig struct {
	Enabled       bool   `json:"enabled" envconfig:"ENABLED"`
	Brokers       string `json:"brokers" envconfig:"BROKERS"`
	ConsumerGroup string `json:"consumerGroup" envconfig:"CONSUMER_GROUP"`
	TopicPrefix   string `json:"topicPrefix" envconfig:"TOPIC_PREFIX"`
}

// NotifyConfig configures decision announcements.
type NotifyConfig struct {
	SlackEnabled bool   `json:"slackEnabled" envconfig:"SLACK_ENABLED"`
	SlackToken   string `json:"slackToken" envconfig:"SLACK_TOKEN"`
	SlackChannel string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
	// SlackAPIBase overrides the Slack API endpoint, mainly for tests.
	SlackAPIBase string `json:"slackApiBase,omitempty" envconfig:"SLACK_API_BASE"`
}

// LearningConfig groups adaptive-learning hyperparameters.
type LearningConfig struct {
	LearningRate       float64 `json:"learningRate" envconfig:"LEARNING_RATE"`
	DiscountFactor     float64 `json:"discountFactor" envconfig:"DISCOUNT_FACTOR"`
	ExplorationRate    float64 `json:"explorationRate" envconfig:"EXPLORATION_RATE"`
	MinExplorationRate float64 `json:"minExplorationRate" envconfig:"MIN_EXPLORATION_RATE"`
	ExplorationDecay   float64 `json:"explorationDecay" envconfig:"EXPLORATION_DECAY"`
}

// DefaultConfig returns a config populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.marvin",
		},
		Model: ModelConfig{
			APIBase:     "https://api.openai.com/v1",
			Name:        "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Pipeline: PipelineConfig{
			MaxConcurrent:       8,
			AgentTimeoutSeconds: 60,
		},
		Broker: BrokerConfig{
			ConsumerGroup: "marvin-agents",
			TopicPrefix:   "marvin",
		},
		Learning: LearningConfig{
			LearningRate:       0.1,
			DiscountFactor:     0.99,
			ExplorationRate:    1.0,
			MinExplorationRate: 0.01,
			ExplorationDecay:   0.995,
		},
	}
}
