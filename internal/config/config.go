package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	AudioBackendMiniaudio = "miniaudio"
	AudioBackendPortaudio = "portaudio"
	AudioBackendNone      = "none"

	AgentBackendRemote = "remote"
	AgentBackendGroq   = "groq"
)

type Config struct {
	Agent        AgentConfig        `yaml:"agent"`
	Groq         GroqConfig         `yaml:"groq"`
	Deepgram     DeepgramConfig     `yaml:"deepgram"`
	Audio        AudioConfig        `yaml:"audio"`
	Conversation ConversationConfig `yaml:"conversation"`
	Log          LogConfig          `yaml:"log"`
}

type AgentConfig struct {
	// Backend is either the remote agent at URL or a local Groq driven room.
	Backend   string `yaml:"backend"`
	URL       string `yaml:"url"`
	SessionID string `yaml:"session_id"`
}

type GroqConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	URL    string `yaml:"url"`
}

type DeepgramConfig struct {
	APIKey string `yaml:"api_key"`
	// ListenURL, SpeakURL and APIURL override the Deepgram endpoints.
	ListenURL string `yaml:"listen_url"`
	SpeakURL  string `yaml:"speak_url"`
	APIURL    string `yaml:"api_url"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend"`
	BufferSize int    `yaml:"buffer_size"`
	// SampleRate of the miniaudio devices, 16kHz when unset.
	SampleRate int `yaml:"sample_rate"`
}

// ConversationConfig describes the agent line shown before the human speaks.
type ConversationConfig struct {
	OpeningLine    string `yaml:"opening_line"`
	OpeningAgent   string `yaml:"opening_agent"`
	OpeningEmotion string `yaml:"opening_emotion"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{
		Groq:     GroqConfig{APIKey: os.Getenv("GROQ_API_KEY")},
		Deepgram: DeepgramConfig{APIKey: os.Getenv("DEEPGRAM_API_KEY")},
	}
	cfg.setDefaults()
	return cfg
}

// Load reads a YAML config file, expanding environment variables in it. An
// empty path yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Agent.Backend == "" {
		c.Agent.Backend = AgentBackendRemote
	}
	if c.Agent.URL == "" {
		c.Agent.URL = "http://localhost:8000"
	}
	if c.Audio.Backend == "" {
		c.Audio.Backend = AudioBackendMiniaudio
	}
	if c.Audio.BufferSize == 0 {
		c.Audio.BufferSize = 1024
	}
	if c.Conversation.OpeningLine == "" {
		c.Conversation.OpeningLine = "State your name for the record."
		if c.Conversation.OpeningAgent == "" {
			c.Conversation.OpeningAgent = "Reynolds"
		}
		if c.Conversation.OpeningEmotion == "" {
			c.Conversation.OpeningEmotion = "stern"
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.File == "" {
		c.Log.File = "interrogation.log"
	}
}

func (c *Config) Validate() error {
	switch c.Agent.Backend {
	case AgentBackendRemote:
	case AgentBackendGroq:
		if c.Groq.APIKey == "" {
			return fmt.Errorf("agent backend %q requires a groq api key", c.Agent.Backend)
		}
	default:
		return fmt.Errorf("unknown agent backend %q", c.Agent.Backend)
	}

	switch c.Audio.Backend {
	case AudioBackendMiniaudio, AudioBackendPortaudio, AudioBackendNone:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}

	if c.Audio.BufferSize < 0 {
		return fmt.Errorf("invalid audio buffer size %d", c.Audio.BufferSize)
	}
	if c.Audio.SampleRate < 0 {
		return fmt.Errorf("invalid audio sample rate %d", c.Audio.SampleRate)
	}

	return nil
}
