package orchestrator

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config carries every key named in the external-interfaces section: stt.*,
// chat.*, idle.*, llm.*. Unknown keys are ignored by LoadConfig; missing keys fall
// back to DefaultConfig.
type Config struct {
	STTEnabled bool

	ChatEnabled       bool
	ChatPollInterval  time.Duration
	ChatMaxRecent     int
	ChatResponseChance float64

	IdleEnabled     bool
	IdleMinInterval time.Duration
	IdleMaxInterval time.Duration

	LLMMaxHistory                int
	LLMMemoryPath                string
	LLMCoreMemoryPath            string
	LLMEnableMemorySummarize     bool
	LLMMemorySummarizeInterval   time.Duration
	LLMEnableCoreMemoryProcess   bool
	LLMCoreMemoryInterval        time.Duration
	LLMPersonaPrompt             string
	LLMUserPromptTemplate        string
	LLMIdlePrompt                string

	MailboxCapacity int

	LLMTimeout  time.Duration
	TTSTimeout  time.Duration
	ChatTimeout time.Duration
}

// DefaultConfig mirrors the defaults documented in the external-interfaces
// section: poll_interval_s=2, response_chance=0.3, max_recent_chats=20,
// memory_summarize_interval_s=300, core_memory_interval_s=1800.
func DefaultConfig() Config {
	return Config{
		STTEnabled: true,

		ChatEnabled:        true,
		ChatPollInterval:   2 * time.Second,
		ChatMaxRecent:      20,
		ChatResponseChance: 0.3,

		IdleEnabled:     true,
		IdleMinInterval: 30 * time.Second,
		IdleMaxInterval: 60 * time.Second,

		LLMMaxHistory:              50,
		LLMMemoryPath:              "long_term_memory.json",
		LLMCoreMemoryPath:          "core_memory.json",
		LLMEnableMemorySummarize:   true,
		LLMMemorySummarizeInterval: 300 * time.Second,
		LLMEnableCoreMemoryProcess: true,
		LLMCoreMemoryInterval:      1800 * time.Second,
		LLMPersonaPrompt:           "You are a friendly virtual streamer chatting with your audience.",
		LLMUserPromptTemplate:      "{speaker}: {text}",
		LLMIdlePrompt:              "Say something interesting to keep the stream lively.",

		MailboxCapacity: 64,

		LLMTimeout:  30 * time.Second,
		TTSTimeout:  10 * time.Second,
		ChatTimeout: 5 * time.Second,
	}
}

// LoadConfig reads a YAML config file (if path is non-empty and exists) plus
// AGENT_-prefixed environment variable overrides, falling back to
// DefaultConfig for anything unset. Unknown keys in the file are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("AGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	bindDefault := func(key string, def interface{}) { v.SetDefault(key, def) }
	bindDefault("stt.enabled", cfg.STTEnabled)
	bindDefault("chat.enabled", cfg.ChatEnabled)
	bindDefault("chat.poll_interval_s", int(cfg.ChatPollInterval.Seconds()))
	bindDefault("chat.max_recent_chats", cfg.ChatMaxRecent)
	bindDefault("chat.response_chance", cfg.ChatResponseChance)
	bindDefault("idle.enabled", cfg.IdleEnabled)
	bindDefault("idle.min_interval_s", int(cfg.IdleMinInterval.Seconds()))
	bindDefault("idle.max_interval_s", int(cfg.IdleMaxInterval.Seconds()))
	bindDefault("llm.max_history", cfg.LLMMaxHistory)
	bindDefault("llm.memory_path", cfg.LLMMemoryPath)
	bindDefault("llm.core_memory_path", cfg.LLMCoreMemoryPath)
	bindDefault("llm.enable_memory_summarization", cfg.LLMEnableMemorySummarize)
	bindDefault("llm.memory_summarize_interval_s", int(cfg.LLMMemorySummarizeInterval.Seconds()))
	bindDefault("llm.enable_core_memory_processing", cfg.LLMEnableCoreMemoryProcess)
	bindDefault("llm.core_memory_interval_s", int(cfg.LLMCoreMemoryInterval.Seconds()))
	bindDefault("llm.persona_prompt", cfg.LLMPersonaPrompt)
	bindDefault("llm.user_prompt_template", cfg.LLMUserPromptTemplate)
	bindDefault("llm.idle_prompt", cfg.LLMIdlePrompt)

	cfg.STTEnabled = v.GetBool("stt.enabled")
	cfg.ChatEnabled = v.GetBool("chat.enabled")
	cfg.ChatPollInterval = time.Duration(v.GetInt("chat.poll_interval_s")) * time.Second
	cfg.ChatMaxRecent = v.GetInt("chat.max_recent_chats")
	cfg.ChatResponseChance = v.GetFloat64("chat.response_chance")
	cfg.IdleEnabled = v.GetBool("idle.enabled")
	cfg.IdleMinInterval = time.Duration(v.GetInt("idle.min_interval_s")) * time.Second
	cfg.IdleMaxInterval = time.Duration(v.GetInt("idle.max_interval_s")) * time.Second
	cfg.LLMMaxHistory = v.GetInt("llm.max_history")
	cfg.LLMMemoryPath = v.GetString("llm.memory_path")
	cfg.LLMCoreMemoryPath = v.GetString("llm.core_memory_path")
	cfg.LLMEnableMemorySummarize = v.GetBool("llm.enable_memory_summarization")
	cfg.LLMMemorySummarizeInterval = time.Duration(v.GetInt("llm.memory_summarize_interval_s")) * time.Second
	cfg.LLMEnableCoreMemoryProcess = v.GetBool("llm.enable_core_memory_processing")
	cfg.LLMCoreMemoryInterval = time.Duration(v.GetInt("llm.core_memory_interval_s")) * time.Second
	cfg.LLMPersonaPrompt = v.GetString("llm.persona_prompt")
	cfg.LLMUserPromptTemplate = v.GetString("llm.user_prompt_template")
	cfg.LLMIdlePrompt = v.GetString("llm.idle_prompt")

	return cfg, nil
}

// configDump is a YAML-tagged mirror of Config, used only by Dump — Config
// itself stays tag-free since it's an internal struct, not a wire format.
type configDump struct {
	STT struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"stt"`
	Chat struct {
		Enabled        bool    `yaml:"enabled"`
		PollIntervalS  int     `yaml:"poll_interval_s"`
		MaxRecentChats int     `yaml:"max_recent_chats"`
		ResponseChance float64 `yaml:"response_chance"`
	} `yaml:"chat"`
	Idle struct {
		Enabled     bool `yaml:"enabled"`
		MinIntervalS int `yaml:"min_interval_s"`
		MaxIntervalS int `yaml:"max_interval_s"`
	} `yaml:"idle"`
	LLM struct {
		MaxHistory                 int    `yaml:"max_history"`
		MemoryPath                 string `yaml:"memory_path"`
		CoreMemoryPath             string `yaml:"core_memory_path"`
		EnableMemorySummarization  bool   `yaml:"enable_memory_summarization"`
		MemorySummarizeIntervalS   int    `yaml:"memory_summarize_interval_s"`
		EnableCoreMemoryProcessing bool   `yaml:"enable_core_memory_processing"`
		CoreMemoryIntervalS        int    `yaml:"core_memory_interval_s"`
		PersonaPrompt              string `yaml:"persona_prompt"`
		UserPromptTemplate         string `yaml:"user_prompt_template"`
		IdlePrompt                 string `yaml:"idle_prompt"`
	} `yaml:"llm"`
}

// Dump renders cfg as YAML for operator debugging.
func (c Config) Dump() (string, error) {
	var d configDump
	d.STT.Enabled = c.STTEnabled
	d.Chat.Enabled = c.ChatEnabled
	d.Chat.PollIntervalS = int(c.ChatPollInterval.Seconds())
	d.Chat.MaxRecentChats = c.ChatMaxRecent
	d.Chat.ResponseChance = c.ChatResponseChance
	d.Idle.Enabled = c.IdleEnabled
	d.Idle.MinIntervalS = int(c.IdleMinInterval.Seconds())
	d.Idle.MaxIntervalS = int(c.IdleMaxInterval.Seconds())
	d.LLM.MaxHistory = c.LLMMaxHistory
	d.LLM.MemoryPath = c.LLMMemoryPath
	d.LLM.CoreMemoryPath = c.LLMCoreMemoryPath
	d.LLM.EnableMemorySummarization = c.LLMEnableMemorySummarize
	d.LLM.MemorySummarizeIntervalS = int(c.LLMMemorySummarizeInterval.Seconds())
	d.LLM.EnableCoreMemoryProcessing = c.LLMEnableCoreMemoryProcess
	d.LLM.CoreMemoryIntervalS = int(c.LLMCoreMemoryInterval.Seconds())
	d.LLM.PersonaPrompt = c.LLMPersonaPrompt
	d.LLM.UserPromptTemplate = c.LLMUserPromptTemplate
	d.LLM.IdlePrompt = c.LLMIdlePrompt

	out, err := yaml.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
