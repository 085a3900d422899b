package cmd

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "chat-applier"
)

type Config struct {
	ChatLog    string            `mapstructure:"chat-log"`
	Database   *DatabaseConfig   `mapstructure:"database"`
	Profile    *ProfileConfig    `mapstructure:"profile"`
	AI         *AIConfig         `mapstructure:"ai"`
	Scraper    *ScraperConfig    `mapstructure:"scraper"`
	SMTP       *SMTPConfig       `mapstructure:"smtp"`
	Apply      *ApplyConfig      `mapstructure:"apply"`
	Enrichment *EnrichmentConfig `mapstructure:"enrichment"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type ProfileConfig struct {
	ID            string   `mapstructure:"id"`
	Name          string   `mapstructure:"name"`
	Email         string   `mapstructure:"email"`
	GitHub        string   `mapstructure:"github"`
	LinkedIn      string   `mapstructure:"linkedin"`
	Twitter       string   `mapstructure:"twitter"`
	ResumeLink    string   `mapstructure:"resume-link"`
	ResumeFile    string   `mapstructure:"resume-file"`
	PastWorkLinks []string `mapstructure:"past-work-links"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
	OpenAI   *OpenAIConfig `mapstructure:"openai"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OpenAIConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	BaseURL      string `mapstructure:"base-url"`
	Model        string `mapstructure:"model"`
	JSONMode     bool   `mapstructure:"json-mode"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ScraperConfig struct {
	FirecrawlAPIKey     string        `mapstructure:"firecrawl-api-key" json:"-"`
	FirecrawlAPIKeyFile string        `mapstructure:"firecrawl-api-key-file"`
	FirecrawlBaseURL    string        `mapstructure:"firecrawl-base-url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxChars            int           `mapstructure:"max-chars"`
	RateLimit           float64       `mapstructure:"rate-limit"`
	UserAgent           string        `mapstructure:"user-agent"`
}

type SMTPConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password" json:"-"`
	PasswordFile string        `mapstructure:"password-file"`
	From         string        `mapstructure:"from"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ApplyConfig struct {
	MinScore   int               `mapstructure:"min-score"`
	DryRun     bool              `mapstructure:"dry-run"`
	FormFields map[string]string `mapstructure:"form-fields"`
	Exclude    *struct {
		Companies []string `mapstructure:"companies"`
	} `mapstructure:"exclude"`
}

type EnrichmentConfig struct {
	MaxResumeChars int `mapstructure:"max-resume-chars"`
	MaxSourceChars int `mapstructure:"max-source-chars"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "chat-applier finds job posts in exported chat logs and applies to them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"ai.gemini.api-key-file":         "GEMINI_API_KEY_FILE",
		"ai.openai.api-key-file":         "OPENAI_API_KEY_FILE",
		"smtp.password-file":             "SMTP_PASSWORD_FILE",
		"scraper.firecrawl-api-key-file": "FIRECRAWL_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("database.path", "chat-applier.db")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("profile.id", "default")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is chat-applier.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// version does not need a config.
	if runCmd.CalledAs() == "" && enrichCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CHAT_APPLIER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
