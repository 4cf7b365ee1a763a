// Package config manages application configuration from a YAML file,
// TELEPIPE_-prefixed environment variables, and default values.
package config

import (
	"github.com/ethiomart/telepipe/internal/amharic"
	"github.com/ethiomart/telepipe/internal/extract"
)

// Config defines the full configuration surface of the pipeline. Values can
// be set in config.yaml or via environment variables prefixed with TELEPIPE_
// (e.g. TELEPIPE_TELEGRAM_API_HASH).
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Ingest     IngestConfig     `mapstructure:"ingest"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Preprocess PreprocessConfig `mapstructure:"preprocess"`
	Extract    ExtractConfig    `mapstructure:"extract"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Labeling   LabelingConfig   `mapstructure:"labeling"`
}

// LogConfig controls log verbosity and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the MTProto credentials, the session file location,
// and the ordered list of channel references to ingest.
type TelegramConfig struct {
	APIID       int      `mapstructure:"api_id"   validate:"required,gt=0"`
	APIHash     string   `mapstructure:"api_hash" validate:"required"`
	Phone       string   `mapstructure:"phone"`
	SessionFile string   `mapstructure:"session_file"`
	Channels    []string `mapstructure:"channels"`
}

// IngestConfig bounds a single run.
type IngestConfig struct {
	// FetchLimit caps the number of messages fetched per channel,
	// oldest first.
	FetchLimit int `mapstructure:"fetch_limit" validate:"gt=0"`
}

// PathsConfig locates the on-disk stores.
type PathsConfig struct {
	RawFile        string `mapstructure:"raw_file"        validate:"required"`
	StructuredFile string `mapstructure:"structured_file" validate:"required"`
	ImagesDir      string `mapstructure:"images_dir"      validate:"required"`
	DocumentsDir   string `mapstructure:"documents_dir"   validate:"required"`
	LabelingFile   string `mapstructure:"labeling_file"`
	LabeledFile    string `mapstructure:"labeled_file"`
	CoNLLFile      string `mapstructure:"conll_file"`
}

// PreprocessConfig parameterizes the text normalizer.
type PreprocessConfig struct {
	CharsToRemove   string   `mapstructure:"chars_to_remove"`
	Stopwords       []string `mapstructure:"stopwords"`
	RemoveStopwords bool     `mapstructure:"remove_stopwords"`
}

// ExtractConfig carries the entity extraction patterns.
type ExtractConfig struct {
	PricePattern string `mapstructure:"price_pattern"`
	PhonePattern string `mapstructure:"phone_pattern"`
}

// ArchiveConfig locates the run archive database. An empty path disables
// run bookkeeping.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// ScheduleConfig enables periodic re-ingestion.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required_if=Enabled true"`
}

// LabelingConfig bounds the manual-labeling export.
type LabelingConfig struct {
	Limit int `mapstructure:"limit" validate:"gt=0"`
}

func defaults() map[string]any {
	return map[string]any{
		"log.level": "info",
		"log.json":  false,

		// Credential keys default to empty so viper sees them as known
		// keys and picks up TELEPIPE_TELEGRAM_* environment overrides.
		"telegram.api_id":       0,
		"telegram.api_hash":     "",
		"telegram.phone":        "",
		"telegram.session_file": "telepipe.session",
		"telegram.channels":     []string{},

		"ingest.fetch_limit": 1000,

		"paths.raw_file":        "data/raw/telegram_messages.jsonl",
		"paths.structured_file": "data/processed/structured_telegram_data.jsonl",
		"paths.images_dir":      "data/images",
		"paths.documents_dir":   "data/documents",
		"paths.labeling_file":   "data/processed/messages_for_labeling.txt",
		"paths.labeled_file":    "data/processed/my_labeled_data_raw.txt",
		"paths.conll_file":      "data/processed/labeled_data_conll.txt",

		"preprocess.chars_to_remove":  amharic.DefaultRemovalClass,
		"preprocess.stopwords":        amharic.DefaultStopwords,
		"preprocess.remove_stopwords": false,

		"extract.price_pattern": extract.DefaultPricePattern,
		"extract.phone_pattern": extract.DefaultPhonePattern,

		"archive.path": "data/runs.db",

		"schedule.enabled": false,
		"schedule.cron":    "0 3 * * *",

		"labeling.limit": 50,
	}
}
