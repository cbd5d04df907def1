package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Keys shared by the functions and the CLI. Environment variables use the same names.
const (
	KeyProjectID           = "PROJECT_ID"
	KeyVertexAIRegion      = "VERTEX_AI_REGION"
	KeyUploadsBucket       = "UPLOADS_BUCKET"
	KeyDatasetsBucket      = "DATASETS_BUCKET"
	KeyReportsBucket       = "REPORTS_BUCKET"
	KeyCollectionName      = "FIRESTORE_COLLECTION"
	KeyWorkflowID          = "WORKFLOW_ID"
	KeyWorkflowLocation    = "WORKFLOW_LOCATION"
	KeyReferenceTable      = "REFERENCE_TABLE"
	KeyLLMProvider         = "LLM_PROVIDER"
	KeyLLMModel            = "LLM_MODEL"
	KeyLLMTimeout          = "LLM_TIMEOUT"
	KeyOpenAIAPIKey        = "OPENAI_API_KEY"
	KeySMTPHost            = "SMTP_HOST"
	KeySMTPPort            = "SMTP_PORT"
	KeySMTPUsername        = "SMTP_USERNAME"
	KeySMTPPassword        = "SMTP_PASSWORD"
	KeySMTPFrom            = "SMTP_FROM"
	KeySMTPAttempts        = "SMTP_ATTEMPTS"
	KeyMaxReportRows       = "MAX_REPORT_ROWS"
	KeyDefaultMailSubject  = "MAIL_SUBJECT"
	KeyUploadRetryAttempts = "UPLOAD_ATTEMPTS"
	KeyIngestStaleAfter    = "INGEST_STALE_AFTER"
)

// Config is the resolved configuration of one process.
type Config struct {
	ProjectID        string
	VertexAIRegion   string
	UploadsBucket    string
	DatasetsBucket   string
	ReportsBucket    string
	CollectionName   string
	WorkflowID       string
	WorkflowLocation string
	ReferenceTable   string

	LLMProvider  string
	LLMModel     string
	LLMTimeout   time.Duration
	OpenAIAPIKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPAttempts uint
	MailSubject  string

	MaxReportRows  int
	UploadAttempts uint

	// IngestStaleAfter is how long a record may sit in INGESTING before a
	// redelivered upload takes it over.
	IngestStaleAfter time.Duration

	v *viper.Viper
}

// ErrMissingKeys is wrapped by Require when mandatory settings are absent.
var ErrMissingKeys = errors.New("required configuration not set")

// Load resolves configuration from defaults, an optional YAML file and the environment.
// The environment always wins. An empty cfgFile means no file.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyVertexAIRegion, "us-central1")
	v.SetDefault(KeyCollectionName, "datasets")
	v.SetDefault(KeyWorkflowID, "ncm-compliance-orchestrator")
	v.SetDefault(KeyWorkflowLocation, "us-central1")
	v.SetDefault(KeyLLMProvider, "vertex")
	v.SetDefault(KeyLLMTimeout, "45s")
	v.SetDefault(KeySMTPHost, "sandbox.smtp.mailtrap.io")
	v.SetDefault(KeySMTPPort, 2525)
	v.SetDefault(KeySMTPFrom, "noreply.ncmvalidator@example.com")
	v.SetDefault(KeySMTPAttempts, 3)
	v.SetDefault(KeyDefaultMailSubject, "Relatório de Conformidade NCM")
	v.SetDefault(KeyMaxReportRows, 20)
	v.SetDefault(KeyUploadRetryAttempts, 4)
	v.SetDefault(KeyIngestStaleAfter, "15m")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ProjectID:        v.GetString(KeyProjectID),
		VertexAIRegion:   v.GetString(KeyVertexAIRegion),
		UploadsBucket:    v.GetString(KeyUploadsBucket),
		DatasetsBucket:   v.GetString(KeyDatasetsBucket),
		ReportsBucket:    v.GetString(KeyReportsBucket),
		CollectionName:   v.GetString(KeyCollectionName),
		WorkflowID:       v.GetString(KeyWorkflowID),
		WorkflowLocation: v.GetString(KeyWorkflowLocation),
		ReferenceTable:   v.GetString(KeyReferenceTable),
		LLMProvider:      strings.ToLower(v.GetString(KeyLLMProvider)),
		LLMModel:         v.GetString(KeyLLMModel),
		LLMTimeout:       v.GetDuration(KeyLLMTimeout),
		OpenAIAPIKey:     v.GetString(KeyOpenAIAPIKey),
		SMTPHost:         v.GetString(KeySMTPHost),
		SMTPPort:         v.GetInt(KeySMTPPort),
		SMTPUsername:     v.GetString(KeySMTPUsername),
		SMTPPassword:     v.GetString(KeySMTPPassword),
		SMTPFrom:         v.GetString(KeySMTPFrom),
		SMTPAttempts:     v.GetUint(KeySMTPAttempts),
		MailSubject:      v.GetString(KeyDefaultMailSubject),
		MaxReportRows:    v.GetInt(KeyMaxReportRows),
		UploadAttempts:   v.GetUint(KeyUploadRetryAttempts),
		IngestStaleAfter: v.GetDuration(KeyIngestStaleAfter),
		v:                v,
	}
}

// Require returns an error naming every key in keys that resolved to an empty value.
func (c *Config) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if c.v == nil || strings.TrimSpace(c.v.GetString(k)) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", "))
	}
	return nil
}
