package profile

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the main server and its background
// workers. Numeric tuning knobs are deliberately configuration, not constants.
type Profile struct {
	// Mode can be "prod" or "dev".
	Mode string
	// Addr is the binding address for the HTTP server.
	Addr string
	// Port is the binding port for the HTTP server.
	Port int
	// Data is the data directory.
	Data string
	// DSN points to where todoflow stores its own data.
	DSN string
	// Driver is the database driver (sqlite or postgres).
	Driver string
	// Version is the current version of the server.
	Version string

	// LLM configuration.
	LLMProvider    string        // TODOFLOW_LLM_PROVIDER (openai, deepseek, ollama)
	LLMModel       string        // TODOFLOW_LLM_MODEL
	LLMAPIKey      string        // TODOFLOW_LLM_API_KEY
	LLMBaseURL     string        // TODOFLOW_LLM_BASE_URL
	LLMTimeout     time.Duration // TODOFLOW_LLM_TIMEOUT (default: 30s)
	LLMMaxTokens   int           // TODOFLOW_LLM_MAX_TOKENS (default: 2048)
	LLMRateLimit   float64       // TODOFLOW_LLM_RATE_LIMIT requests/sec (default: 5)
	LLMTemperature float32       // TODOFLOW_LLM_TEMPERATURE (default: 0.2)

	// Dispatcher configuration.
	HistoryWindow int // Most recent turns loaded per request (default: 20)
	MaxToolRounds int // Max tool-calling rounds per turn (default: 6)

	// Pattern recognizer configuration.
	PatternMinSupport        int     // Minimum occurrences to promote a bucket (default: 3)
	PatternVarianceTolerance float64 // Max coefficient of variation of inter-occurrence gaps (default: 0.35)
	PatternActivationConf    float64 // Confidence below which patterns stay inactive (default: 0.55)
	PatternLookbackDays      int     // History window for recompute (default: 90)

	// Suggestion ranker configuration.
	SuggestWeightPattern  float64       // default: 0.4
	SuggestWeightDeadline float64       // default: 0.3
	SuggestWeightPriority float64       // default: 0.2
	SuggestWeightBehavior float64       // default: 0.1
	SuggestTopK           int           // default: 5
	SuggestCooldown       time.Duration // dismissal cool-down per pattern (default: 168h)
	SuggestUrgencyHorizon time.Duration // window over which urgency decays to zero (default: 168h)

	// Reminder scheduler configuration.
	ReminderSweepInterval       time.Duration // default: 1m
	ReminderMaxAttempts         int           // default: 5
	ReminderEscalationThreshold int           // attempts before escalation (default: 2)
	ReminderBatchSize           int           // default: 100
	ReminderRetryInterval       time.Duration // base retry delay after a failed attempt (default: 15m)
	ReminderClaimTimeout        time.Duration // age after which a claimed attempt counts as failed (default: 5m)
	ReminderWebhookURL          string        // TODOFLOW_REMINDER_WEBHOOK_URL, enables the webhook channel
	SMTPAddr                    string        // TODOFLOW_SMTP_ADDR host:port, enables the email channel
	SMTPFrom                    string        // TODOFLOW_SMTP_FROM

	// MCPUserID is the fixed user the MCP stdio bridge acts for.
	MCPUserID int32
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile for required fields and fills defaults.
func (p *Profile) Validate() error {
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.DSN == "" {
		if p.Driver != "sqlite" {
			return errors.New("dsn is required for postgres")
		}
		p.DSN = fmt.Sprintf("%s/todoflow_%s.db", p.Data, p.Mode)
	}
	if p.LLMTimeout <= 0 {
		p.LLMTimeout = 30 * time.Second
	}
	if p.LLMMaxTokens <= 0 {
		p.LLMMaxTokens = 2048
	}
	if p.LLMRateLimit <= 0 {
		p.LLMRateLimit = 5
	}
	if p.HistoryWindow <= 0 {
		p.HistoryWindow = 20
	}
	if p.MaxToolRounds <= 0 {
		p.MaxToolRounds = 6
	}
	if p.PatternMinSupport <= 0 {
		p.PatternMinSupport = 3
	}
	if p.PatternVarianceTolerance <= 0 {
		p.PatternVarianceTolerance = 0.35
	}
	if p.PatternActivationConf <= 0 {
		p.PatternActivationConf = 0.55
	}
	if p.PatternLookbackDays <= 0 {
		p.PatternLookbackDays = 90
	}
	if p.SuggestWeightPattern+p.SuggestWeightDeadline+p.SuggestWeightPriority+p.SuggestWeightBehavior == 0 {
		p.SuggestWeightPattern = 0.4
		p.SuggestWeightDeadline = 0.3
		p.SuggestWeightPriority = 0.2
		p.SuggestWeightBehavior = 0.1
	}
	if p.SuggestTopK <= 0 {
		p.SuggestTopK = 5
	}
	if p.SuggestCooldown <= 0 {
		p.SuggestCooldown = 7 * 24 * time.Hour
	}
	if p.SuggestUrgencyHorizon <= 0 {
		p.SuggestUrgencyHorizon = 7 * 24 * time.Hour
	}
	if p.ReminderSweepInterval <= 0 {
		p.ReminderSweepInterval = time.Minute
	}
	if p.ReminderMaxAttempts <= 0 {
		p.ReminderMaxAttempts = 5
	}
	if p.ReminderEscalationThreshold <= 0 {
		p.ReminderEscalationThreshold = 2
	}
	if p.ReminderBatchSize <= 0 {
		p.ReminderBatchSize = 100
	}
	if p.ReminderRetryInterval <= 0 {
		p.ReminderRetryInterval = 15 * time.Minute
	}
	if p.ReminderClaimTimeout <= 0 {
		p.ReminderClaimTimeout = 5 * time.Minute
	}
	return nil
}
