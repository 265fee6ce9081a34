package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	Twilio TwilioConfig
	Token  TokenConfig
	Audit  AuditConfig
	DB     DBConfig
	Redis  RedisConfig
}

type AppConfig struct {
	Env  string
	Port int

	// PublicBaseURL is the externally reachable origin Twilio uses for callbacks,
	// e.g. https://ivr.example.com. Outbound calls point Twilio at PublicBaseURL + /outgoing-ivr.
	PublicBaseURL string

	// CORSAllowOrigins lists browser origins allowed to call the JSON API. "*" allows all.
	CORSAllowOrigins []string
}

type TwilioConfig struct {
	AccountSID  string
	AuthToken   string
	APIKey      string
	APISecret   string
	TwiMLAppSID string

	// PhoneNumber is the origin (caller id) for outbound calls.
	// Not validated at startup: a missing number fails POST /call only.
	PhoneNumber string

	// ValidateWebhooks enables X-Twilio-Signature checks on webhook routes.
	ValidateWebhooks bool
}

type TokenConfig struct {
	TTL time.Duration
}

// AuditBackend selects where the call-control ledger is written.
type AuditBackend string

const (
	AuditBackendMemory   AuditBackend = "memory"
	AuditBackendPostgres AuditBackend = "postgres"
	AuditBackendRedis    AuditBackend = "redis"
)

type AuditConfig struct {
	Backend AuditBackend
	// Stream is the Redis stream key (redis backend only).
	Stream string
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

// maxTokenTTL is Twilio's upper bound for access token lifetime.
const maxTokenTTL = 24 * time.Hour

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		key := "APP_PORT"
		if strings.TrimSpace(os.Getenv(key)) == "" && strings.TrimSpace(os.Getenv("PORT")) != "" {
			key = "PORT"
		}
		n, err := mustInt(key)
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}
	c.App.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	c.App.CORSAllowOrigins = splitList(os.Getenv("CORS_ALLOW_ORIGINS"))

	c.Twilio.AccountSID = strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID"))
	c.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	c.Twilio.APIKey = strings.TrimSpace(os.Getenv("TWILIO_API_KEY"))
	c.Twilio.APISecret = os.Getenv("TWILIO_API_SECRET")
	c.Twilio.TwiMLAppSID = strings.TrimSpace(os.Getenv("TWILIO_TWIML_APP_SID"))
	c.Twilio.PhoneNumber = strings.TrimSpace(os.Getenv("TWILIO_NUMBER"))
	c.Twilio.ValidateWebhooks = mustBool("TWILIO_VALIDATE_WEBHOOKS")

	c.Token.TTL = optionalDuration(&parseErrs, "TOKEN_TTL")

	c.Audit.Backend = AuditBackend(strings.ToLower(strings.TrimSpace(os.Getenv("AUDIT_BACKEND"))))
	c.Audit.Stream = strings.TrimSpace(os.Getenv("AUDIT_STREAM"))

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = optionalInt(&parseErrs, "DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = optionalInt(&parseErrs, "REDIS_PORT")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}
	if c.App.PublicBaseURL == "" {
		errs = append(errs, errors.New("PUBLIC_BASE_URL is required"))
	} else if !strings.HasPrefix(c.App.PublicBaseURL, "http://") && !strings.HasPrefix(c.App.PublicBaseURL, "https://") {
		errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an http(s) URL, got %q", c.App.PublicBaseURL))
	}
	if len(c.App.CORSAllowOrigins) == 0 {
		c.App.CORSAllowOrigins = []string{"*"}
	}

	// Credentials are required for token minting and call creation.
	if c.Twilio.AccountSID == "" {
		errs = append(errs, errors.New("TWILIO_ACCOUNT_SID is required"))
	}
	if c.Twilio.AuthToken == "" {
		errs = append(errs, errors.New("TWILIO_AUTH_TOKEN is required"))
	}
	if c.Twilio.APIKey == "" {
		errs = append(errs, errors.New("TWILIO_API_KEY is required"))
	}
	if c.Twilio.APISecret == "" {
		errs = append(errs, errors.New("TWILIO_API_SECRET is required"))
	}
	if c.Twilio.TwiMLAppSID == "" {
		errs = append(errs, errors.New("TWILIO_TWIML_APP_SID is required"))
	}
	if c.IsProduction() && !c.Twilio.ValidateWebhooks {
		errs = append(errs, errors.New("TWILIO_VALIDATE_WEBHOOKS must be enabled in production"))
	}

	if c.Token.TTL <= 0 {
		c.Token.TTL = time.Hour
	}
	if c.Token.TTL > maxTokenTTL {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must not exceed %s, got %s", maxTokenTTL, c.Token.TTL))
	}

	if c.Audit.Backend == "" {
		c.Audit.Backend = AuditBackendMemory
	}
	switch c.Audit.Backend {
	case AuditBackendMemory:
	case AuditBackendPostgres:
		errs = append(errs, c.validateDB()...)
	case AuditBackendRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("REDIS_HOST is required for redis audit backend"))
		}
		if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
		}
		if c.Audit.Stream == "" {
			c.Audit.Stream = "voice-ivr:audit"
		}
	default:
		errs = append(errs, fmt.Errorf("AUDIT_BACKEND must be one of memory, postgres, redis, got %q", c.Audit.Backend))
	}

	return joinErrors(errs)
}

func (c *Config) validateDB() []error {
	var errs []error
	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}
	return errs
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

// CallbackURL joins a route path onto PublicBaseURL.
func (c Config) CallbackURL(path string) string {
	return c.App.PublicBaseURL + "/" + strings.TrimLeft(path, "/")
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(errs *[]error, key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be an integer, got %q", key, v))
		return 0
	}
	return n
}

func optionalDuration(errs *[]error, key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s must be a duration like 1h or 30m, got %q", key, v))
		return 0
	}
	return d
}

func mustBool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && b
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
