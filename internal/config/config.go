package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Env string

const (
	EnvDevelopment Env = "development"
	EnvProduction  Env = "production"
)

const minJWTSecretLen = 32

// Config is built once at startup and passed to constructors; nothing in
// the module reads the environment after FromEnv returns.
type Config struct {
	Env      Env
	HTTPAddr string
	LogLevel string

	DBDriver string // sqlite|postgres|mongo
	DBDSN    string
	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTTTL    time.Duration

	UploadDir     string
	FileGCEvery   time.Duration
	ClientOrigins []string

	PayHere PayHere

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RollbarToken   string
	SendGridAPIKey string
	MailFrom       string
	AppName        string

	AdminEmail    string
	AdminPassword string
}

type PayHere struct {
	MerchantID     string
	MerchantSecret string
	Sandbox        bool
	Currency       string
	NotifyURL      string
	ReturnURL      string
	CancelURL      string
}

func (c Config) Production() bool { return c.Env == EnvProduction }

// FromEnv reads configuration from the process environment, after loading
// a .env file if one exists in the working directory.
func FromEnv() Config {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	return fromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("APP_ENV", string(EnvDevelopment))
	v.SetDefault("PORT", "5000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("MONGO_DB", "classroom")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("FILE_GC_INTERVAL", "1m")
	v.SetDefault("CLIENT_ORIGIN", "http://localhost:3000")
	v.SetDefault("PAYHERE_SANDBOX", false)
	v.SetDefault("PAYHERE_CURRENCY", "LKR")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("APP_NAME", "Classroom")
	v.SetDefault("MAIL_FROM", "noreply@localhost")
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) Config {
	env := Env(strings.ToLower(v.GetString("APP_ENV")))
	if env != EnvProduction {
		env = EnvDevelopment
	}
	return Config{
		Env:      env,
		HTTPAddr: ":" + strings.TrimPrefix(v.GetString("PORT"), ":"),
		LogLevel: v.GetString("LOG_LEVEL"),

		DBDriver: strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:    v.GetString("DB_DSN"),
		MongoURI: v.GetString("MONGO_URI"),
		MongoDB:  v.GetString("MONGO_DB"),

		JWTSecret: v.GetString("JWT_SECRET"),
		JWTTTL:    v.GetDuration("JWT_TTL"),

		UploadDir:     v.GetString("UPLOAD_DIR"),
		FileGCEvery:   v.GetDuration("FILE_GC_INTERVAL"),
		ClientOrigins: csv(v.GetString("CLIENT_ORIGIN")),

		PayHere: PayHere{
			MerchantID:     v.GetString("PAYHERE_MERCHANT_ID"),
			MerchantSecret: v.GetString("PAYHERE_MERCHANT_SECRET"),
			Sandbox:        v.GetBool("PAYHERE_SANDBOX"),
			Currency:       strings.ToUpper(v.GetString("PAYHERE_CURRENCY")),
			NotifyURL:      v.GetString("PAYHERE_NOTIFY_URL"),
			ReturnURL:      v.GetString("PAYHERE_RETURN_URL"),
			CancelURL:      v.GetString("PAYHERE_CANCEL_URL"),
		},

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		RollbarToken:   v.GetString("ROLLBAR_TOKEN"),
		SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
		MailFrom:       v.GetString("MAIL_FROM"),
		AppName:        v.GetString("APP_NAME"),

		AdminEmail:    v.GetString("ADMIN_EMAIL"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
	}
}

// Validate reports configuration the server must not boot with.
func (c Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < minJWTSecretLen {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen))
	}
	switch c.DBDriver {
	case "sqlite", "postgres":
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when DB_DRIVER=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL must be positive"))
	}
	if c.PayHere.MerchantID != "" && c.PayHere.MerchantSecret == "" {
		errs = append(errs, errors.New("PAYHERE_MERCHANT_SECRET is required when PAYHERE_MERCHANT_ID is set"))
	}
	if c.PayHere.Sandbox && c.Production() {
		errs = append(errs, errors.New("PAYHERE_SANDBOX must be false when APP_ENV=production"))
	}
	return errors.Join(errs...)
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
