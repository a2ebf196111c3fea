package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host                      string
		Address                   string
		DebugAddress              string
		AllowedOrigins            []string
		ReadTimeout               time.Duration
		WriteTimeout              time.Duration
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		DisableReqLogs            bool
	}

	DatabaseConfig struct {
		Engine        string // mongodb | postgres | memory
		URI           string // mongodb connection string
		Name          string
		Host          string
		Port          string
		User          string
		Password      string
		DisableTLS    bool
		ConnTimeout   time.Duration
		MigrateOnBoot bool
	}

	EmailConfig struct {
		Backend         string // console | smtp | sendgrid
		SMTPHost        string
		SMTPPort        int
		SMTPUsername    string
		SMTPPassword    string
		SMTPImplicitTLS bool
		SendgridAPIKey  string
		MaxAttempts     int
		RetryDelay      time.Duration
		SendTimeout     time.Duration
		LogSize         int
	}

	AdmissionsConfig struct {
		NumberPrefix string
		OTPDigits    int
		OTPTTL       time.Duration
	}

	AdminConfig struct {
		Username string
		Password string
		Email    string
		FullName string
	}

	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail string
		RollbarToken     string

		Server     ServerConfig
		Database   DatabaseConfig
		Email      EmailConfig
		Admissions AdmissionsConfig
		Admin      AdminConfig
	}
)

// DefaultFrom returns the parsed DefaultFromEmail, falling back to a bare address.
func (c *Config) DefaultFrom() mail.Address {
	if addr, err := mail.ParseAddress(c.DefaultFromEmail); err == nil {
		return *addr
	}
	return mail.Address{Name: c.AppName, Address: c.DefaultFromEmail}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("appName", "J & J Secondary School")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "s3cr3t-jj-(h!x)#*c2(#yg4h^$cegm2emy+57=dz&uox")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "J & J Secondary School <noreply@jjschool.local>")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":5000")
	v.SetDefault("server.debugAddress", ":5001")
	v.SetDefault("server.allowedOrigins", []string{"*"})
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 10*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.disableReqLogs", false)

	v.SetDefault("database.engine", "mongodb")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "jjschool")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("database.connTimeout", 10*time.Second)
	v.SetDefault("database.migrateOnBoot", true)

	v.SetDefault("email.backend", "console")
	v.SetDefault("email.smtpHost", "smtp.gmail.com")
	v.SetDefault("email.smtpPort", 587)
	v.SetDefault("email.smtpUsername", "")
	v.SetDefault("email.smtpPassword", "")
	v.SetDefault("email.smtpImplicitTLS", false)
	v.SetDefault("email.sendgridAPIKey", "")
	v.SetDefault("email.maxAttempts", 2)
	v.SetDefault("email.retryDelay", 2*time.Second)
	v.SetDefault("email.sendTimeout", 30*time.Second)
	v.SetDefault("email.logSize", 200)

	v.SetDefault("admissions.numberPrefix", "APP")
	v.SetDefault("admissions.otpDigits", 6)
	v.SetDefault("admissions.otpTTL", 30*time.Minute)

	v.SetDefault("admin.username", "admin@jjmw")
	v.SetDefault("admin.password", "adminPass1")
	v.SetDefault("admin.email", "admin@jjmw.local")
	v.SetDefault("admin.fullName", "System Administrator")
}

// NewConfig loads the app configuration.
// Values come from `<ENV>_*` environment variables, optionally seeded from `config/.env.<env>`;
// e.g. with ENV=PROD, `PROD_DATABASE_URI` overrides `database.uri`.
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugAddress:              v.GetString("server.debugAddress"),
			AllowedOrigins:            v.GetStringSlice("server.allowedOrigins"),
			ReadTimeout:               v.GetDuration("server.readTimeout"),
			WriteTimeout:              v.GetDuration("server.writeTimeout"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        strings.ToLower(v.GetString("database.engine")),
			URI:           v.GetString("database.uri"),
			Name:          v.GetString("database.name"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			DisableTLS:    v.GetBool("database.disableTLS"),
			ConnTimeout:   v.GetDuration("database.connTimeout"),
			MigrateOnBoot: v.GetBool("database.migrateOnBoot"),
		},
		Email: EmailConfig{
			Backend:         strings.ToLower(v.GetString("email.backend")),
			SMTPHost:        v.GetString("email.smtpHost"),
			SMTPPort:        v.GetInt("email.smtpPort"),
			SMTPUsername:    v.GetString("email.smtpUsername"),
			SMTPPassword:    v.GetString("email.smtpPassword"),
			SMTPImplicitTLS: v.GetBool("email.smtpImplicitTLS"),
			SendgridAPIKey:  v.GetString("email.sendgridAPIKey"),
			MaxAttempts:     v.GetInt("email.maxAttempts"),
			RetryDelay:      v.GetDuration("email.retryDelay"),
			SendTimeout:     v.GetDuration("email.sendTimeout"),
			LogSize:         v.GetInt("email.logSize"),
		},
		Admissions: AdmissionsConfig{
			NumberPrefix: v.GetString("admissions.numberPrefix"),
			OTPDigits:    v.GetInt("admissions.otpDigits"),
			OTPTTL:       v.GetDuration("admissions.otpTTL"),
		},
		Admin: AdminConfig{
			Username: v.GetString("admin.username"),
			Password: v.GetString("admin.password"),
			Email:    v.GetString("admin.email"),
			FullName: v.GetString("admin.fullName"),
		},
	}
}

func (dc DatabaseConfig) Address() string {
	return dc.Host + ":" + dc.Port
}
