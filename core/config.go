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

const envPrefix = "REMINDME"

type (
	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string // postgres | pgx | memory
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		Name          string
		DisableTLS    bool
	}

	SMSConfig struct {
		GatewayURL string
		Username   string
		Password   string
		Sender     string
		Timeout    time.Duration
		RatePerSec int
	}

	QueueConfig struct {
		Driver            string // memory | redis
		RedisAddr         string
		RedisPassword     string
		RedisDB           int
		Key               string
		Workers           int
		Buffer            int
		VisibilityTimeout time.Duration
		ReapInterval      time.Duration
	}

	SchedulingConfig struct {
		Timezone              string
		MaxCoursesPerLecturer int
	}

	Config struct {
		Debug            bool
		TestMode         bool
		AppName          string
		Env              string
		Build            string
		SecretKey        string
		RollbarToken     string
		SendgridAPIKey   string
		FrontendBaseURL  string
		defaultFromEmail string

		PasswordResetTimeout time.Duration

		Server     ServerConfig
		Database   DatabaseConfig
		SMS        SMSConfig
		Queue      QueueConfig
		Scheduling SchedulingConfig
	}
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", true)
	v.SetDefault("test_mode", false)
	v.SetDefault("app_name", "RemindMe")
	v.SetDefault("build", "dev")
	v.SetDefault("secret_key", "kx0w!f8^m2q$hx7+za_1yb(9c@u3r%t6&dp4e)sg5jnvoi=l")
	v.SetDefault("rollbar_token", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("default_from_email", "RemindMe <noreply@localhost>")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("password_reset_timeout", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debug_host", "0.0.0.0:4000")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("server.jwt_refresh_expiration_delta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.user", "remindme")
	v.SetDefault("database.password", "remindme")
	v.SetDefault("database.admin_user", "postgres")
	v.SetDefault("database.admin_password", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "remindme")
	v.SetDefault("database.disable_tls", true)

	v.SetDefault("sms.gateway_url", "https://smsclone.com/api/sms/sendsms")
	v.SetDefault("sms.username", "")
	v.SetDefault("sms.password", "")
	v.SetDefault("sms.sender", "REMINDME")
	v.SetDefault("sms.timeout", 10*time.Second)
	v.SetDefault("sms.rate_per_sec", 5)

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_password", "")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.key", "remindme:notifications")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.buffer", 256)
	v.SetDefault("queue.visibility_timeout", 5*time.Minute)
	v.SetDefault("queue.reap_interval", time.Minute)

	v.SetDefault("scheduling.timezone", "UTC")
	v.SetDefault("scheduling.max_courses_per_lecturer", 5)
}

// NewConfig loads the app configuration from defaults, the optional `config/.env.<env>` file
// and REMINDME_* environment variables (in increasing order of precedence).
func NewConfig() *Config {
	v := viper.New()
	v.SetTypeByDefaultValue(true)
	setDefaults(v)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("test_mode", true)
	}
	loadDotEnv(env)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		AppName:          v.GetString("app_name"),
		Env:              env,
		Build:            v.GetString("build"),
		SecretKey:        v.GetString("secret_key"),
		RollbarToken:     v.GetString("rollbar_token"),
		SendgridAPIKey:   v.GetString("sendgrid_api_key"),
		FrontendBaseURL:  v.GetString("frontend_base_url"),
		defaultFromEmail: v.GetString("default_from_email"),

		PasswordResetTimeout: v.GetDuration("password_reset_timeout"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debug_host"),
			ShutdownTimeout:           v.GetDuration("server.shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("server.jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwt_refresh_expiration_delta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.admin_user"),
			AdminPassword: v.GetString("database.admin_password"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			DisableTLS:    v.GetBool("database.disable_tls"),
		},
		SMS: SMSConfig{
			GatewayURL: v.GetString("sms.gateway_url"),
			Username:   v.GetString("sms.username"),
			Password:   v.GetString("sms.password"),
			Sender:     v.GetString("sms.sender"),
			Timeout:    v.GetDuration("sms.timeout"),
			RatePerSec: v.GetInt("sms.rate_per_sec"),
		},
		Queue: QueueConfig{
			Driver:            v.GetString("queue.driver"),
			RedisAddr:         v.GetString("queue.redis_addr"),
			RedisPassword:     v.GetString("queue.redis_password"),
			RedisDB:           v.GetInt("queue.redis_db"),
			Key:               v.GetString("queue.key"),
			Workers:           v.GetInt("queue.workers"),
			Buffer:            v.GetInt("queue.buffer"),
			VisibilityTimeout: v.GetDuration("queue.visibility_timeout"),
			ReapInterval:      v.GetDuration("queue.reap_interval"),
		},
		Scheduling: SchedulingConfig{
			Timezone:              v.GetString("scheduling.timezone"),
			MaxCoursesPerLecturer: v.GetInt("scheduling.max_courses_per_lecturer"),
		},
	}
}

// loadDotEnv loads `config/.env.<env>` if it exists (ignored if it does not).
func loadDotEnv(env string) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
}

func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

// Location returns the timezone in which "today" is evaluated for schedule dates.
func (c SchedulingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewTestConfig returns the defaults with test mode on and debug output off.
func NewTestConfig() *Config {
	conf := NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.Database.Engine = "memory"
	conf.Queue.Driver = "memory"
	return conf
}
