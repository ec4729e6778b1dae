package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Payment  Payment  `yaml:"payment"`
	SMTP     SMTP     `yaml:"smtp"`
	Checkout Checkout `yaml:"checkout"`
	Logger   Logger   `yaml:"logger"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL string `yaml:"url" env:"DB_URL"`
}

type Redis struct {
	Addr string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
}

type Payment struct {
	APIBase       string        `yaml:"api_base" env:"PAYMENT_API_BASE" env-default:"https://api.stripe.com"`
	SecretKey     string        `yaml:"secret_key" env:"PAYMENT_SECRET_KEY"`
	WebhookSecret string        `yaml:"webhook_secret" env:"PAYMENT_WEBHOOK_SECRET"`
	Timeout       time.Duration `yaml:"timeout" env:"PAYMENT_TIMEOUT" env-default:"10s"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     string `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	User     string `yaml:"user" env:"SMTP_USER"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
}

type Checkout struct {
	SuccessURL string `yaml:"success_url" env:"CHECKOUT_SUCCESS_URL" env-default:"http://localhost:3000/checkout/success"`
	CancelURL  string `yaml:"cancel_url" env:"CHECKOUT_CANCEL_URL" env-default:"http://localhost:3000/checkout/cancel"`
}

type Logger struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/local.yaml"
	}

	var cfg Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// No config file in containers; env vars only.
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("error reading config from env: %v", err)
		}
		return &cfg
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("error reading config: %v", err)
	}

	return &cfg
}
