// config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Stripe   StripeConfig
	NATS     NATSConfig
	Services ServicesConfig
	Lifecycle LifecycleConfig
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Name      string
	Env       string
	Port      int
	Debug     bool
	Timezone  string
	JWTSecret string
}

// DBConfig holds database configuration.
type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// StripeConfig holds payment gateway configuration.
type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	InternalKey    string // X-Internal-Service-Key, for internal webhook replay
}

// NATSConfig holds event bus configuration.
type NATSConfig struct {
	URL       string
	Namespace string
}

// ServiceEndpoint is a downstream collaborator's base URL plus the
// timeout applied to calls against it (§4.1/§7).
type ServiceEndpoint struct {
	BaseURL string
	Timeout time.Duration
}

// ServicesConfig holds the downstream collaborators' endpoints.
type ServicesConfig struct {
	Pricing     ServiceEndpoint
	Catalog     ServiceEndpoint
	Inventory   ServiceEndpoint
	Shipping    ServiceEndpoint
	Notification ServiceEndpoint

	// ShippingBypassMode, when true, skips live rate lookups and applies
	// flat-rate fallback rates (used in environments without a reachable
	// shipping provider).
	ShippingBypassMode bool
}

// LifecycleConfig holds the timing constants that drive scheduled
// transitions (§4.6/§5/§6).
type LifecycleConfig struct {
	CartExpiry                     time.Duration
	CheckoutExpiry                 time.Duration
	InventoryReservation           time.Duration
	PaymentTimeout                 time.Duration
	ReturnWindow                   time.Duration
	OrderAutoConfirm               time.Duration
	PaymentReconciliationWindow    time.Duration
}

// Load reads configuration from the environment (and an optional .env
// file at path), applying defaults and validating required fields.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, relying on process environment")
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_NAME", "ordercore")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("APP_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("JWT_SECRET", "")

	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_NAME", "ordercore")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")

	viper.SetDefault("STRIPE_SECRET_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("INTERNAL_SERVICE_KEY", "")

	viper.SetDefault("NATS_URL", "nats://localhost:4222")
	viper.SetDefault("NATS_NAMESPACE", "ordercore")

	viper.SetDefault("PRICING_SERVICE_URL", "http://localhost:9001")
	viper.SetDefault("CATALOG_SERVICE_URL", "http://localhost:9002")
	viper.SetDefault("INVENTORY_SERVICE_URL", "http://localhost:9003")
	viper.SetDefault("SHIPPING_SERVICE_URL", "http://localhost:9004")
	viper.SetDefault("NOTIFICATION_SERVICE_URL", "http://localhost:9005")
	viper.SetDefault("SERVICE_CALL_TIMEOUT_SECONDS", 5)
	viper.SetDefault("SHIPPING_BYPASS_MODE", false)

	viper.SetDefault("CART_EXPIRY_DAYS", 30)
	viper.SetDefault("CHECKOUT_EXPIRY_MINUTES", 30)
	viper.SetDefault("INVENTORY_RESERVATION_MINUTES", 30)
	viper.SetDefault("PAYMENT_TIMEOUT_MINUTES", 15)
	viper.SetDefault("RETURN_WINDOW_DAYS", 7)
	viper.SetDefault("ORDER_AUTO_CONFIRM_HOURS", 6)
	viper.SetDefault("PAYMENT_RECONCILIATION_WINDOW_HOURS", 48)

	if isRunningInDocker() {
		viper.SetDefault("DB_HOST", "postgres")
		viper.SetDefault("NATS_URL", "nats://nats:4222")
	}

	timeout := time.Duration(viper.GetInt("SERVICE_CALL_TIMEOUT_SECONDS")) * time.Second

	cfg := &Config{
		App: AppConfig{
			Name:      viper.GetString("APP_NAME"),
			Env:       viper.GetString("APP_ENV"),
			Port:      viper.GetInt("APP_PORT"),
			Debug:     viper.GetBool("APP_DEBUG"),
			Timezone:  viper.GetString("APP_TIMEZONE"),
			JWTSecret: viper.GetString("JWT_SECRET"),
		},
		DB: DBConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetInt("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			InternalKey:   viper.GetString("INTERNAL_SERVICE_KEY"),
		},
		NATS: NATSConfig{
			URL:       viper.GetString("NATS_URL"),
			Namespace: viper.GetString("NATS_NAMESPACE"),
		},
		Services: ServicesConfig{
			Pricing:      ServiceEndpoint{BaseURL: viper.GetString("PRICING_SERVICE_URL"), Timeout: timeout},
			Catalog:      ServiceEndpoint{BaseURL: viper.GetString("CATALOG_SERVICE_URL"), Timeout: timeout},
			Inventory:    ServiceEndpoint{BaseURL: viper.GetString("INVENTORY_SERVICE_URL"), Timeout: timeout},
			Shipping:     ServiceEndpoint{BaseURL: viper.GetString("SHIPPING_SERVICE_URL"), Timeout: timeout},
			Notification: ServiceEndpoint{BaseURL: viper.GetString("NOTIFICATION_SERVICE_URL"), Timeout: timeout},
			ShippingBypassMode: viper.GetBool("SHIPPING_BYPASS_MODE"),
		},
		Lifecycle: LifecycleConfig{
			CartExpiry:                  time.Duration(viper.GetInt("CART_EXPIRY_DAYS")) * 24 * time.Hour,
			CheckoutExpiry:              time.Duration(viper.GetInt("CHECKOUT_EXPIRY_MINUTES")) * time.Minute,
			InventoryReservation:        time.Duration(viper.GetInt("INVENTORY_RESERVATION_MINUTES")) * time.Minute,
			PaymentTimeout:              time.Duration(viper.GetInt("PAYMENT_TIMEOUT_MINUTES")) * time.Minute,
			ReturnWindow:                time.Duration(viper.GetInt("RETURN_WINDOW_DAYS")) * 24 * time.Hour,
			OrderAutoConfirm:            time.Duration(viper.GetInt("ORDER_AUTO_CONFIRM_HOURS")) * time.Hour,
			PaymentReconciliationWindow: time.Duration(viper.GetInt("PAYMENT_RECONCILIATION_WINDOW_HOURS")) * time.Hour,
		},
	}

	cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name, cfg.DB.SSLMode)

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.Name == "" || c.DB.User == "" {
		return fmt.Errorf("DB_HOST, DB_NAME and DB_USER are required")
	}
	if c.App.Env == "production" {
		if c.Stripe.SecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.Stripe.WebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
		}
		if c.App.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	return nil
}

func isRunningInDocker() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		return strings.Contains(string(data), "docker")
	}
	return false
}
