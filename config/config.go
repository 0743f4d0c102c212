package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Settings is the full configuration surface of the portal.
// It is built once at startup and passed by pointer to every component.
type Settings struct {
	Database DatabaseSettings `yaml:"database"`
	Port     string           `yaml:"port"`

	SecretKey                string `yaml:"secret_key"`
	Algorithm                string `yaml:"algorithm"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes"`

	TrainConfigURL       string `yaml:"train_config_url"`
	UpdateConfigURL      string `yaml:"update_config_url"`
	StartTrainingURL     string `yaml:"start_training_url"`
	ExternalPredictorAPI string `yaml:"external_predictor_api"`

	PredictTimeout  time.Duration `yaml:"predict_timeout"`
	ConfigTimeout   time.Duration `yaml:"config_timeout"`
	TrainingTimeout time.Duration `yaml:"training_timeout"`

	MinIO MinIOSettings `yaml:"minio"`

	Kubeconfig     string   `yaml:"kubeconfig"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	SeedAdmin      bool     `yaml:"seed_admin"`
}

// DatabaseSettings holds the postgres connection parameters
type DatabaseSettings struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// MinIOSettings configures the optional prediction image archive.
// When SecretNamespace is set, credentials are read from the "minio-secret" Secret in that namespace.
type MinIOSettings struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKey       string `yaml:"access_key"`
	SecretKey       string `yaml:"secret_key"`
	Bucket          string `yaml:"bucket"`
	UseSSL          bool   `yaml:"use_ssl"`
	SecretNamespace string `yaml:"secret_namespace"`
}

// Enabled reports whether image archiving is configured
func (m MinIOSettings) Enabled() bool {
	return m.Endpoint != "" || m.SecretNamespace != ""
}

// DefaultSettings returns the settings used when nothing overrides them
func DefaultSettings() *Settings {
	return &Settings{
		Database: DatabaseSettings{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "ai_app",
			SSLMode: "disable",
		},
		Port:                     "8000",
		SecretKey:                "supersecretkey",
		Algorithm:                "HS256",
		AccessTokenExpireMinutes: 30,
		TrainConfigURL:           "http://localhost:8001/mock-config",
		UpdateConfigURL:          "http://localhost:8001/mock-update-config",
		StartTrainingURL:         "http://localhost:8001/mock-start-train",
		ExternalPredictorAPI:     "http://localhost:8001/mock-predict",
		PredictTimeout:           60 * time.Second,
		ConfigTimeout:            10 * time.Second,
		TrainingTimeout:          30 * time.Second,
		MinIO: MinIOSettings{
			Bucket: "predictions",
		},
		AllowedOrigins: []string{"http://localhost:8000"},
		SeedAdmin:      true,
	}
}

// Load builds Settings from defaults, an optional YAML file and the environment, in that order.
// A .env file in the working directory is loaded into the environment first if present.
func Load(path string) (*Settings, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	s := DefaultSettings()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := s.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var firstErr error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", key, err)
				}
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", key, err)
				}
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := parseDuration(v)
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("invalid %s: %w", key, err)
				}
				return
			}
			*dst = d
		}
	}

	str("DATABASE_URL", &s.Database.URL)
	str("DB_HOST", &s.Database.Host)
	num("DB_PORT", &s.Database.Port)
	str("DB_USER", &s.Database.User)
	str("DB_PASSWORD", &s.Database.Password)
	str("DB_NAME", &s.Database.Name)
	str("DB_SSLMODE", &s.Database.SSLMode)

	str("PORT", &s.Port)
	str("SECRET_KEY", &s.SecretKey)
	str("ALGORITHM", &s.Algorithm)
	num("ACCESS_TOKEN_EXPIRE_MINUTES", &s.AccessTokenExpireMinutes)

	str("TRAIN_CONFIG_URL", &s.TrainConfigURL)
	str("UPDATE_CONFIG_URL", &s.UpdateConfigURL)
	str("START_TRAINING_URL", &s.StartTrainingURL)
	str("EXTERNAL_PREDICTOR_API", &s.ExternalPredictorAPI)

	duration("PREDICT_TIMEOUT", &s.PredictTimeout)
	duration("CONFIG_TIMEOUT", &s.ConfigTimeout)
	duration("TRAINING_TIMEOUT", &s.TrainingTimeout)

	str("MINIO_ENDPOINT", &s.MinIO.Endpoint)
	str("MINIO_ACCESS_KEY", &s.MinIO.AccessKey)
	str("MINIO_SECRET_KEY", &s.MinIO.SecretKey)
	str("MINIO_BUCKET", &s.MinIO.Bucket)
	boolean("MINIO_USE_SSL", &s.MinIO.UseSSL)
	str("MINIO_SECRET_NAMESPACE", &s.MinIO.SecretNamespace)

	str("KUBECONFIG", &s.Kubeconfig)
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		s.AllowedOrigins = splitList(v)
	}
	boolean("SEED_ADMIN", &s.SeedAdmin)

	return firstErr
}

// parseDuration accepts Go durations ("45s") and bare seconds ("45")
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DSN returns the postgres connection string
func (d DatabaseSettings) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Config holds the settings together with the clients built from them
type Config struct {
	Settings *Settings

	// Database
	DB *gorm.DB

	// Kubernetes client, only set when MinIO credentials come from a Secret
	K8sClient *kubernetes.Clientset
}

// New creates a new configuration instance
func New(settings *Settings) (*Config, error) {
	cfg := &Config{Settings: settings}

	if err := cfg.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if settings.MinIO.SecretNamespace != "" {
		if err := cfg.initK8sClient(); err != nil {
			cfg.Close()
			return nil, fmt.Errorf("failed to initialize Kubernetes client: %w", err)
		}
	}

	log.Println("Configuration initialized successfully")
	return cfg, nil
}

// initDatabase initializes the database connection with optimized settings
func (c *Config) initDatabase() error {
	db, err := gorm.Open(postgres.Open(c.Settings.Database.DSN()), &gorm.Config{
		PrepareStmt: true,
		// Every write is a single insert or single-row update
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database handle: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&User{}, &TrainingJob{}, &Prediction{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	c.DB = db
	log.Println("Database initialized successfully")
	return nil
}

// initK8sClient uses the kubeconfig when given, in-cluster config otherwise
func (c *Config) initK8sClient() error {
	var (
		restConfig *rest.Config
		err        error
	)
	if c.Settings.Kubeconfig != "" {
		restConfig, err = clientcmd.BuildConfigFromFlags("", c.Settings.Kubeconfig)
	} else {
		restConfig, err = rest.InClusterConfig()
	}
	if err != nil {
		return fmt.Errorf("failed to build Kubernetes config: %w", err)
	}

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return fmt.Errorf("failed to create Kubernetes clientset: %w", err)
	}
	c.K8sClient = client

	log.Println("Kubernetes client initialized successfully")
	return nil
}

// Close closes all connections
func (c *Config) Close() {
	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
