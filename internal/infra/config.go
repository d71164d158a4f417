package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xela07ax/mlserve-probe/internal/domain"
)

// Config — корневая структура конфигурации обоих инструментов (loadtest и monitor).
type Config struct {
	Target     TargetConfig     `mapstructure:"target"`
	Load       LoadSettings     `mapstructure:"load"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Records    RecordsConfig    `mapstructure:"records"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// TargetConfig описывает развернутый сервис предсказаний.
type TargetConfig struct {
	URL            string        `mapstructure:"url"`
	PredictPath    string        `mapstructure:"predict_path"`
	HealthPath     string        `mapstructure:"health_path"`
	InfoPath       string        `mapstructure:"info_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // таймаут одного запроса, не всего прогона
	GRPCHealthAddr string        `mapstructure:"grpc_health_addr"`
}

// Preset — параметры одного режима нагрузки (stress, quick).
type Preset struct {
	RPS         float64       `mapstructure:"rps"`
	Duration    time.Duration `mapstructure:"duration"`
	Concurrency int           `mapstructure:"concurrency"`
}

// LoadSettings содержит настройки генератора нагрузки.
type LoadSettings struct {
	Stress         Preset        `mapstructure:"stress"`
	Quick          Preset        `mapstructure:"quick"`
	Pacing         string        `mapstructure:"pacing"` // open-loop, token-bucket
	HealthAttempts uint          `mapstructure:"health_attempts"`
	HealthDelay    time.Duration `mapstructure:"health_delay"`
	PayloadFile    string        `mapstructure:"payload_file"`
	MetricsAddr    string        `mapstructure:"metrics_addr"`
	ValidateBody   bool          `mapstructure:"validate_body"` // 2xx с невалидным телом считается HTTPError
}

// MonitorConfig содержит настройки репортера состояния и его коллабораторов.
type MonitorConfig struct {
	Window          time.Duration     `mapstructure:"window"`
	Service         string            `mapstructure:"service"`
	Cluster         string            `mapstructure:"cluster"`
	HealthProtocol  string            `mapstructure:"health_protocol"` // http, grpc
	PrometheusURL   string            `mapstructure:"prometheus_url"`
	Queries         map[string]string `mapstructure:"queries"`
	RedisAddr       string            `mapstructure:"redis_addr"`
	RedisPassword   string            `mapstructure:"redis_password"`
	RedisDB         int               `mapstructure:"redis_db"`
	RedisNamespace  string            `mapstructure:"redis_namespace"`
	Listen          string            `mapstructure:"listen"`
	RefreshInterval time.Duration     `mapstructure:"refresh_interval"`
	CallTimeout     time.Duration     `mapstructure:"collaborator_timeout"` // дедлайн одного вызова коллаборатора

	// Внешняя политика для коллабораторов: сам репортер не ретраит
	RetryAttempts   uint          `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// RecordsConfig описывает долговременное хранение результатов проб (PostgreSQL).
type RecordsConfig struct {
	DatabaseURL   string        `mapstructure:"database_url"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	BufferSize    int           `mapstructure:"buffer_size"`
}

// AuthConfig — подпись bearer-токенов для API, если сервис закрыт шлюзом.
// PublicKeyPath закрывает /status монитора проверкой тех же токенов.
type AuthConfig struct {
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	Issuer         string        `mapstructure:"issuer"`
	Subject        string        `mapstructure:"subject"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	PrivateKey     []byte
	PublicKey      []byte
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
	File   string `mapstructure:"file"`   // пусто — только stderr
}

// ThresholdsConfig — пороги оценки. Менять их можно только целиком через конфиг.
type ThresholdsConfig struct {
	Latency struct {
		Excellent  time.Duration `mapstructure:"excellent"`
		Good       time.Duration `mapstructure:"good"`
		Acceptable time.Duration `mapstructure:"acceptable"`
	} `mapstructure:"latency"`
	Success struct {
		Excellent float64 `mapstructure:"excellent"`
		Good      float64 `mapstructure:"good"`
	} `mapstructure:"success"`
}

// Названия запросов к коллаборатору метрик.
const (
	MetricCPU          = "cpu_utilization"
	MetricMemory       = "memory_utilization"
	MetricRequestCount = "request_count"
	MetricResponseTime = "avg_response_time"
)

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
// path — явный путь к файлу (флаг --config); пусто — ищем probe.yaml.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("probe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	// 2. ENV перекрывает файл: TARGET_URL=... перекроет target.url
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Дефолты
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("%w: error reading config file: %v", domain.ErrConfiguration, err)
		}
		// Файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unable to decode into struct: %v", domain.ErrConfiguration, err)
	}

	// 6. Ключ подписи: сначала PEM прямо в ENV (Docker/K8s), потом файл
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target.url", "http://localhost:8000")
	v.SetDefault("target.predict_path", "/predict")
	v.SetDefault("target.health_path", "/health")
	v.SetDefault("target.info_path", "/")
	v.SetDefault("target.request_timeout", 10*time.Second)
	v.SetDefault("target.grpc_health_addr", "")

	v.SetDefault("load.stress.rps", 300)
	v.SetDefault("load.stress.duration", 60*time.Second)
	v.SetDefault("load.stress.concurrency", 12)
	v.SetDefault("load.quick.rps", 10)
	v.SetDefault("load.quick.duration", 10*time.Second)
	v.SetDefault("load.quick.concurrency", 5)
	v.SetDefault("load.pacing", string(domain.PacingOpenLoop))
	v.SetDefault("load.health_attempts", 3)
	v.SetDefault("load.health_delay", 2*time.Second)
	v.SetDefault("load.payload_file", "")
	v.SetDefault("load.metrics_addr", "")
	v.SetDefault("load.validate_body", false)

	v.SetDefault("monitor.window", 5*time.Minute)
	v.SetDefault("monitor.service", "mlserve-api")
	v.SetDefault("monitor.cluster", "mlserve-cluster")
	v.SetDefault("monitor.health_protocol", "http")
	v.SetDefault("monitor.prometheus_url", "")
	v.SetDefault("monitor.queries", DefaultQueries())
	v.SetDefault("monitor.redis_addr", "")
	v.SetDefault("monitor.redis_password", "")
	v.SetDefault("monitor.redis_db", 0)
	v.SetDefault("monitor.redis_namespace", RedisNamespace)
	v.SetDefault("monitor.listen", ":9091")
	v.SetDefault("monitor.refresh_interval", 30*time.Second)
	v.SetDefault("monitor.collaborator_timeout", 10*time.Second)
	v.SetDefault("monitor.retry_attempts", 1)
	v.SetDefault("monitor.retry_delay", 500*time.Millisecond)
	v.SetDefault("monitor.breaker_failures", 5)
	v.SetDefault("monitor.breaker_timeout", 30*time.Second)

	v.SetDefault("records.database_url", "")
	v.SetDefault("records.batch_size", 100)
	v.SetDefault("records.flush_interval", 500*time.Millisecond)
	v.SetDefault("records.buffer_size", 10000)

	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.public_key_path", "")
	v.SetDefault("auth.issuer", "mlserve-probe")
	v.SetDefault("auth.subject", "loadtest")
	v.SetDefault("auth.token_ttl", 15*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.file", "")

	v.SetDefault("thresholds.latency.excellent", time.Second)
	v.SetDefault("thresholds.latency.good", 2*time.Second)
	v.SetDefault("thresholds.latency.acceptable", 5*time.Second)
	v.SetDefault("thresholds.success.excellent", 0.95)
	v.SetDefault("thresholds.success.good", 0.90)
}

// DefaultQueries — PromQL-шаблоны под метрики prometheus-fastapi-instrumentator и cAdvisor.
// $service и $window подставляются при запросе.
func DefaultQueries() map[string]string {
	return map[string]string{
		MetricCPU:          `avg(avg_over_time(container_cpu_utilization_ratio{service="$service"}[$window])) * 100`,
		MetricMemory:       `avg(avg_over_time(container_memory_utilization_ratio{service="$service"}[$window])) * 100`,
		MetricRequestCount: `sum(increase(http_requests_total{service="$service",handler="/predict"}[$window]))`,
		MetricResponseTime: `sum(rate(http_request_duration_seconds_sum{service="$service",handler="/predict"}[$window])) / sum(rate(http_request_duration_seconds_count{service="$service",handler="/predict"}[$window]))`,
	}
}

// ValidateTarget проверяет цель до любой сетевой активности.
func (c *Config) ValidateTarget() error {
	raw := strings.TrimSpace(c.Target.URL)
	if raw == "" {
		return fmt.Errorf("%w: target url is required", domain.ErrConfiguration)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: invalid target url %q", domain.ErrConfiguration, raw)
	}
	if c.Target.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be > 0", domain.ErrConfiguration)
	}
	return nil
}

// Endpoint склеивает базовый URL сервиса и путь эндпоинта.
func (t TargetConfig) Endpoint(path string) string {
	return strings.TrimRight(t.URL, "/") + "/" + strings.TrimLeft(path, "/")
}

// ServiceID — идентичность сервиса для коллабораторов масштабирования.
func (m MonitorConfig) ServiceID() domain.ServiceID {
	return domain.ServiceID{Cluster: m.Cluster, Service: m.Service}
}

// loadKeyResource — PEM из ENV или из файла по пути из конфига.
func loadKeyResource(path string, envDataKey string) []byte {
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
