package config

import (
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации worldprobe
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Probe   ProbeConfig   `yaml:"probe"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

type WorldConfig struct {
	Path string `yaml:"path"`
}

type ProbeConfig struct {
	Workers    int `yaml:"workers"`
	FlushEvery int `yaml:"flush_every_chunks"`
	MaxHeight  int `yaml:"max_height"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// GetPath возвращает путь к миру: config -> env -> "world"
func (w *WorldConfig) GetPath() string {
	return getStringWithEnvFallback(w.Path, "WORLDCACHE_WORLD", "world")
}

// GetWorkers возвращает число рабочих потоков, по умолчанию по числу CPU
func (p *ProbeConfig) GetWorkers() int {
	return getIntWithEnvFallback(p.Workers, "WORLDCACHE_WORKERS", runtime.NumCPU())
}

// GetFlushEvery возвращает, через сколько чанков сбрасывать метрики
func (p *ProbeConfig) GetFlushEvery() int {
	return getIntWithEnvFallback(p.FlushEvery, "WORLDCACHE_FLUSH_EVERY", 64)
}

// GetMaxHeight возвращает высоту, с которой начинается поиск верхнего блока
func (p *ProbeConfig) GetMaxHeight() int {
	return getIntWithEnvFallback(p.MaxHeight, "WORLDCACHE_MAX_HEIGHT", 255)
}

// GetAddr возвращает адрес Prometheus эндпоинта; пустой адрес отключает сервер
func (m *MetricsConfig) GetAddr() string {
	return getStringWithEnvFallback(m.Addr, "WORLDCACHE_METRICS_ADDR", "")
}

// GetLevel возвращает уровень логирования
func (l *LoggingConfig) GetLevel() string {
	return getStringWithEnvFallback(l.Level, "WORLDCACHE_LOG_LEVEL", "info")
}

// getIntWithEnvFallback возвращает значение с приоритетом: config -> env -> default
func getIntWithEnvFallback(configValue int, envVar string, defaultValue int) int {
	if configValue > 0 {
		return configValue
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if v, err := strconv.Atoi(envVal); err == nil && v > 0 {
			return v
		}
	}

	return defaultValue
}

func getStringWithEnvFallback(configValue, envVar, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if envVal := os.Getenv(envVar); envVal != "" {
		return envVal
	}
	return defaultValue
}

// Load читает YAML файл конфигурации.
// Если path == "", пытается прочитать из ENV WORLDCACHE_CONFIG
// или возвращает пустую конфигурацию.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("WORLDCACHE_CONFIG")
		if path == "" {
			return &Config{}, nil // конфиг не задан, используются дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
