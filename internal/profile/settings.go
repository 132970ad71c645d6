package profile

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAnomalyRate доля аномальных значений в классе anomaly
const DefaultAnomalyRate = 0.2

// Settings переопределения профиля нагрузки, обычно из YAML файла.
// Нулевые значения оставляют значения по умолчанию; AnomalyRate nil означает
// DefaultAnomalyRate, явный 0 отключает аномальные значения.
type Settings struct {
	Normal      Normal                   `yaml:"normal"`
	Anomaly     Normal                   `yaml:"anomaly"`
	AnomalyRate *float64                 `yaml:"anomaly_rate"`
	Classes     map[string]ClassSettings `yaml:"classes"`
}

// ClassSettings переопределения одного класса
type ClassSettings struct {
	Pacing   time.Duration  `yaml:"pacing"`
	PoolSize int            `yaml:"pool_size"`
	Weights  map[string]int `yaml:"weights"`
}

// LoadSettings читает YAML файл профиля
func LoadSettings(path string) (Settings, error) {
	var s Settings
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("failed to read profile file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	return s, s.validate()
}

func (s Settings) validate() error {
	if s.Normal.StdDev < 0 || s.Anomaly.StdDev < 0 {
		return fmt.Errorf("stddev must not be negative")
	}
	if s.AnomalyRate != nil && (*s.AnomalyRate < 0 || *s.AnomalyRate > 1) {
		return fmt.Errorf("anomaly_rate must be within [0, 1], got %g", *s.AnomalyRate)
	}
	for name := range s.Classes {
		if _, ok := builders[name]; !ok {
			return fmt.Errorf("profile file: unknown class %q", name)
		}
	}
	return nil
}

func (s Settings) withDefaults() Settings {
	if s.Normal == (Normal{}) {
		s.Normal = DefaultNormal
	}
	if s.Anomaly == (Normal{}) {
		s.Anomaly = DefaultAnomaly
	}
	if s.AnomalyRate == nil {
		rate := DefaultAnomalyRate
		s.AnomalyRate = &rate
	}
	return s
}

func (cs ClassSettings) apply(c *Class) error {
	if cs.Pacing > 0 {
		c.Pacing = cs.Pacing
	}
	if cs.PoolSize > 0 {
		c.PoolSize = cs.PoolSize
	}
	for name, weight := range cs.Weights {
		found := false
		for i := range c.Tasks {
			if c.Tasks[i].Name == name {
				c.Tasks[i].Weight = weight
				found = true
			}
		}
		if !found {
			return fmt.Errorf("class %s has no task %q", c.Name, name)
		}
	}
	return nil
}
