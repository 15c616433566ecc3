package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RiskProfile пороги decision engine. Загружается из YAML,
// профиль moderate соответствует значениям по умолчанию.
type RiskProfile struct {
	ProfileName string `yaml:"-"`

	// Базовый порог уверенности AI для входа
	ConfidenceFloor int `yaml:"confidence_floor"`
	// Повышенные пороги при высоком/экстремальном рыночном риске
	HighRiskConfidence    int `yaml:"high_risk_confidence"`
	ExtremeRiskConfidence int `yaml:"extreme_risk_confidence"`

	// Минимальное отношение прибыли к риску
	MinRiskReward float64 `yaml:"min_risk_reward"`

	// Загрузка маржи в процентах от equity: выше мягкого порога нужна
	// повышенная уверенность, выше жесткого вход запрещен
	MarginSoftCapPct  float64 `yaml:"margin_soft_cap_pct"`
	SoftCapConfidence int     `yaml:"soft_cap_confidence"`
	MarginHardCapPct  float64 `yaml:"margin_hard_cap_pct"`

	// Условия разворота против открытой позиции
	ReversalConfidence int `yaml:"reversal_confidence"`
	ReversalConfluence int `yaml:"reversal_confluence"`
}

// DefaultProfile возвращает профиль moderate
func DefaultProfile() RiskProfile {
	return RiskProfile{
		ProfileName:           "moderate",
		ConfidenceFloor:       6,
		HighRiskConfidence:    8,
		ExtremeRiskConfidence: 9,
		MinRiskReward:         1.5,
		MarginSoftCapPct:      60,
		SoftCapConfidence:     8,
		MarginHardCapPct:      80,
		ReversalConfidence:    8,
		ReversalConfluence:    3,
	}
}

// LoadProfile загружает профиль риска из YAML-файла.
// Пустое имя профиля означает moderate.
func LoadProfile(path, name string) (RiskProfile, error) {
	if name == "" {
		name = "moderate"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RiskProfile{}, err
	}

	var config struct {
		RiskProfiles map[string]RiskProfile `yaml:"risk_profiles"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return RiskProfile{}, err
	}

	profile, ok := config.RiskProfiles[name]
	if !ok {
		return RiskProfile{}, fmt.Errorf("risk profile %s not found in %s", name, path)
	}

	profile.ProfileName = name
	return profile, nil
}
