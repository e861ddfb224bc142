// Package security scores planned commands against advisory risk rules.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/opsagent/assets"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/ports"
)

// Guardrail implements the SecurityService port. Its verdicts are reported to
// the client and never stop a command.
type Guardrail struct {
	patterns []compiledPattern
	source   string
}

type compiledPattern struct {
	re   *regexp.Regexp
	rule DangerPattern
}

// DangerPattern describes a regex-based guardrail rule.
type DangerPattern struct {
	Pattern string `yaml:"pattern"`
	Level   string `yaml:"level"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		DangerPatterns []DangerPattern `yaml:"danger_patterns"`
	} `yaml:"rules"`
}

// NewGuardrail loads rules from path, falling back to the embedded defaults
// when the file is absent or declares no patterns.
func NewGuardrail(path string) (*Guardrail, error) {
	rules, source, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	compiled := make([]compiledPattern, 0, len(rules.Rules.DangerPatterns))
	for _, pattern := range rules.Rules.DangerPatterns {
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", pattern.Pattern, err)
		}
		compiled = append(compiled, compiledPattern{re: re, rule: pattern})
	}
	return &Guardrail{patterns: compiled, source: source}, nil
}

// Evaluate implements ports.SecurityService.
func (g *Guardrail) Evaluate(command string) (domain.RiskAssessment, error) {
	if g == nil {
		return domain.RiskAssessment{}, errors.New("guardrail nil")
	}
	assessment := domain.RiskAssessment{Level: domain.RiskSafe}
	for _, pattern := range g.patterns {
		if !pattern.re.MatchString(command) {
			continue
		}
		level := parseRiskLevel(pattern.rule.Level)
		if moreSevere(level, assessment.Level) {
			assessment.Level = level
		}
		assessment.Reasons = append(assessment.Reasons, pattern.rule.Message)
		assessment.MatchedRules = append(assessment.MatchedRules, pattern.rule.Pattern)
	}
	return assessment, nil
}

// Rules returns the loaded rule count and where they came from.
func (g *Guardrail) Rules() (int, string) {
	return len(g.patterns), g.source
}

func loadRules(path string) (RulesFile, string, error) {
	var rules RulesFile
	source := "embedded"
	data := assets.DefaultGuardrailYAML
	if path != "" {
		resolved := expandPath(path)
		fileData, err := os.ReadFile(resolved)
		switch {
		case err == nil:
			data = fileData
			source = resolved
		case !os.IsNotExist(err):
			return RulesFile{}, "", fmt.Errorf("read guardrail rules: %w", err)
		}
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, "", fmt.Errorf("parse guardrail rules: %w", err)
	}
	if len(rules.Rules.DangerPatterns) == 0 && source != "embedded" {
		if err := yaml.Unmarshal(assets.DefaultGuardrailYAML, &rules); err != nil {
			return RulesFile{}, "", err
		}
		source = "embedded"
	}
	return rules, source, nil
}

func parseRiskLevel(value string) domain.RiskLevel {
	switch strings.ToLower(value) {
	case "low":
		return domain.RiskLow
	case "medium":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "critical":
		return domain.RiskCritical
	default:
		return domain.RiskSafe
	}
}

func moreSevere(next domain.RiskLevel, current domain.RiskLevel) bool {
	order := map[domain.RiskLevel]int{
		domain.RiskSafe:     0,
		domain.RiskLow:      1,
		domain.RiskMedium:   2,
		domain.RiskHigh:     3,
		domain.RiskCritical: 4,
	}
	return order[next] > order[current]
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Join(filesystem.UserHomeDir(), path)
}

var _ ports.SecurityService = (*Guardrail)(nil)
