package rule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"mqtt-action-runner/internal/logger"
)

// Loader handles loading rules from the filesystem
type Loader struct {
	logger *logger.Logger
}

// NewLoader creates a new rules loader
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{
		logger: log,
	}
}

// LoadFromDirectory loads all rules from a directory and its
// subdirectories. Every .json file holds an array of rules. Each rule is
// validated; any malformed rule refuses startup.
func (l *Loader) LoadFromDirectory(path string) ([]Rule, error) {
	var rules []Rule

	err := filepath.Walk(path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		l.logger.Debug("loading rule file", "path", path)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read rule file %s: %w", path, err)
		}

		var fileRules []Rule
		if err := json.Unmarshal(data, &fileRules); err != nil {
			return fmt.Errorf("failed to parse rule file %s: %w", path, err)
		}

		for i := range fileRules {
			if err := Validate(&fileRules[i]); err != nil {
				return fmt.Errorf("invalid rule in %s: %w", path, err)
			}
		}

		l.logger.Debug("loaded rules from file",
			"path", path,
			"count", len(fileRules))

		rules = append(rules, fileRules...)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	l.logger.Info("rules loaded",
		"totalRules", len(rules))

	return rules, nil
}
