package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/GabrielNunesIT/s3-ingestor/internal/model"
)

// FileStore reads rules from a YAML file on every call:
//
//	rules:
//	  - pattern: '^incoming/.*\.csv$'
//	    target_table: events
//	    parser_config:
//	      delimiter: ";"
type FileStore struct {
	path string
}

type ruleFile struct {
	Rules []fileRule `yaml:"rules"`
}

type fileRule struct {
	Pattern      string `yaml:"pattern"`
	Target       string `yaml:"target_table"`
	ParserConfig any    `yaml:"parser_config"`
}

// NewFileStore creates a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Rules reads and decodes the rule file. Order follows the file.
func (s *FileStore) Rules(ctx context.Context) ([]model.RoutingRule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file %s: %w", s.path, err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: decoding rule file %s: %v", model.ErrConfig, s.path, err)
	}

	rules := make([]model.RoutingRule, 0, len(f.Rules))
	for i, fr := range f.Rules {
		rule := model.RoutingRule{Pattern: fr.Pattern, Target: fr.Target}
		if fr.ParserConfig != nil {
			raw, err := json.Marshal(fr.ParserConfig)
			if err != nil {
				return nil, fmt.Errorf("%w: rule %d: encoding parser_config: %v", model.ErrConfig, i, err)
			}
			rule.ParserConfig = raw
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
