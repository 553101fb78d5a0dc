package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptOverrideConfig はprompts.yamlの構造を定義。
// デプロイ環境ごとにプロンプト本文を再ビルドなしで調整するための仕組みです。
type PromptOverrideConfig struct {
	Templates []struct {
		ID   string `yaml:"id"`
		Text string `yaml:"text"`
	} `yaml:"templates"`

	Metadata struct {
		Version     string `yaml:"version"`
		LastUpdated string `yaml:"last_updated"`
	} `yaml:"metadata"`
}

// LoadPromptOverrides はYAMLファイルからテンプレート上書き設定を読み込む。
// パスが空の場合は上書きなしとして空のマップを返します。
func LoadPromptOverrides(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("プロンプト設定ファイルの読み込みに失敗: %w", err)
	}

	var cfg PromptOverrideConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("YAMLのパースに失敗: %w", err)
	}

	overrides := make(map[string]string, len(cfg.Templates))
	for _, t := range cfg.Templates {
		if t.ID == "" {
			continue
		}
		overrides[t.ID] = t.Text
	}
	return overrides, nil
}
