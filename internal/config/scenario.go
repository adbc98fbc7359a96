package config

import (
	"fmt"
	"sort"
	"time"
)

// Scenario overrides parts of the run for one named target.
// Zero values fall back to the file defaults and then to the global config.
type Scenario struct {
	// URL is the page to verify.
	URL string `yaml:"url,omitempty"`

	// Audio is the file attached to the file input.
	Audio string `yaml:"audio,omitempty"`

	// OutputDir is where this scenario's screenshots are written.
	OutputDir string `yaml:"outputDir,omitempty"`

	// CompletionText overrides the completion marker.
	CompletionText string `yaml:"completionText,omitempty"`

	// CompletionTimeout overrides the completion wait, e.g. "90s".
	CompletionTimeout time.Duration `yaml:"completionTimeout,omitempty"`

	// Driver overrides the browser driver.
	Driver string `yaml:"driver,omitempty"`
}

// File represents the structure of the .uiprobe configuration file.
type File struct {
	// Defaults is applied to every scenario and to runs without a scenario.
	Defaults Scenario `yaml:"defaults,omitempty"`

	// Scenarios maps scenario names to their overrides.
	Scenarios map[string]Scenario `yaml:"scenarios,omitempty"`
}

// GetScenario returns the named scenario merged over the defaults.
// An empty name returns the defaults.
func (cf *File) GetScenario(name string) (Scenario, error) {
	result := cf.Defaults
	if name == "" {
		return result, nil
	}

	s, ok := cf.Scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}

	if s.URL != "" {
		result.URL = s.URL
	}
	if s.Audio != "" {
		result.Audio = s.Audio
	}
	if s.OutputDir != "" {
		result.OutputDir = s.OutputDir
	}
	if s.CompletionText != "" {
		result.CompletionText = s.CompletionText
	}
	if s.CompletionTimeout != 0 {
		result.CompletionTimeout = s.CompletionTimeout
	}
	if s.Driver != "" {
		result.Driver = s.Driver
	}

	return result, nil
}

// ScenarioNames returns the scenario names in sorted order.
func (cf *File) ScenarioNames() []string {
	names := make([]string, 0, len(cf.Scenarios))
	for name := range cf.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
