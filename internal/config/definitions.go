package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// definitions mirrors the project-level definitions.yaml shared with the
// drought pipeline, so the metric path keys keep their drought_ prefix. Only
// the keys this service understands are decoded.
type definitions struct {
	Dataset             string  `yaml:"dataset"`
	Region              string  `yaml:"region"`
	StartYear           int     `yaml:"start_year"`
	EndYear             int     `yaml:"end_year"`
	Periodic            bool    `yaml:"periodic_bool"`
	MinimumArea         float64 `yaml:"minimum_area_threshold"`
	ClustersPartialPath string  `yaml:"clusters_partial_path"`
	MetricPath          string  `yaml:"drought_metric_path"`
	MetricFileName      string  `yaml:"drought_metric_file_name"`
	LatVar              string  `yaml:"lat_var"`
	LonVar              string  `yaml:"lon_var"`
}

func (d definitions) metricPath() string {
	if d.MetricFileName == "" {
		return ""
	}
	return d.MetricPath + d.MetricFileName
}

func loadDefinitions(path string) (definitions, error) {
	var d definitions
	if path == "" {
		return d, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return d, fmt.Errorf("read DEFINITIONS_FILE: %w", err)
	}
	if err := yaml.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("parse DEFINITIONS_FILE %s: %w", path, err)
	}
	return d, nil
}
