// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/magiconair/properties"
	"gopkg.in/yaml.v3"
)

// bootstrapKeys are the property names checked, in order, when extracting
// the broker list from a client config file.
var bootstrapKeys = []string{
	"bootstrap.servers",
	"bootstrap_servers",
	"bootstrapServers",
	"broker.list",
	"metadata.broker.list",
}

// ClientProperties holds broker client settings parsed from a Java
// properties or YAML file.
type ClientProperties map[string]string

// LoadClientProperties parses a client config file. Files ending in .yaml or
// .yml are parsed as YAML with scalar top-level values; everything else is
// treated as Java properties.
func LoadClientProperties(path string) (ClientProperties, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return loadYAMLProperties(path)
	}

	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("parse client properties: %w", err)
	}
	return ClientProperties(p.Map()), nil
}

func loadYAMLProperties(path string) (ClientProperties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}

	props := make(ClientProperties, len(raw))
	for k, v := range raw {
		props[k] = fmt.Sprint(v)
	}
	return props, nil
}

// BootstrapServers extracts the broker list, checking the common property
// name variants.
func (p ClientProperties) BootstrapServers() (string, error) {
	for _, key := range bootstrapKeys {
		if v, ok := p[key]; ok && v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("could not find bootstrap servers in client config")
}
