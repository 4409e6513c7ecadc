// Package config loads and validates FieldGrid Core configuration.
//
// Configuration comes from three layers, later layers overriding earlier:
//
//  1. Hardcoded defaults (Default)
//  2. A YAML file (config.yaml)
//  3. Environment variables (FIELDGRID_SECTION_KEY)
//
// Secrets (the JWT secret, MQTT credentials, InfluxDB token) should be
// supplied via environment variables rather than committed to the YAML file.
package config
