// Package config provides configuration structures and utilities for carpart.
// It defines the run options for scraping the catalog, politeness and retry
// settings for the fetcher, persistence locations, and report preferences,
// plus the YAML site file describing endpoints and selector tables.
package config
