// Package main provides the entry point for the carpart CLI.
//
// carpart walks a parts catalog's vehicle hierarchy, extracts part
// listings from rendered application pages, and exports a deduplicated
// parts catalog together with a part-to-vehicle compatibility index.
//
// Usage:
//
//	carpart init
//	carpart scrape --check-changes
//	carpart status --runs 5
//
// See --help for all available options.
package main

// main is the entry point for carpart.
func main() {
	Execute()
}
