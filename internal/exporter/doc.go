// Package exporter writes the machine-readable summary of a mirror run.
//
// Three formats are supported:
//
//	json  the full Summary, indented
//	csv   one row per processed file, UTF-8 BOM for Excel
//	xlsx  a "Summary" sheet with the counts and an "Outcomes" sheet with one row per file
package exporter
