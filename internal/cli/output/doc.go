// Package output renders corslight-cli results as a table, JSON or YAML.
//
// Formatters accept plain structs, slices and maps. json.RawMessage fields
// are rendered as compact JSON text in tables and decoded before YAML
// encoding, so stored values read the same in every format.
package output
