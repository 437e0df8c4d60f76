// export_test.go exports private functions for white-box testing.
package logger

// Exported aliases for the private error formatting helpers.
var (
	CollectErrorEntriesExported = collectErrorEntries
	FormatErrorEntriesExported  = formatErrorEntries
)
