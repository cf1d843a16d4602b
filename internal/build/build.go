// Package build provides build information that is linked into the application. Other
// packages within this project can use this information in logs etc..
package build

var (
	// Version is the build version of the binary (e.g. v0.1.0, v1.0.1, etc..).
	Version = "dev"

	// Commit is the git commit hash that the build was compiled from.
	Commit = "none"

	// Date is the date the binary was built.
	Date = "unknown"

	// ProjectName is used in telemetry resources and log fields.
	ProjectName = "resourcecatalog"

	// MinimumSupportedDatastoreSchemaRevision is the lowest goose revision the datastores accept as ready.
	MinimumSupportedDatastoreSchemaRevision int64 = 1
)
