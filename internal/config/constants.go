package config

import "time"

// Application constants
const (
	// Application Info
	AppName    = "PBI Report Server Mirror"
	AppVersion = "1.0.0"

	// Environment prefix for envconfig
	EnvPrefix = "PBI"

	// Remote server
	DefaultBaseURL     = "https://pbi.secl.co.kr"
	DefaultHTTPTimeout = 30 * time.Second
	DefaultUserAgent   = "pbimirror/1.0"

	// Report server REST API v2.0
	APIRoot             = "/reports/api/v2.0"
	FolderByPathPattern = APIRoot + "/Folders(Path='%s')/CatalogItems"
	FolderByIDPattern   = APIRoot + "/Folders(%s)/CatalogItems"
	ContentPattern      = APIRoot + "/CatalogItems(%s)/Content/$value"
	ListingValueKey     = "value"

	// Operator input
	InputDateLayout = "2006-01-02"

	// Storage kinds
	StorageKindFS = "fs"
	StorageKindS3 = "s3"

	// Summary formats
	SummaryFormatJSON = "json"
	SummaryFormatCSV  = "csv"
	SummaryFormatXLSX = "xlsx"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
	DefaultLogFile   = "logs/pbimirror.log"

	// Status server
	ServerShutdownTimeout = 5 * time.Second
)
