// Package constants provides shared constants used throughout the entsync codebase.
// This includes matching thresholds, tree field names, file permissions and
// configuration defaults that should be consistent across the application.
package constants

// Matching threshold constants
const (
	// TextFloor is the text similarity below which two texts count as unrelated
	TextFloor = 0.1

	// PassOneThreshold is the minimum structural score for pairing tree nodes
	// at the same index
	PassOneThreshold = 0.5

	// PassTwoThreshold is the minimum structural score for pairing leftover
	// tree nodes anywhere in the list
	PassTwoThreshold = 0.3
)

// Structural score weights for tree node matching
const (
	// TypeWeight weighs agreement of the node type tags
	TypeWeight = 0.2

	// ContentWeight weighs the edit similarity of the node content
	ContentWeight = 0.5

	// ChildrenWeight weighs the ratio of child counts
	ChildrenWeight = 0.3
)

// Tree node field names
const (
	// ChildrenKey is the ordered child block relation of a tree node
	ChildrenKey = "children"

	// DataKey is the unordered query result relation of a tree node
	DataKey = "data"

	// QueryKey holds the query predicate a node projects its data from
	QueryKey = "query"
)

// ContentKeys are the fields tried, in order, as a tree node's content.
var ContentKeys = []string{"title", "text", "query"}

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Concurrency limits
const (
	// MaxConcurrentDiffs is the maximum number of file pairs diffed at once
	MaxConcurrentDiffs = 8
)

// Configuration constants
const (
	// AppName is the binary and config directory name
	AppName = "entsync"

	// EnvPrefix prefixes every environment variable read by the CLI
	EnvPrefix = "ENTSYNC"

	// ConfigFileName is the config file name without extension
	ConfigFileName = ".entsync"

	// ConfigFileType is the config file format
	ConfigFileType = "yaml"
)
