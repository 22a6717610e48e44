// FILE: lixenwraith/linelog/constant.go
package linelog

// Diagnostic level constants
const (
	LevelDebug int64 = -4
	LevelInfo  int64 = 0
	LevelWarn  int64 = 4
	LevelError int64 = 8
)

// Default logical log names
const (
	DefaultLineLogName      = "lines"
	DefaultKeystrokeLogName = "keystrokes"
)

// Storage
const (
	// Size multiplier for KB
	sizeMultiplier = 1000
	// Permissions for created log directories and files
	dirPerm  = 0755
	filePerm = 0644
	// Archive timestamp layout used on rotation and export
	archiveTimeLayout = "060102_150405"
)
