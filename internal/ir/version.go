package ir

// Version constants for the IR schema and engine.
const (
	// IRVersion is the program schema version stored with each program.
	IRVersion = "1"

	// EngineVersion is the hlolower engine version.
	EngineVersion = "0.1.0"
)
