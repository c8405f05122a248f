package ir

// Version constants for the canonical encodings and the engine.
const (
	// EncodingVersion is the version of Term.Key and MarshalCanonical output.
	// Stored keys and golden files are only comparable within one version.
	EncodingVersion = "1"

	// EngineVersion is the quadmatch engine version.
	EngineVersion = "0.1.0"
)
