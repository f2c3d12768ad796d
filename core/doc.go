// Package core provides the value types shared by every Kaizen package:
//
//   - Entry and EntryKind (immutable trajectory facts)
//   - the JSON value model (Canonicalize, Clone, DecodeValue)
//   - CapabilityCall, AgentInfo and the InvokeResult sum type
//   - the typed Error and the closed ErrorCode set
//
// The package holds no behavior beyond validation and copying; sessions,
// dispatch and persistence live in their own packages.
package core
