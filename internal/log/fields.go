// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldJobID    = "job_id"
	FieldPresetID = "preset_id"
	FieldTraceID  = "trace_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPID       = "pid"
	FieldExitCode  = "exit_code"
	FieldSignal    = "signal"
	FieldCode      = "code"

	// Media / stream fields
	FieldCodec     = "codec"
	FieldEncoder   = "encoder"
	FieldContainer = "container"
	FieldTier      = "tier"
	FieldAction    = "action"
	FieldFPS       = "fps"
	FieldSpeed     = "speed"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Scheduler fields
	FieldActive      = "active"
	FieldQueued      = "queued"
	FieldConcurrency = "concurrency"
	FieldExclusive   = "exclusive"

	// Path fields
	FieldPath       = "path"
	FieldSourcePath = "source_path"
	FieldFinalPath  = "final_path"
	FieldTempPath   = "temp_path"
	FieldBinary     = "binary"
)
