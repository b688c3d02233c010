package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by planner and runner spans.
const (
	JobIDKey     = "job.id"
	JobPresetKey = "job.preset"
	JobTierKey   = "job.tier"

	SourceContainerKey  = "source.container"
	SourceVideoCodecKey = "source.video_codec"
	SourceAudioCodecKey = "source.audio_codec"

	DecisionRemuxOnlyKey = "decision.remux_only"
	DecisionExclusiveKey = "decision.exclusive"
	DecisionWarningsKey  = "decision.warnings"
	DecisionTierKey      = "decision.tier"

	ProcessPIDKey       = "process.pid"
	ProcessExitCodeKey  = "process.exit_code"
	ProcessCancelledKey = "process.cancelled"
	ProcessResultKey    = "process.result"

	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// JobAttributes identifies the job a span belongs to.
func JobAttributes(id, presetID, tier string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(JobIDKey, id),
		attribute.String(JobPresetKey, presetID),
		attribute.String(JobTierKey, tier),
	}
}

// SourceAttributes describes the probed source.
func SourceAttributes(container, videoCodec, audioCodec string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(SourceContainerKey, container),
		attribute.String(SourceVideoCodecKey, videoCodec),
		attribute.String(SourceAudioCodecKey, audioCodec),
	}
}

// DecisionAttributes summarizes a planner decision.
func DecisionAttributes(remuxOnly, exclusive bool, warnings int, tier string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(DecisionRemuxOnlyKey, remuxOnly),
		attribute.Bool(DecisionExclusiveKey, exclusive),
		attribute.Int(DecisionWarningsKey, warnings),
		attribute.String(DecisionTierKey, tier),
	}
}

// ExitAttributes describes how an engine process ended.
func ExitAttributes(exitCode int, cancelled bool, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProcessExitCodeKey, exitCode),
		attribute.Bool(ProcessCancelledKey, cancelled),
		attribute.String(ProcessResultKey, result),
	}
}

// ErrorAttributes flags a span as failed with a machine-readable type.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// ProcessAttributes identifies a spawned engine process.
func ProcessAttributes(pid int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(ProcessPIDKey, pid),
	}
}
