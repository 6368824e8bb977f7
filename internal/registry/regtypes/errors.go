package regtypes

import (
	"fmt"

	"github.com/google/uuid"
)

// StatusClass is the RPC status class a RegistryError maps to. C7 is the
// single place that turns a StatusClass into a transport-specific code
// (spec §4.1/§7 — "the RPC surface is the only place that translates").
type StatusClass int

const (
	StatusInternal StatusClass = iota
	StatusNotFound
	StatusInvalidArgument
)

// RegistryError is implemented by every member of the closed error
// taxonomy in spec.md §4.1. Each variant below is one of those members.
type RegistryError interface {
	error
	StatusClass() StatusClass
}

// NoSchemaWithIDError — lookup miss.
type NoSchemaWithIDError struct {
	ID uuid.UUID
}

func (e *NoSchemaWithIDError) Error() string {
	return fmt.Sprintf("no schema with id %s", e.ID)
}
func (e *NoSchemaWithIDError) StatusClass() StatusClass { return StatusNotFound }

// InvalidSchemaTypeError — unknown type discriminator.
type InvalidSchemaTypeError struct {
	Value string
}

func (e *InvalidSchemaTypeError) Error() string {
	return fmt.Sprintf("invalid schema type %q", e.Value)
}
func (e *InvalidSchemaTypeError) StatusClass() StatusClass { return StatusInvalidArgument }

// InvalidVersionError — malformed semver on read.
type InvalidVersionError struct {
	Value string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid version %q", e.Value)
}
func (e *InvalidVersionError) StatusClass() StatusClass { return StatusInvalidArgument }

// NoVersionMatchesRequirementError — range matched nothing.
type NoVersionMatchesRequirementError struct {
	SchemaID    uuid.UUID
	Requirement string
}

func (e *NoVersionMatchesRequirementError) Error() string {
	return fmt.Sprintf("no version of schema %s matches requirement %q", e.SchemaID, e.Requirement)
}
func (e *NoVersionMatchesRequirementError) StatusClass() StatusClass { return StatusInvalidArgument }

// NewVersionMustBeGreatestError — violates I4.
type NewVersionMustBeGreatestError struct {
	SchemaID   uuid.UUID
	MaxVersion SemVer
}

func (e *NewVersionMustBeGreatestError) Error() string {
	return fmt.Sprintf("new version of schema %s must be greater than current max %s", e.SchemaID, e.MaxVersion)
}
func (e *NewVersionMustBeGreatestError) StatusClass() StatusClass { return StatusInvalidArgument }

// InvalidDataError — document fails schema validation.
type InvalidDataError struct {
	Errors []string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid data: %v", e.Errors)
}
func (e *InvalidDataError) StatusClass() StatusClass { return StatusInvalidArgument }

// InvalidJSONSchemaError — definition fails to compile, or a composition
// cycle was detected.
type InvalidJSONSchemaError struct {
	Reason string
}

func (e *InvalidJSONSchemaError) Error() string {
	return fmt.Sprintf("invalid json schema: %s", e.Reason)
}
func (e *InvalidJSONSchemaError) StatusClass() StatusClass { return StatusInvalidArgument }

// ConnectionError — storage layer could not be reached.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection error: %v", e.Cause) }
func (e *ConnectionError) Unwrap() error { return e.Cause }
func (e *ConnectionError) StatusClass() StatusClass { return StatusInternal }

// DBError — any other storage fault.
type DBError struct {
	Cause error
}

func (e *DBError) Error() string { return fmt.Sprintf("db error: %v", e.Cause) }
func (e *DBError) Unwrap() error { return e.Cause }
func (e *DBError) StatusClass() StatusClass { return StatusInternal }

// NotificationError — publishing or the listener connection failed.
type NotificationError struct {
	Cause error
}

func (e *NotificationError) Error() string { return fmt.Sprintf("notification error: %v", e.Cause) }
func (e *NotificationError) Unwrap() error { return e.Cause }
func (e *NotificationError) StatusClass() StatusClass { return StatusInternal }

// MalformedNotificationError — a watch payload failed to parse into a
// Schema. Forwarded as an in-stream item, not fatal to the stream
// (spec §4.4/§7).
type MalformedNotificationError struct {
	Payload string
	Cause   error
}

func (e *MalformedNotificationError) Error() string {
	return fmt.Sprintf("malformed notification: %v (payload=%q)", e.Cause, e.Payload)
}
func (e *MalformedNotificationError) Unwrap() error          { return e.Cause }
func (e *MalformedNotificationError) StatusClass() StatusClass { return StatusInternal }
