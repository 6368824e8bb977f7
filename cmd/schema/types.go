package main

import "encoding/json"

// Wire shapes mirror domains/schema-registry/be/handler's request/response
// bodies; the CLI is a client of that surface, not the store.

type schemaView struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	TopicOrQueue string `json:"topicOrQueue"`
	QueryAddress string `json:"queryAddress"`
}

type definitionView struct {
	Version    string          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

type schemaListResponse struct {
	Schemas []schemaView `json:"schemas"`
}

type versionsResponse struct {
	Versions []string `json:"versions"`
}

type addSchemaRequest struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	TopicOrQueue string          `json:"topicOrQueue"`
	QueryAddress string          `json:"queryAddress"`
	Definition   json.RawMessage `json:"definition"`
}

type addSchemaResponse struct {
	ID string `json:"id"`
}

type addVersionRequest struct {
	Version    string          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

type updateSchemaRequest struct {
	Name         *string `json:"name,omitempty"`
	Type         *string `json:"type,omitempty"`
	TopicOrQueue *string `json:"topicOrQueue,omitempty"`
	QueryAddress *string `json:"queryAddress,omitempty"`
}

type validateRequest struct {
	VersionReq string          `json:"versionReq,omitempty"`
	Value      json.RawMessage `json:"value"`
}

type validateResponse struct {
	Errors []string `json:"errors"`
}
