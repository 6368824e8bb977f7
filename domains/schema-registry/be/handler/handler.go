// Package handler wires the registry service onto an HTTP+JSON surface,
// one method per RPC in spec.md §4.7. The original system (CommonDataLayer)
// exposes this over gRPC/tonic; no protobuf/gRPC toolchain is available
// here, so the teacher's ambient HTTP+JSON+chi transport carries the RPC
// contract instead (documented in SPEC_FULL.md C7).
package handler

import (
	"bufio"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cdl-project/schema-registry/domains/schema-registry/be/service"
	"github.com/cdl-project/schema-registry/internal/registry/notify"
	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
	platformlogging "github.com/cdl-project/schema-registry/platform/go/logging"
)

// Handler holds the service dependency every route needs.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New returns a Handler ready to be mounted via Routes.
func New(svc service.Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Routes mounts every RPC except WatchAllSchemaUpdates onto r (spec.md
// §4.7). Callers should mount WatchRoute separately, outside any
// request-timeout middleware, since it is a long-lived stream.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/schemas", h.addSchema)
	r.Get("/schemas", h.getAllSchemas)
	r.Get("/schemas/with-definitions", h.getAllSchemasWithDefinitions)

	r.Post("/schemas/{id}/versions", h.addSchemaVersion)
	r.Patch("/schemas/{id}", h.updateSchema)
	r.Get("/schemas/{id}", h.getSchema)
	r.Get("/schemas/{id}/with-definitions", h.getSchemaWithDefinitions)
	r.Get("/schemas/{id}/definition", h.getSchemaDefinition)
	r.Get("/schemas/{id}/versions", h.getSchemaVersions)
	r.Post("/schemas/{id}/validate", h.validateValue)
}

// WatchRoute mounts WatchAllSchemaUpdates. Kept separate from Routes so the
// server can exclude it from request-timeout middleware (it is a
// long-lived stream, not a bounded request/response RPC).
func (h *Handler) WatchRoute(r chi.Router) {
	r.Get("/schemas/watch", h.watchAllSchemaUpdates)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeProblem(w, &regtypes.InvalidVersionError{Value: chi.URLParam(r, "id")})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) versionRequirement(r *http.Request) (regtypes.VersionRequirement, error) {
	raw := r.URL.Query().Get("version_req")
	if raw == "" {
		return regtypes.AnyVersionRequirement(), nil
	}
	return regtypes.ParseVersionRequirement(raw)
}

// addSchemaRequest mirrors RPC AddSchema's {metadata, definition} request.
type addSchemaRequest struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	TopicOrQueue string          `json:"topicOrQueue"`
	QueryAddress string          `json:"queryAddress"`
	Definition   json.RawMessage `json:"definition"`
}

func (h *Handler) addSchema(w http.ResponseWriter, r *http.Request) {
	var req addSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, &regtypes.InvalidSchemaTypeError{Value: err.Error()})
		return
	}

	schemaType, err := regtypes.ParseSchemaType(req.Type)
	if err != nil {
		writeProblem(w, err)
		return
	}

	id, err := h.svc.AddSchema(r.Context(), regtypes.NewSchema{
		Name: req.Name, Type: schemaType,
		TopicOrQueue: req.TopicOrQueue, QueryAddress: req.QueryAddress,
		Definition: req.Definition,
	})
	if err != nil {
		h.logErr(r, "add_schema", err)
		writeProblem(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		ID string `json:"id"`
	}{ID: id.String()})
}

// addSchemaVersionRequest mirrors RPC AddSchemaVersion's {version, definition}.
type addSchemaVersionRequest struct {
	Version    string          `json:"version"`
	Definition json.RawMessage `json:"definition"`
}

func (h *Handler) addSchemaVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req addSchemaVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, &regtypes.InvalidVersionError{Value: err.Error()})
		return
	}

	version, err := regtypes.ParseSemVer(req.Version)
	if err != nil {
		writeProblem(w, err)
		return
	}

	if err := h.svc.AddSchemaVersion(r.Context(), id, regtypes.NewSchemaDefinition{Version: version, Definition: req.Definition}); err != nil {
		h.logErr(r, "add_schema_version", err)
		writeProblem(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// updateSchemaRequest mirrors RPC UpdateSchema's {patch}.
type updateSchemaRequest struct {
	Name         *string `json:"name,omitempty"`
	Type         *string `json:"type,omitempty"`
	TopicOrQueue *string `json:"topicOrQueue,omitempty"`
	QueryAddress *string `json:"queryAddress,omitempty"`
}

func (h *Handler) updateSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req updateSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, &regtypes.InvalidSchemaTypeError{Value: err.Error()})
		return
	}

	patch := regtypes.SchemaUpdate{Name: req.Name, TopicOrQueue: req.TopicOrQueue, QueryAddress: req.QueryAddress}
	if req.Type != nil {
		t, err := regtypes.ParseSchemaType(*req.Type)
		if err != nil {
			writeProblem(w, err)
			return
		}
		patch.Type = &t
	}

	if err := h.svc.UpdateSchema(r.Context(), id, patch); err != nil {
		h.logErr(r, "update_schema", err)
		writeProblem(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	schema, err := h.svc.GetSchema(r.Context(), id)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schema)
}

func (h *Handler) getSchemaWithDefinitions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	result, err := h.svc.GetSchemaWithDefinitions(r.Context(), id)
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getSchemaDefinition(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	req, err := h.versionRequirement(r)
	if err != nil {
		writeProblem(w, err)
		return
	}

	def, err := h.svc.GetSchemaDefinition(r.Context(), regtypes.VersionedID{ID: id, Requirement: req})
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func (h *Handler) getSchemaVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	versions, err := h.svc.GetSchemaVersions(r.Context(), id)
	if err != nil {
		writeProblem(w, err)
		return
	}

	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	writeJSON(w, http.StatusOK, struct {
		Versions []string `json:"versions"`
	}{Versions: out})
}

func (h *Handler) getAllSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.svc.GetAllSchemas(r.Context())
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Schemas []regtypes.Schema `json:"schemas"`
	}{Schemas: schemas})
}

func (h *Handler) getAllSchemasWithDefinitions(w http.ResponseWriter, r *http.Request) {
	schemas, err := h.svc.GetAllSchemasWithDefinitions(r.Context())
	if err != nil {
		writeProblem(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Schemas []regtypes.SchemaWithDefinitions `json:"schemas"`
	}{Schemas: schemas})
}

// validateValueRequest mirrors RPC ValidateValue's {version_req?, value}.
type validateValueRequest struct {
	VersionReq string          `json:"versionReq,omitempty"`
	Value      json.RawMessage `json:"value"`
}

func (h *Handler) validateValue(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req validateValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, &regtypes.InvalidDataError{Errors: []string{err.Error()}})
		return
	}

	versionReq := regtypes.AnyVersionRequirement()
	if req.VersionReq != "" {
		parsed, err := regtypes.ParseVersionRequirement(req.VersionReq)
		if err != nil {
			writeProblem(w, err)
			return
		}
		versionReq = parsed
	}

	errs, err := h.svc.ValidateValue(r.Context(), id, versionReq, req.Value)
	if err != nil {
		writeProblem(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Errors []string `json:"errors"`
	}{Errors: errs})
}

// watchAllSchemaUpdates streams one JSON line per notification: a Schema on
// success, or {"error": "..."} for a malformed payload — the stream itself
// never closes because of a malformed item (spec §4.4).
func (h *Handler) watchAllSchemaUpdates(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, &regtypes.NotificationError{Cause: errNoFlusher{}})
		return
	}

	events, unsubscribe := h.svc.Subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-events:
			if !open {
				return
			}
			if err := h.encodeEvent(enc, ev); err != nil {
				return
			}
			if err := bw.Flush(); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) encodeEvent(enc *json.Encoder, ev notify.Event) error {
	if ev.Err != nil {
		return enc.Encode(struct {
			Error string `json:"error"`
		}{Error: ev.Err.Error()})
	}
	return enc.Encode(ev.Schema)
}

func (h *Handler) logErr(r *http.Request, op string, err error) {
	logger := platformlogging.FromRequest(r, h.logger)
	if logger == nil {
		return
	}
	status, _ := toStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error(op, zap.Error(err))
	} else {
		logger.Warn(op, zap.Error(err))
	}
}

type errNoFlusher struct{}

func (errNoFlusher) Error() string { return "response writer does not support flushing" }
