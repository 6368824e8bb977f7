package handler

import (
	"encoding/json"
	"net/http"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// problem is an RFC7807-shaped error body, generalized from the teacher's
// domains/schema-repository/be/handler.buildProblem.
type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// toStatus is the single translation point from a RegistryError to an HTTP
// status code, per spec.md §4.1/§7 ("the RPC layer is the only place that
// translates to the wire status").
func toStatus(err error) (int, string) {
	var rerr regtypes.RegistryError
	if ok := asRegistryError(err, &rerr); ok {
		switch rerr.StatusClass() {
		case regtypes.StatusNotFound:
			return http.StatusNotFound, "not-found"
		case regtypes.StatusInvalidArgument:
			return http.StatusBadRequest, "invalid-argument"
		default:
			return http.StatusInternalServerError, "internal"
		}
	}
	return http.StatusInternalServerError, "internal"
}

func asRegistryError(err error, target *regtypes.RegistryError) bool {
	for err != nil {
		if rerr, ok := err.(regtypes.RegistryError); ok {
			*target = rerr
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func writeProblem(w http.ResponseWriter, err error) {
	status, title := toStatus(err)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem{
		Type:   "about:blank",
		Title:  title,
		Status: status,
		Detail: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
