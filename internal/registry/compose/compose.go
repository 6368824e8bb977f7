// Package compose inlines cross-schema $ref references into a
// self-contained JSON Schema before a definition is stored (spec.md §4.2).
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/cdl-project/schema-registry/internal/registry/regtypes"
)

// refPrefix is the scheme a remote (cross-schema) $ref must use to be
// resolved by the composer. Local "#/..." refs are left untouched.
const refPrefix = "cdl://"

// Resolver looks up the latest stored definition for a schema id. Composer
// calls it while holding the caller's transaction, so the referenced
// definition cannot disappear mid-compose (spec §4.2: "composition runs
// inside the same transaction").
type Resolver interface {
	LatestDefinition(ctx context.Context, id uuid.UUID) (json.RawMessage, error)
}

// Compose walks raw depth-first, replacing every cdl://<id>[/<pointer>] $ref
// with the resolved definition (or the sub-document at <pointer> within it),
// recursively. Cycles (a schema that transitively refs itself) fail with
// InvalidJSONSchemaError. Output is deterministic: map keys are sorted
// before the final marshal, so composing the same input against the same
// registry state always yields the same bytes (spec §4.2). A document with
// no remote $ref is returned as given, without re-marshalling, so its key
// order is the caller's.
func Compose(ctx context.Context, resolver Resolver, raw json.RawMessage) (json.RawMessage, error) {
	if !hasRemoteRef(raw) {
		// cheap pre-scan: no remote $ref anywhere in this document, skip
		// the full decode/walk/reserialize round-trip entirely.
		return raw, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("decode: %v", err)}
	}

	resolved, err := walk(ctx, resolver, doc, map[uuid.UUID]struct{}{})
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(orderedValue(resolved))
	if err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("encode: %v", err)}
	}
	return out, nil
}

// hasRemoteRef performs a cheap gjson-based scan for any "$ref" value that
// begins with the remote-ref scheme, without fully decoding the document.
func hasRemoteRef(raw json.RawMessage) bool {
	found := false
	var scan func(v gjson.Result)
	scan = func(v gjson.Result) {
		if found {
			return
		}
		if v.IsObject() {
			if ref := v.Get("$ref"); ref.Exists() && strings.HasPrefix(ref.String(), refPrefix) {
				found = true
				return
			}
			v.ForEach(func(_, val gjson.Result) bool {
				scan(val)
				return !found
			})
		} else if v.IsArray() {
			v.ForEach(func(_, val gjson.Result) bool {
				scan(val)
				return !found
			})
		}
	}
	scan(gjson.ParseBytes(raw))
	return found
}

func walk(ctx context.Context, resolver Resolver, node any, ancestors map[uuid.UUID]struct{}) (any, error) {
	switch v := node.(type) {
	case map[string]any:
		if refRaw, ok := v["$ref"]; ok {
			if refStr, ok := refRaw.(string); ok && strings.HasPrefix(refStr, refPrefix) {
				return resolveRef(ctx, resolver, refStr, ancestors)
			}
		}
		return walkObject(ctx, resolver, v, ancestors)
	case []any:
		return walkArray(ctx, resolver, v, ancestors)
	default:
		return node, nil
	}
}

// walkObject composes sibling fields concurrently, one errgroup goroutine
// per field with no limit, and stores each result back under its own key.
// Concurrency never changes the output: the result is a map, and the final
// marshal sorts its keys (SPEC_FULL.md C2 note).
func walkObject(ctx context.Context, resolver Resolver, obj map[string]any, ancestors map[uuid.UUID]struct{}) (any, error) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	results := make([]any, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	for i, k := range keys {
		i, k := i, k
		g.Go(func() error {
			resolved, err := walk(gctx, resolver, obj[k], ancestors)
			if err != nil {
				return err
			}
			results[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(keys))
	for i, k := range keys {
		out[k] = results[i]
	}
	return out, nil
}

func walkArray(ctx context.Context, resolver Resolver, arr []any, ancestors map[uuid.UUID]struct{}) (any, error) {
	results := make([]any, len(arr))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range arr {
		i, v := i, v
		g.Go(func() error {
			resolved, err := walk(gctx, resolver, v, ancestors)
			if err != nil {
				return err
			}
			results[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolveRef(ctx context.Context, resolver Resolver, ref string, ancestors map[uuid.UUID]struct{}) (any, error) {
	rest := strings.TrimPrefix(ref, refPrefix)
	idStr, pointer, _ := strings.Cut(rest, "/")

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("malformed ref %q: %v", ref, err)}
	}

	if _, seen := ancestors[id]; seen {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("cyclic $ref to schema %s", id)}
	}

	raw, err := resolver.LatestDefinition(ctx, id)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("decode referenced schema %s: %v", id, err)}
	}

	if pointer != "" {
		doc, err = resolveJSONPointer(doc, pointer)
		if err != nil {
			return nil, &regtypes.InvalidJSONSchemaError{Reason: fmt.Sprintf("pointer %q into schema %s: %v", pointer, id, err)}
		}
	}

	childAncestors := make(map[uuid.UUID]struct{}, len(ancestors)+1)
	for k := range ancestors {
		childAncestors[k] = struct{}{}
	}
	childAncestors[id] = struct{}{}

	return walk(ctx, resolver, doc, childAncestors)
}

func resolveJSONPointer(doc any, pointer string) (any, error) {
	cur := doc
	for _, seg := range strings.Split(pointer, "/") {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot index into non-object at segment %q", seg)
		}
		next, ok := m[seg]
		if !ok {
			return nil, fmt.Errorf("no such field %q", seg)
		}
		cur = next
	}
	return cur, nil
}

// orderedValue recursively converts maps to a form whose keys marshal in
// sorted order. encoding/json already sorts map[string]any keys, so this is
// a light touch for nested slices/maps to keep the guarantee explicit and
// independent of future representation changes.
func orderedValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(t))
		for _, k := range keys {
			out[k] = orderedValue(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = orderedValue(e)
		}
		return out
	default:
		return v
	}
}
