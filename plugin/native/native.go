// Package native implements the Native Plugin Host: loading a shared
// library exposing the ARO C-ABI (spec §4.9) via purego, a cgo-free
// dynamic loader, so the whole toolchain still builds with
// CGO_ENABLED=0 (spec SPEC_FULL.md §1).
package native

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/plugin/buildtool"
	"github.com/aro-lang/aro/plugin/manifest"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/value"
)

// infoResponse is the JSON shape aro_plugin_info returns (spec §4.9
// step 4). Actions may arrive either as a legacy array of verb
// strings or as a richer array of {name, verbs[]}; actionEntry
// accepts both via a custom UnmarshalJSON.
type infoResponse struct {
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	Language   string         `json:"language"`
	Actions    []actionEntry  `json:"actions"`
	Qualifiers []qualifierDef `json:"qualifiers"`
}

type actionEntry struct {
	Name  string   `json:"name"`
	Verbs []string `json:"verbs"`
}

// UnmarshalJSON accepts either a bare verb string or a {name, verbs[]}
// object (spec §4.9 step 4).
func (a *actionEntry) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Name = s
		a.Verbs = []string{s}
		return nil
	}
	type alias actionEntry
	var v alias
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("native: invalid action entry: %w", err)
	}
	*a = actionEntry(v)
	if len(a.Verbs) == 0 {
		a.Verbs = []string{a.Name}
	}
	return nil
}

type qualifierDef struct {
	Name       string   `json:"name"`
	Handler    string   `json:"handler"`
	InputTypes []string `json:"inputTypes"`
}

// qualifierInvocation is the protocol object sent for a qualifier
// call (spec §4.9 "Qualifier invocation protocol").
type qualifierInvocation struct {
	Value value.Value `json:"value"`
	Type  string       `json:"type"`
}

type qualifierResult struct {
	Result *value.Value `json:"result"`
	Error  string        `json:"error"`
}

// Host owns one loaded native plugin's library handle and the C-ABI
// function pointers purego bound to it. The handle is never explicitly
// closed: functions bound from the library may still be running in
// in-flight calls, so Unregister only removes the plugin's
// registrations rather than calling dlclose (a deliberate, documented
// simplification — see DESIGN.md).
type Host struct {
	name    string
	handle  uintptr
	execute func(verb string, input string) uintptr
	free    func(ptr uintptr)
	info    func() uintptr
	qualify func(qualifier string, input string) uintptr

	// qualifierCache memoizes qualifier invocation results keyed by
	// "name\x00json(input)" so applying the same qualifier to the same
	// value repeatedly (common in list-index-heavy feature sets) does
	// not re-cross the C-ABI boundary each time.
	qualifierCache *lru.Cache[string, value.Value]
}

// Load locates and opens the shared library that implements p,
// registering its actions and qualifiers into actionsReg and
// qualifiersReg (spec §4.9 steps 1-6).
func Load(m *manifest.Manifest, p manifest.Provide, actionsReg *actions.Registry, qualifiersReg *qualifiers.Registry) (*Host, error) {
	libPath, err := locateLibrary(m, p)
	if err != nil {
		built, buildErr := buildtool.Build(context.Background(), m, p)
		if buildErr != nil {
			return nil, fmt.Errorf("native: %s: %w (and build failed: %v)", m.Name, err, buildErr)
		}
		libPath = built
	}

	handle, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_LOCAL)
	if err != nil {
		return nil, fmt.Errorf("native: opening %s: %w", libPath, err)
	}

	h := &Host{name: m.Name, handle: handle}
	cache, err := lru.New[string, value.Value](256)
	if err != nil {
		return nil, fmt.Errorf("native: %s: allocating qualifier cache: %w", m.Name, err)
	}
	h.qualifierCache = cache

	if err := purego.RegisterLibFunc(&h.execute, handle, "aro_plugin_execute"); err != nil {
		return nil, fmt.Errorf("native: %s missing required symbol aro_plugin_execute: %w", m.Name, err)
	}
	if err := purego.RegisterLibFunc(&h.free, handle, "aro_plugin_free"); err != nil {
		return nil, fmt.Errorf("native: %s missing required symbol aro_plugin_free: %w", m.Name, err)
	}
	_ = purego.RegisterLibFunc(&h.info, handle, "aro_plugin_info")
	_ = purego.RegisterLibFunc(&h.qualify, handle, "aro_plugin_qualifier")

	info, err := h.loadInfo()
	if err != nil {
		return nil, err
	}

	for _, q := range info.Qualifiers {
		q := q
		var kinds []value.Kind
		for _, t := range q.InputTypes {
			kinds = append(kinds, kindFromLabel(t))
		}
		namespace := q.Handler
		if namespace == "" {
			namespace = m.Name
		}
		if err := qualifiersReg.Register(&qualifiers.Registration{
			Namespace:     namespace,
			Name:          q.Name,
			AcceptedKinds: kinds,
			OwningPlugin:  m.Name,
			Handler:       h.qualifierHandler(q.Name),
		}); err != nil {
			return nil, fmt.Errorf("native: registering qualifier %s.%s: %w", namespace, q.Name, err)
		}
	}

	for _, a := range info.Actions {
		for _, verb := range a.Verbs {
			if err := actionsReg.RegisterDynamic(&actions.Registration{
				Verb:         verb,
				OwningPlugin: m.Name,
				Handler:      h.actionHandler(),
			}); err != nil {
				return nil, fmt.Errorf("native: registering verb %s: %w", verb, err)
			}
		}
	}

	return h, nil
}

func (h *Host) loadInfo() (*infoResponse, error) {
	if h.info == nil {
		return &infoResponse{}, nil
	}
	ptr := h.info()
	raw := h.takeString(ptr)
	if raw == "" {
		return &infoResponse{}, nil
	}
	var info infoResponse
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return nil, fmt.Errorf("native: %s returned malformed aro_plugin_info: %w", h.name, err)
	}
	return &info, nil
}

// actionHandler builds an actions.Handler that marshals the statement
// context into the JSON input object described in spec §4.9 step 6
// and calls aro_plugin_execute.
func (h *Host) actionHandler() actions.Handler {
	return func(_ context.Context, env *actions.Env, req actions.Request) (actions.Result, error) {
		input := map[string]interface{}{}
		objJSON, _ := req.Object.MarshalJSON()
		var objDecoded interface{}
		_ = json.Unmarshal(objJSON, &objDecoded)
		input["data"] = objDecoded
		input["object"] = objDecoded
		if req.ObjectName != "" {
			input[req.ObjectName] = objDecoded
		}
		if req.Statement != nil && req.Statement.Result != nil && req.Statement.Result.Qualifier != nil {
			input["qualifier"] = req.Statement.Result.Qualifier.Name
		}
		mergeValueField(input, "_with_", req.With)
		mergeValueField(input, "_expression_", req.Expression)

		payload, err := json.Marshal(input)
		if err != nil {
			return actions.Result{}, fmt.Errorf("native: encoding call input: %w", err)
		}

		verb := ""
		if req.Statement != nil {
			verb = req.Statement.Verb
		}
		ptr := h.execute(verb, string(payload))
		raw := h.takeString(ptr)

		var decoded interface{}
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return actions.Result{}, fmt.Errorf("native: %s returned malformed JSON for verb %s: %w", h.name, verb, err)
		}
		return actions.Result{Value: value.FromInterface(decoded)}, nil
	}
}

func (h *Host) qualifierHandler(name string) qualifiers.Handler {
	return func(in value.Value) (value.Value, error) {
		if h.qualify == nil {
			return value.Null, fmt.Errorf("native: %s does not implement aro_plugin_qualifier", h.name)
		}
		req := qualifierInvocation{Value: in, Type: in.Kind().TypeLabel()}
		payload, err := json.Marshal(req)
		if err != nil {
			return value.Null, err
		}

		cacheKey := name + "\x00" + string(payload)
		if cached, ok := h.qualifierCache.Get(cacheKey); ok {
			return cached, nil
		}

		ptr := h.qualify(name, string(payload))
		raw := h.takeString(ptr)

		var res qualifierResult
		if err := json.Unmarshal([]byte(raw), &res); err != nil {
			return value.Null, fmt.Errorf("native: %s qualifier %s returned malformed JSON: %w", h.name, name, err)
		}
		if res.Error != "" {
			return value.Null, fmt.Errorf("native: %s qualifier %s: %s", h.name, name, res.Error)
		}
		if res.Result == nil {
			return value.Null, fmt.Errorf("native: %s qualifier %s returned neither result nor error", h.name, name)
		}
		h.qualifierCache.Add(cacheKey, *res.Result)
		return *res.Result, nil
	}
}

// takeString reads a nul-terminated C string returned by the plugin
// and frees the plugin's buffer via aro_plugin_free, implementing
// spec §4.9 step 6's "frees the returned string".
func (h *Host) takeString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	defer h.free(ptr)
	return goStringFromPtr(ptr)
}

// Unregister removes every action and qualifier this host's plugin
// registered (spec §4.9 "Unloading").
func (h *Host) Unregister(actionsReg *actions.Registry, qualifiersReg *qualifiers.Registry) {
	actionsReg.Unregister(h.name)
	qualifiersReg.Unregister(h.name)
}

func goStringFromPtr(ptr uintptr) string {
	length := 0
	for {
		b := *(*byte)(unsafe.Pointer(ptr + uintptr(length)))
		if b == 0 {
			break
		}
		length++
	}
	bytes := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length)
	return string(bytes)
}

func mergeValueField(dst map[string]interface{}, key string, v value.Value) {
	if v.IsNull() {
		return
	}
	raw, err := v.MarshalJSON()
	if err != nil {
		return
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return
	}
	dst[key] = decoded
	if v.Kind() == value.KindMapping {
		if m, ok := decoded.(map[string]interface{}); ok {
			for k, val := range m {
				dst[k] = val
			}
		}
	}
}

func kindFromLabel(label string) value.Kind {
	switch label {
	case "string":
		return value.KindString
	case "integer":
		return value.KindInt
	case "double":
		return value.KindFloat
	case "boolean":
		return value.KindBool
	case "sequence":
		return value.KindSequence
	case "mapping":
		return value.KindMapping
	default:
		return value.KindNull
	}
}

// locateLibrary implements spec §4.9 step 1's search order: an
// explicit build.output path, conventional lib<name>.<ext>/<name>.<ext>
// names next to the manifest, or a pre-built Rust artifact under
// target/release.
func locateLibrary(m *manifest.Manifest, p manifest.Provide) (string, error) {
	dir := m.ResolvePath(p)
	ext := platformExt()

	if p.Build != nil && p.Build.Output != "" {
		out := filepath.Join(dir, p.Build.Output)
		if fileExists(out) {
			return out, nil
		}
	}

	for _, candidate := range []string{"lib" + m.Name + ext, m.Name + ext} {
		full := filepath.Join(dir, candidate)
		if fileExists(full) {
			return full, nil
		}
	}

	rustOut := filepath.Join(dir, "target", "release", "lib"+m.Name+ext)
	if fileExists(rustOut) {
		return rustOut, nil
	}

	return "", fmt.Errorf("native: no prebuilt library found for %s in %s", m.Name, dir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func platformExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}
