// Package scripted implements the Scripted Plugin Host: running a
// plugin written for an external interpreter as a subprocess per call,
// trading the cost of a fresh process per invocation for isolation
// from the host's own signal handling and memory space (spec §4.10).
package scripted

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/aro-lang/aro/actions"
	"github.com/aro-lang/aro/plugin/manifest"
	"github.com/aro-lang/aro/qualifiers"
	"github.com/aro-lang/aro/value"
)

// callTimeout bounds one subprocess invocation (spec §5: "subprocess
// plugin calls ... carry a per-call deadline").
const callTimeout = 30 * time.Second

// interpreter describes one supported scripted ecosystem: how to find
// its executable and how to address a plugin's entry points.
type interpreter struct {
	envVar         string
	searchPaths    []string
	executable     string
	mainCandidates func(name string) []string
	runScript      func(mainFile, body string) string
}

var pythonInterpreter = interpreter{
	envVar: "ARO_PYTHON",
	searchPaths: []string{
		"/usr/local/bin/python3",
		"/usr/bin/python3",
	},
	executable: "python3",
	mainCandidates: func(name string) []string {
		return []string{"plugin.py", name + ".py", "main.py", "__init__.py"}
	},
	runScript: func(mainFile, body string) string {
		return pythonHarnessPreamble(mainFile) + body
	},
}

func pythonHarnessPreamble(mainFile string) string {
	module := strings.TrimSuffix(filepath.Base(mainFile), filepath.Ext(mainFile))
	dir := filepath.Dir(mainFile)
	return fmt.Sprintf(`import sys, json, base64, traceback
sys.path.insert(0, %q)
plugin = __import__(%q)
`, dir, module)
}

// Host runs one loaded scripted plugin: the interpreter binary to
// invoke and the resolved main source file to import on every call.
type Host struct {
	name        string
	interpBin   string
	mainFile    string
	interp      interpreter
}

// Load resolves the interpreter and the plugin's main source file,
// invokes aro_plugin_info to discover its actions and qualifiers, and
// registers them (spec §4.10 steps 1-3).
func Load(m *manifest.Manifest, p manifest.Provide, actionsReg *actions.Registry, qualifiersReg *qualifiers.Registry) (*Host, error) {
	if !p.Type.IsScripted() {
		return nil, fmt.Errorf("scripted: %s: provide type %q is not scripted", m.Name, p.Type)
	}

	interp := pythonInterpreter
	bin, err := locateInterpreter(interp)
	if err != nil {
		return nil, fmt.Errorf("scripted: %s: %w", m.Name, err)
	}

	dir := m.ResolvePath(p)
	mainFile, err := locateMainFile(dir, m.Name, interp)
	if err != nil {
		return nil, fmt.Errorf("scripted: %s: %w", m.Name, err)
	}

	h := &Host{name: m.Name, interpBin: bin, mainFile: mainFile, interp: interp}

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
			return nil, fmt.Errorf("scripted: registering qualifier %s.%s: %w", namespace, q.Name, err)
		}
	}

	for _, a := range info.Actions {
		for _, verb := range a.Verbs {
			if err := actionsReg.RegisterDynamic(&actions.Registration{
				Verb:         verb,
				OwningPlugin: m.Name,
				Handler:      h.actionHandler(verb),
			}); err != nil {
				return nil, fmt.Errorf("scripted: registering verb %s: %w", verb, err)
			}
		}
	}

	return h, nil
}

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
		return fmt.Errorf("scripted: invalid action entry: %w", err)
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

func (h *Host) loadInfo() (*infoResponse, error) {
	script := h.interp.runScript(h.mainFile, `print(json.dumps(plugin.aro_plugin_info()))
`)
	out, _, err := h.runScript(context.Background(), script)
	if err != nil {
		return nil, fmt.Errorf("loading info: %w", err)
	}
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return &infoResponse{}, nil
	}
	var info infoResponse
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parsing aro_plugin_info output: %w", err)
	}
	return &info, nil
}

func (h *Host) actionHandler(verb string) actions.Handler {
	fn := "aro_action_" + snakeCase(verb)
	return func(ctx context.Context, _ *actions.Env, req actions.Request) (actions.Result, error) {
		input := map[string]interface{}{}
		objJSON, _ := req.Object.MarshalJSON()
		var objDecoded interface{}
		_ = json.Unmarshal(objJSON, &objDecoded)
		input["data"] = objDecoded
		input["object"] = objDecoded
		if req.ObjectName != "" {
			input[req.ObjectName] = objDecoded
		}
		mergeValueField(input, "_with_", req.With)
		mergeValueField(input, "_expression_", req.Expression)

		payload, err := json.Marshal(input)
		if err != nil {
			return actions.Result{}, fmt.Errorf("scripted: encoding call input: %w", err)
		}
		encoded := base64.StdEncoding.EncodeToString(payload)

		script := h.interp.runScript(h.mainFile, fmt.Sprintf(`
try:
    input_json = base64.b64decode(%q).decode("utf-8")
    result = plugin.%s(input_json)
    print(json.dumps(result))
except Exception as e:
    print(json.dumps({"error": str(e), "traceback": traceback.format_exc()}))
`, encoded, fn))

		out, errOut, err := h.runScript(ctx, script)
		if err != nil {
			return actions.Result{}, fmt.Errorf("scripted: %s: %s: %w (stderr: %s)", h.name, verb, err, strings.TrimSpace(string(errOut)))
		}

		var decoded interface{}
		if err := json.Unmarshal(bytes.TrimSpace(out), &decoded); err != nil {
			return actions.Result{}, fmt.Errorf("scripted: %s returned malformed JSON for verb %s: %w", h.name, verb, err)
		}
		if m, ok := decoded.(map[string]interface{}); ok {
			if errMsg, ok := m["error"].(string); ok && errMsg != "" {
				return actions.Result{}, fmt.Errorf("scripted: %s: %s: %s", h.name, verb, errMsg)
			}
		}
		return actions.Result{Value: value.FromInterface(decoded)}, nil
	}
}

func (h *Host) qualifierHandler(name string) qualifiers.Handler {
	return func(in value.Value) (value.Value, error) {
		req := map[string]interface{}{"type": in.Kind().TypeLabel()}
		rawVal, _ := in.MarshalJSON()
		var decoded interface{}
		_ = json.Unmarshal(rawVal, &decoded)
		req["value"] = decoded
		payload, err := json.Marshal(req)
		if err != nil {
			return value.Null, err
		}
		encoded := base64.StdEncoding.EncodeToString(payload)

		script := h.interp.runScript(h.mainFile, fmt.Sprintf(`
try:
    input_json = base64.b64decode(%q).decode("utf-8")
    result = plugin.aro_plugin_qualifier(%q, input_json)
    print(json.dumps(result))
except Exception as e:
    print(json.dumps({"error": str(e), "traceback": traceback.format_exc()}))
`, encoded, name))

		out, errOut, err := h.runScript(context.Background(), script)
		if err != nil {
			return value.Null, fmt.Errorf("scripted: %s qualifier %s: %w (stderr: %s)", h.name, name, err, strings.TrimSpace(string(errOut)))
		}

		var res struct {
			Result *value.Value `json:"result"`
			Error  string        `json:"error"`
		}
		if err := json.Unmarshal(bytes.TrimSpace(out), &res); err != nil {
			return value.Null, fmt.Errorf("scripted: %s qualifier %s returned malformed JSON: %w", h.name, name, err)
		}
		if res.Error != "" {
			return value.Null, fmt.Errorf("scripted: %s qualifier %s: %s", h.name, name, res.Error)
		}
		if res.Result == nil {
			return value.Null, fmt.Errorf("scripted: %s qualifier %s returned neither result nor error", h.name, name)
		}
		return *res.Result, nil
	}
}

// runScript launches a fresh interpreter subprocess for script, bounded
// by callTimeout, returning stdout and stderr separately so stderr can
// be surfaced only when the exit status is nonzero (spec §4.10 step 4).
func (h *Host) runScript(ctx context.Context, script string) (stdout, stderr []byte, err error) {
	runCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.interpBin, "-c", script)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if runErr := cmd.Run(); runErr != nil {
		return outBuf.Bytes(), errBuf.Bytes(), fmt.Errorf("running %s: %w", h.interpBin, runErr)
	}
	return outBuf.Bytes(), errBuf.Bytes(), nil
}

// Unregister removes every action and qualifier this host's plugin
// registered (spec §4.9's unload semantics, shared by every plugin
// host kind).
func (h *Host) Unregister(actionsReg *actions.Registry, qualifiersReg *qualifiers.Registry) {
	actionsReg.Unregister(h.name)
	qualifiersReg.Unregister(h.name)
}

// locateInterpreter follows the fixed search order of spec §4.10 step
// 1: an environment override, then common installation paths, then
// PATH.
func locateInterpreter(interp interpreter) (string, error) {
	if override := os.Getenv(interp.envVar); override != "" {
		if fileExists(override) {
			return override, nil
		}
		return "", fmt.Errorf("%s points at %q but it does not exist", interp.envVar, override)
	}
	for _, candidate := range interp.searchPaths {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	if found, err := exec.LookPath(interp.executable); err == nil {
		return found, nil
	}
	return "", fmt.Errorf("no %s interpreter found (set %s to override)", interp.executable, interp.envVar)
}

// locateMainFile implements spec §4.10 step 2's naming convention.
func locateMainFile(dir, pluginName string, interp interpreter) (string, error) {
	for _, candidate := range interp.mainCandidates(pluginName) {
		full := filepath.Join(dir, candidate)
		if fileExists(full) {
			return full, nil
		}
	}
	return "", fmt.Errorf("no main source file found in %s (tried %v)", dir, interp.mainCandidates(pluginName))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// snakeCase converts a verb like "keepAlive" or "store" into its
// aro_action_<snake_case_verb> form; built-in verbs are already
// lowercase so this mostly guards plugin-declared camelCase verbs.
func snakeCase(verb string) string {
	var b strings.Builder
	for i, r := range verb {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
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
