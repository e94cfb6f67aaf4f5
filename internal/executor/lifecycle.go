package executor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// orderedJSON renders a map as a JSON object with lexicographically sorted
// keys. The message schema has a small fixed field set per
// kind, so a hand-rolled encoder avoids depending on map-ordering behavior
// a generic marshaler doesn't guarantee across Go versions.
func orderedJSON(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(jsonString(k))
		sb.WriteByte(':')
		sb.WriteString(jsonValue(fields[k]))
	}
	sb.WriteByte('}')
	return sb.String()
}

// jsonString escapes s as a JSON string literal, escaping "/" as "\/"
// for the message wire format.
func jsonString(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '/':
			sb.WriteString(`\/`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func jsonValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return jsonString(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case []string:
		parts := make([]string, len(val))
		for i, s := range val {
			parts[i] = jsonString(s)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case []pathEntry:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = orderedJSON(map[string]any{"path": p.Path, "type": p.Type})
		}
		return "[" + strings.Join(parts, ",") + "]"
	case map[string]any:
		return orderedJSON(val)
	default:
		return jsonString(fmt.Sprintf("%v", val))
	}
}

// pathEntry is one element of a began message's "outputs" array.
type pathEntry struct {
	Path string
	Type string
}

// beganMessage renders the began message.
func beganMessage(kind, name string, pid, realPID int, inputs []string, outputs []pathEntry, executable string, args []string) string {
	return orderedJSON(map[string]any{
		"kind":               kind,
		"name":               name,
		"pid":                pid,
		"process":            map[string]any{"real_pid": realPID},
		"inputs":             inputs,
		"outputs":            outputs,
		"command_executable": executable,
		"command_arguments":  args,
	})
}

// finishedMessage renders the finished message.
func finishedMessage(kind, name string, pid, realPID, exitStatus int, output string) string {
	return orderedJSON(map[string]any{
		"kind":        kind,
		"name":        name,
		"pid":         pid,
		"process":     map[string]any{"real_pid": realPID},
		"exit-status": exitStatus,
		"output":      output,
	})
}

// signalledMessage renders the signalled message.
func signalledMessage(kind, name string, pid, realPID int, output, errMessage string, signal int) string {
	return orderedJSON(map[string]any{
		"kind":          kind,
		"name":          name,
		"pid":           pid,
		"process":       map[string]any{"real_pid": realPID},
		"output":        output,
		"error-message": errMessage,
		"signal":        signal,
	})
}

// abnormalExitMessage renders the abnormal-exit message.
func abnormalExitMessage(kind, name string, pid, realPID int, exception string) string {
	return orderedJSON(map[string]any{
		"kind":      kind,
		"name":      name,
		"pid":       pid,
		"process":   map[string]any{"real_pid": realPID},
		"exception": exception,
	})
}
