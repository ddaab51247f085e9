package respmode

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/latticeframe/gateway/internal/envelope"
)

// Write renders env according to flags: raw strips the envelope entirely
// (serving the semantic payload, or the bare error object), stream emits
// SSE, format=md emits a markdown table, and the default is the full JSON
// envelope. raw takes final precedence per spec.md §4.12.
func Write(w http.ResponseWriter, env *envelope.Envelope, dataKey string, flags Flags, status int) {
	switch {
	case flags.Raw:
		writeRaw(w, env, dataKey, status)
	case flags.Stream:
		writeStream(w, env, dataKey)
	case flags.Format == "md":
		writeMarkdown(w, env, dataKey)
	default:
		writeJSON(w, env, status)
	}
}

func writeJSON(w http.ResponseWriter, env *envelope.Envelope, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func writeRaw(w http.ResponseWriter, env *envelope.Envelope, dataKey string, status int) {
	w.Header().Set("Content-Type", "application/json")
	if errVal, ok := env.Get("error"); ok {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(errVal)
		return
	}
	val, _ := env.Get(dataKey)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(val)
}

// writeStream emits text/event-stream per spec.md §4.12: events api, data
// (one per array item, one total otherwise), links, error, terminating
// with done: {ok:true}.
func writeStream(w http.ResponseWriter, env *envelope.Envelope, dataKey string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, _ := w.(http.Flusher)

	if api, ok := env.Get("api"); ok {
		writeSSE(w, "api", api)
	}
	if data, ok := env.Get(dataKey); ok {
		if items, isArray := data.([]map[string]any); isArray {
			for _, item := range items {
				writeSSE(w, "data", item)
			}
		} else {
			writeSSE(w, "data", data)
		}
	}
	if links, ok := env.Get("links"); ok {
		writeSSE(w, "links", links)
	}
	if errVal, ok := env.Get("error"); ok {
		writeSSE(w, "error", errVal)
	}
	writeSSE(w, "done", map[string]any{"ok": true})
	if flusher != nil {
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, event string, v any) {
	encoded, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, encoded)
}

// writeMarkdown emits text/markdown per spec.md §4.12: a "# {api.name}"
// heading, a "> {total} total" line when total is set, a pipe-style table
// of the payload, then "## Links" and "## Actions" sections.
func writeMarkdown(w http.ResponseWriter, env *envelope.Envelope, dataKey string) {
	w.Header().Set("Content-Type", "text/markdown")

	var buf []byte
	apiName := "gateway"
	if api, ok := env.Get("api"); ok {
		if a, ok := api.(envelope.APIInfo); ok && a.Name != "" {
			apiName = a.Name
		}
	}
	buf = append(buf, []byte("# "+apiName+"\n\n")...)

	if total, ok := env.Get("total"); ok {
		buf = append(buf, []byte(fmt.Sprintf("> %v total\n\n", total))...)
	}

	if data, ok := env.Get(dataKey); ok {
		buf = append(buf, markdownTable(data)...)
	}

	if links, ok := env.Get("links"); ok {
		buf = append(buf, []byte("\n## Links\n\n")...)
		buf = append(buf, markdownLinks(links)...)
	}
	if actions, ok := env.Get("actions"); ok {
		buf = append(buf, []byte("\n## Actions\n\n")...)
		buf = append(buf, markdownLinks(actions)...)
	}

	_, _ = w.Write(buf)
}

func markdownTable(data any) []byte {
	rows, ok := data.([]map[string]any)
	if !ok || len(rows) == 0 {
		return nil
	}
	fields := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var out []byte
	out = append(out, []byte("| "+joinPipe(fields)+" |\n")...)
	sep := make([]string, len(fields))
	for i := range sep {
		sep[i] = "---"
	}
	out = append(out, []byte("| "+joinPipe(sep)+" |\n")...)
	for _, row := range rows {
		vals := make([]string, len(fields))
		for i, f := range fields {
			vals[i] = fmt.Sprintf("%v", row[f])
		}
		out = append(out, []byte("| "+joinPipe(vals)+" |\n")...)
	}
	return out
}

func markdownLinks(v any) []byte {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []byte
	for _, k := range keys {
		out = append(out, []byte(fmt.Sprintf("- [%s](%v)\n", k, m[k]))...)
	}
	return out
}

func joinPipe(items []string) string {
	out := ""
	for i, it := range items {
		if i > 0 {
			out += " | "
		}
		out += it
	}
	return out
}
