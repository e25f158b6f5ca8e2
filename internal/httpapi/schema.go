package httpapi

// requestSchema and responseSchema hand-describe the JSON shapes of
// command.Request/command.Response for GET /schema and GET
// /response_schema — the minimal static description a front-end needs to
// build a form or a completer against.
func requestSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind":       map[string]any{"type": "string", "description": "one of the command kinds, e.g. \"continue\", \"step_in\", \"set_breakpoint\""},
			"address":    map[string]any{"type": "integer"},
			"name":       map[string]any{"type": "string"},
			"line":       map[string]any{"type": "integer"},
			"file":       map[string]any{"type": "string"},
			"path":       map[string]any{"type": "string"},
			"window":     map[string]any{"type": "integer"},
			"breakpoint": map[string]any{"type": "object", "description": "one of name, address, or file+line"},
		},
		"required": []string{"kind"},
	}
}

func responseSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind":                 map[string]any{"type": "string"},
			"registers":            map[string]any{"type": "object"},
			"u64":                  map[string]any{"type": "integer"},
			"function":             map[string]any{"type": "object"},
			"functions":            map[string]any{"type": "array"},
			"location":             map[string]any{"type": "object"},
			"source_lines":         map[string]any{"type": "array"},
			"frames":               map[string]any{"type": "array"},
			"variables":            map[string]any{"type": "array"},
			"discovered_variables": map[string]any{"type": "array"},
			"breakpoints":          map[string]any{"type": "array"},
			"debug_meta":           map[string]any{"type": "object"},
			"maps":                 map[string]any{"type": "array"},
			"text":                 map[string]any{"type": "string"},
		},
	}
}
