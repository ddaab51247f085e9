package envelope

// NormalizeActions rewrites legacy {method, href} action forms into bare
// URL strings, leaving already-bare strings and nested maps untouched.
// Per spec.md §4.11: "Legacy {method, href} action forms are normalized
// into bare URL strings."
func NormalizeActions(actions map[string]any) map[string]any {
	if actions == nil {
		return nil
	}
	out := make(map[string]any, len(actions))
	for k, v := range actions {
		out[k] = normalizeAction(v)
	}
	return out
}

func normalizeAction(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if href, ok := m["href"].(string); ok {
		if _, hasMethod := m["method"]; hasMethod && len(m) == 2 {
			return href
		}
	}
	nested := make(map[string]any, len(m))
	for k, sub := range m {
		nested[k] = normalizeAction(sub)
	}
	return nested
}

// UserInfo is the legacy shape some handlers still produce.
type UserInfo struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Org   string `json:"org,omitempty"`
}

// UserContext is the normalized shape placed on the envelope's "user" key.
type UserContext struct {
	ID            string `json:"id,omitempty"`
	Email         string `json:"email,omitempty"`
	Org           string `json:"org,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// NormalizeUser converts legacy UserInfo into UserContext, adding
// authenticated: true. A nil input yields a nil *UserContext (the
// envelope omits the "user" key for anonymous requests).
func NormalizeUser(u *UserInfo) *UserContext {
	if u == nil {
		return nil
	}
	return &UserContext{
		ID:            u.ID,
		Email:         u.Email,
		Org:           u.Org,
		Authenticated: true,
	}
}
