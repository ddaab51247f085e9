package envelope

import (
	"encoding/json"
	"testing"
)

func TestKeyOrder(t *testing.T) {
	total := 2
	hasMore := true
	env := Build(Options{
		API:     APIInfo{Name: "crm", Type: "crud", Version: "1.0"},
		Type:    "contact",
		ID:      "contact_abc",
		Links:   map[string]any{"collection": "/contacts"},
		DataKey: "contact",
		Data:    map[string]any{"name": "Alice"},
		HasData: true,
		Total:   &total,
		HasMore: &hasMore,
		User:    &UserContext{ID: "u1", Authenticated: true},
	})

	keys := env.Keys()
	want := []string{"api", "$type", "$id", "links", "contact", "total", "hasMore", "user"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys[%d] = %q, want %q (full: %v)", i, keys[i], want[i], keys)
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != '{' || data[1] != '"' {
		t.Fatalf("unexpected json head: %s", data[:10])
	}
}

func TestNormalizeActions(t *testing.T) {
	actions := map[string]any{
		"delete": map[string]any{"method": "DELETE", "href": "/contacts/1"},
		"list":   "/contacts",
	}
	out := NormalizeActions(actions)
	if out["delete"] != "/contacts/1" {
		t.Errorf("delete = %v", out["delete"])
	}
	if out["list"] != "/contacts" {
		t.Errorf("list = %v", out["list"])
	}
}

func TestNormalizeUser(t *testing.T) {
	u := NormalizeUser(&UserInfo{ID: "u1", Org: "acme"})
	if !u.Authenticated || u.ID != "u1" || u.Org != "acme" {
		t.Errorf("got %+v", u)
	}
	if NormalizeUser(nil) != nil {
		t.Error("expected nil for nil input")
	}
}
