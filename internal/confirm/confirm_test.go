package confirm

import (
	"testing"
	"time"
)

func TestRequiresConfirmDefaults(t *testing.T) {
	c := Config{}
	cases := map[string]bool{
		"create": true, "update": true, "delete": true, "revert": true,
		"list": false, "get": false, "find": false, "search": false,
		"count": false, "export": false, "schema": false,
		"archive": true, // unknown lowercase verb => treated as mutating
		"$count":  false,
		"Export":  false, // not lowercase-only
	}
	for action, want := range cases {
		if got := c.RequiresConfirm(action); got != want {
			t.Errorf("RequiresConfirm(%q) = %v, want %v", action, got, want)
		}
	}
}

func TestRequiresConfirmExplicitList(t *testing.T) {
	c := Config{Actions: []string{"archive"}}
	if !c.RequiresConfirm("archive") {
		t.Error("expected archive to require confirm")
	}
	if c.RequiresConfirm("delete") {
		t.Error("explicit list should exclude delete")
	}
}

func TestGenerateValidateRoundTrip(t *testing.T) {
	c := Config{Secret: "s3cr3t", TTL: 1 * time.Minute}
	now := time.UnixMilli(1700000000000)
	p := Params{
		Action: "delete",
		Type:   "contact",
		Data:   map[string]string{"id": "contact_1"},
		Tenant: "acme",
		UserID: "u1",
	}
	hash := c.Generate(p, now)
	if len(hash) != 6 {
		t.Fatalf("hash len = %d, want 6", len(hash))
	}
	if !c.Validate(p, now, hash) {
		t.Error("expected validate to accept same-bucket hash")
	}
	if !c.Validate(p, now.Add(c.TTL), hash) {
		t.Error("expected validate to accept hash from the immediately previous bucket")
	}
	if c.Validate(p, now.Add(3*c.TTL), hash) {
		t.Error("expected validate to reject a hash three buckets stale")
	}
}

func TestValidateSortedDataIndependentOfMapOrder(t *testing.T) {
	c := Config{Secret: "s", TTL: time.Minute}
	now := time.UnixMilli(1700000000000)
	p1 := Params{Action: "update", Type: "x", Tenant: "t", UserID: "u",
		Data: map[string]string{"a": "1", "b": "2"}}
	p2 := Params{Action: "update", Type: "x", Tenant: "t", UserID: "u",
		Data: map[string]string{"b": "2", "a": "1"}}
	if c.Generate(p1, now) != c.Generate(p2, now) {
		t.Error("hash should not depend on map iteration order")
	}
}

func TestValidateRejectsWrongFingerprint(t *testing.T) {
	c := Config{Secret: "s", TTL: time.Minute}
	now := time.UnixMilli(1700000000000)
	p := Params{Action: "delete", Type: "contact", Tenant: "t", UserID: "u",
		Data: map[string]string{"id": "1"}}
	hash := c.Generate(p, now)

	tampered := p
	tampered.Data = map[string]string{"id": "2"}
	if c.Validate(tampered, now, hash) {
		t.Error("expected validate to reject a hash for different data")
	}
}
