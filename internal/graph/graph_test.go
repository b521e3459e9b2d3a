package graph

import (
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/klogins-hash/agent-memz-the-wordz-v0.1/pkg/types"
)

func TestValidIdentifier(t *testing.T) {
	valid := []string{"Person", "KNOWS", "lives_in", "Place2", "a"}
	for _, s := range valid {
		if !ValidIdentifier(s) {
			t.Errorf("expected %q to be valid", s)
		}
	}

	invalid := []string{
		"",
		"2Person",
		"has-space ",
		"drop;MATCH",
		"`Person`",
		"a b",
		"KNOWS]->(x) DELETE x //",
	}
	for _, s := range invalid {
		if ValidIdentifier(s) {
			t.Errorf("expected %q to be rejected", s)
		}
	}
}

func TestReportPartial(t *testing.T) {
	r := &Report{EntitiesCreated: []string{"alice"}}
	if r.Partial() {
		t.Error("report with no failures should not be partial")
	}

	r.FailedRelationships = append(r.FailedRelationships, ElementFailure{
		Key: "alice->bob", Reason: "endpoint node not found",
	})
	if !r.Partial() {
		t.Error("report with a failed relationship should be partial")
	}
}

func TestPartialWriteErrorMessage(t *testing.T) {
	err := &PartialWriteError{
		FactID: "fact-7",
		Report: Report{
			EntitiesCreated:   []string{"alice", "bob"},
			RelationshipsMade: []string{"alice->bob"},
			FailedRelationships: []ElementFailure{
				{Key: "bob->carol", Reason: "endpoint node not found"},
			},
		},
	}

	msg := err.Error()
	for _, want := range []string{"fact-7", "1 of 4", "bob->carol", "endpoint node not found"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestRelationshipCreated(t *testing.T) {
	row := func(v interface{}) []*neo4j.Record {
		return []*neo4j.Record{{Keys: []string{"created"}, Values: []interface{}{v}}}
	}

	ok, err := relationshipCreated(row(int64(1)))
	if err != nil || !ok {
		t.Errorf("created=1: got (%v, %v), want (true, nil)", ok, err)
	}

	// An endpoint miss still yields the aggregate row, just with a zero
	// count. It must read as not-created, not as success.
	ok, err = relationshipCreated(row(int64(0)))
	if err != nil {
		t.Fatalf("created=0: unexpected error %v", err)
	}
	if ok {
		t.Error("created=0 reported as a created relationship")
	}

	if _, err := relationshipCreated(nil); err == nil {
		t.Error("expected error for missing result row")
	}
	if _, err := relationshipCreated(row("1")); err == nil {
		t.Error("expected error for non-integer count")
	}
}

func TestNativeProperties(t *testing.T) {
	props := map[string]types.PropertyValue{
		"name":   types.StringProperty("Alice"),
		"age":    types.NumberProperty(34),
		"active": types.BoolProperty(true),
		"tags":   types.ListProperty("friend", "colleague"),
	}

	native := nativeProperties(props)

	if native["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", native["name"])
	}
	if native["age"] != 34.0 {
		t.Errorf("age = %v, want 34", native["age"])
	}
	if native["active"] != true {
		t.Errorf("active = %v, want true", native["active"])
	}
	tags, ok := native["tags"].([]string)
	if !ok || len(tags) != 2 || tags[0] != "friend" {
		t.Errorf("tags = %v, want [friend colleague]", native["tags"])
	}
}
