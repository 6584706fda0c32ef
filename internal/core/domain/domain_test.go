package domain

import (
	"encoding/json"
	"testing"
)

func TestPosition_Compare(t *testing.T) {
	tests := []struct {
		a, b Position
		want int
	}{
		{Position{1, "a"}, Position{2, "a"}, -1},
		{Position{2, "a"}, Position{1, "z"}, 1},
		{Position{1, "a"}, Position{1, "b"}, -1},
		{Position{1, "b"}, Position{1, "b"}, 0},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestArgs_Matches(t *testing.T) {
	fields := json.RawMessage(`{"channel":"general","priority":3,"tags":["x","y"],"meta":{"pinned":true,"by":"ana"}}`)

	tests := []struct {
		name string
		args Args
		want bool
	}{
		{"nil args", nil, true},
		{"string match", Args{"channel": "general"}, true},
		{"int vs float", Args{"priority": 3}, true},
		{"mismatch", Args{"channel": "random"}, false},
		{"missing key", Args{"owner": "me"}, false},
		{"array subset", Args{"tags": []string{"x"}}, true},
		{"array reordered", Args{"tags": []string{"y", "x"}}, true},
		{"array extra element", Args{"tags": []string{"x", "z"}}, false},
		{"scalar vs array", Args{"tags": "x"}, false},
		{"object subset", Args{"meta": map[string]any{"pinned": true}}, true},
		{"object mismatch", Args{"meta": map[string]any{"pinned": false}}, false},
		{"object vs scalar", Args{"channel": map[string]any{"name": "general"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.args.Matches(fields); got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}

	if (Args{"a": 1}).Matches(nil) {
		t.Error("expected empty fields not to match non-empty args")
	}
}

func TestChangeEvent_Concerns(t *testing.T) {
	args := Args{"channel": "general"}
	general := json.RawMessage(`{"channel":"general"}`)
	random := json.RawMessage(`{"channel":"random"}`)

	tests := []struct {
		name string
		ev   ChangeEvent
		want bool
	}{
		{"matching upsert", ChangeEvent{Kind: ChangeUpsert, Record: Record{ID: "1", Fields: general}}, true},
		{"other upsert", ChangeEvent{Kind: ChangeUpsert, Record: Record{ID: "1", Fields: random}}, false},
		{"moved out", ChangeEvent{Kind: ChangeUpsert, Record: Record{ID: "1", Fields: random}, Previous: general}, true},
		{"bare delete", ChangeEvent{Kind: ChangeDelete, Record: Record{ID: "1"}}, true},
		{"other delete", ChangeEvent{Kind: ChangeDelete, Record: Record{ID: "1", Fields: random}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.Concerns(args); got != tt.want {
				t.Errorf("Concerns = %v, want %v", got, tt.want)
			}
		})
	}
}
