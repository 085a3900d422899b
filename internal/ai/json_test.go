package ai

import (
	"encoding/json"
	"math"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		key  string
		want string
	}{
		{name: "plain", raw: `{"score": 80}`, key: "score", want: "80"},
		{name: "fenced", raw: "```json\n{\"reason\": \"ok\"}\n```", key: "reason", want: "ok"},
		{name: "prose around", raw: "Here you go: {\"chance\": \"high\"} hope it helps", key: "chance", want: "high"},
		{name: "two objects", raw: `first {"a": "x"} then {"b": "y"}`, key: "a", want: "x"},
		{name: "braces in strings", raw: `note {"bio": "uses {curly} text"} end }`, key: "bio", want: "uses {curly} text"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, ok := ExtractJSON(tc.raw)
			if !ok {
				t.Fatalf("expected object in %q", tc.raw)
			}
			if got := CoerceString(data[tc.key]); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "[1,2,3]", "}{"} {
		if data, ok := ExtractJSON(raw); ok {
			t.Fatalf("expected failure for %q, got %v", raw, data)
		}
	}
}

func TestExtractJSONKeepsNumberKinds(t *testing.T) {
	data, ok := ExtractJSON(`{"int": 1, "float": 1.0}`)
	if !ok {
		t.Fatal("expected object")
	}
	if n, ok := data["int"].(json.Number); !ok || n.String() != "1" {
		t.Fatalf("expected json number 1, got %#v", data["int"])
	}
	if n, ok := data["float"].(json.Number); !ok || n.String() != "1.0" {
		t.Fatalf("expected json number 1.0, got %#v", data["float"])
	}
}

func TestDecodeWeaklyTyped(t *testing.T) {
	var out struct {
		Bio     string   `json:"bio"`
		Bullets []string `json:"bullets"`
		Years   int      `json:"years"`
	}

	data, _ := ExtractJSON(`{"bio": "Go developer", "bullets": ["a", "b"], "years": "7"}`)
	if err := Decode(data, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Bio != "Go developer" || len(out.Bullets) != 2 || out.Years != 7 {
		t.Fatalf("unexpected decode result: %+v", out)
	}
}

func TestCoerceHelpers(t *testing.T) {
	if got := CoerceFloat(json.Number("0.75")); got != 0.75 {
		t.Fatalf("unexpected float: %v", got)
	}
	if !math.IsNaN(CoerceFloat("abc")) || !math.IsNaN(CoerceFloat(nil)) {
		t.Fatal("expected NaN for non numeric input")
	}
	if got := CoerceString(map[string]any{"k": "v"}); got != `{"k":"v"}` {
		t.Fatalf("unexpected string: %q", got)
	}
	if got := CoerceStrings([]any{" go ", "", json.Number("3")}); len(got) != 2 || got[0] != "go" || got[1] != "3" {
		t.Fatalf("unexpected strings: %v", got)
	}
	if got := CoerceStrings("single"); len(got) != 1 || got[0] != "single" {
		t.Fatalf("unexpected strings: %v", got)
	}
	if got := CoerceStrings(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestRenderPrompt(t *testing.T) {
	got := RenderPrompt("Hi {{NAME}}, job: {{JOB}} {{NAME}}", map[string]string{"NAME": "Ann", "JOB": "Go"})
	if got != "Hi Ann, job: Go Ann" {
		t.Fatalf("unexpected prompt: %q", got)
	}
}
