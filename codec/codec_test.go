package codec_test

import (
	"bytes"
	"testing"

	"github.com/huffmsa/nuts/codec"
)

type record struct {
	Name   string         `json:"name"`
	Params []any          `json:"params"`
	Meta   map[string]any `json:"meta,omitempty"`
}

func TestDeterministic(t *testing.T) {
	for _, name := range []string{codec.NameJSON, codec.NameMsgpack} {
		t.Run(name, func(t *testing.T) {
			c := codec.Get(name)
			if c.Name() != name {
				t.Fatalf("Get(%q).Name() = %q", name, c.Name())
			}

			a := record{Name: "AddOne", Params: []any{map[string]any{"base": 5, "a": "x", "z": true}}}
			b := record{Name: "AddOne", Params: []any{map[string]any{"z": true, "base": 5, "a": "x"}}}

			for range 20 {
				ea, err := c.Marshal(a)
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				eb, err := c.Marshal(b)
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				if !bytes.Equal(ea, eb) {
					t.Fatalf("equal values encoded differently:\n%x\n%x", ea, eb)
				}
			}
		})
	}
}

func TestDecodeGenericMaps(t *testing.T) {
	for _, name := range []string{codec.NameJSON, codec.NameMsgpack} {
		t.Run(name, func(t *testing.T) {
			c := codec.Get(name)
			data, err := c.Marshal([]any{"AddOne", []any{map[string]any{"base": 5}}})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var tuple []any
			if err := c.Unmarshal(data, &tuple); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(tuple) != 2 || tuple[0] != "AddOne" {
				t.Fatalf("unexpected tuple %#v", tuple)
			}
			params, ok := tuple[1].([]any)
			if !ok || len(params) != 1 {
				t.Fatalf("unexpected params %#v", tuple[1])
			}
			if _, ok := params[0].(map[string]any); !ok {
				t.Fatalf("expected map[string]any, got %T", params[0])
			}
		})
	}
}

func TestJSONIsCompact(t *testing.T) {
	data, err := codec.JSON{}.Marshal([]any{"AddOne", []any{}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(data); got != `["AddOne",[]]` {
		t.Fatalf("got %s", got)
	}
}
