package snapshot

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number accepte un nombre JSON, une chaîne numérique, un booléen ou null.
// Toute valeur invalide vaut 0.
type Number float64

func (n *Number) UnmarshalJSON(raw []byte) error {
	*n = Number(looseFloat(raw))
	return nil
}

func looseFloat(raw []byte) float64 {
	raw = bytes.TrimSpace(raw)
	var v float64
	switch {
	case len(raw) == 0 || string(raw) == "null" || string(raw) == "false":
		return 0
	case string(raw) == "true":
		return 1
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		v = f
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return 0
		}
		v = f
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Flag suit la vérité "à la JavaScript" : null, false, 0 et "" sont faux.
type Flag bool

func (f *Flag) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, string(raw) == "null", string(raw) == "false", string(raw) == `""`:
		*f = false
	case string(raw) == "true":
		*f = true
	case raw[0] == '"', raw[0] == '[', raw[0] == '{':
		*f = true
	default:
		v, err := strconv.ParseFloat(string(raw), 64)
		*f = Flag(err == nil && v != 0 && !math.IsNaN(v))
	}
	return nil
}

// Text accepte une chaîne, un nombre (recopié tel quel) ou null ("").
type Text string

func (t *Text) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || string(raw) == "null":
		*t = ""
	case raw[0] == '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			*t = ""
			return nil
		}
		*t = Text(s)
	case raw[0] == '[' || raw[0] == '{':
		*t = ""
	default:
		*t = Text(raw)
	}
	return nil
}

// Pair est une entrée [clé, valeur] d'une table sérialisée.
type Pair[V any] struct {
	Key   string
	Value V
}

// Pairs est une table sérialisée en liste de paires, comme dans le format
// d'export d'origine. Les entrées mal formées sont ignorées.
type Pairs[V any] []Pair[V]

func (p Pairs[V]) MarshalJSON() ([]byte, error) {
	out := make([][2]any, 0, len(p))
	for _, e := range p {
		out = append(out, [2]any{e.Key, e.Value})
	}
	return json.Marshal(out)
}

func (p *Pairs[V]) UnmarshalJSON(raw []byte) error {
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		// une table illisible est traitée comme absente
		return nil
	}
	out := make(Pairs[V], 0, len(entries))
	for _, e := range entries {
		var kv []json.RawMessage
		if err := json.Unmarshal(e, &kv); err != nil || len(kv) != 2 {
			continue
		}
		var key string
		if err := json.Unmarshal(kv[0], &key); err != nil || key == "" {
			continue
		}
		var v V
		if err := json.Unmarshal(kv[1], &v); err != nil {
			continue
		}
		out = append(out, Pair[V]{Key: key, Value: v})
	}
	*p = out
	return nil
}
