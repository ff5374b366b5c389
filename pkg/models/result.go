package models

import (
	"encoding/json"
	"reflect"
)

// Dumper is implemented by typed records that know how to render themselves
// as a generic map for runbook step results and templating.
type Dumper interface {
	Dump() map[string]any
}

// asMap renders a struct as a map via its JSON representation. The JSON
// tags on the payload records define the map keys.
func asMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{}
	}
	return out
}

func (a Alert) Dump() map[string]any            { return asMap(a) }
func (m MetricTimeSeries) Dump() map[string]any { return asMap(m) }
func (l LogEntry) Dump() map[string]any         { return asMap(l) }
func (h HostInfo) Dump() map[string]any         { return asMap(h) }
func (p ProcessInfo) Dump() map[string]any      { return asMap(p) }
func (c ChangeRecord) Dump() map[string]any     { return asMap(c) }
func (k KBArticle) Dump() map[string]any        { return asMap(k) }
func (p PagerIncident) Dump() map[string]any    { return asMap(p) }
func (o OnCallInfo) Dump() map[string]any       { return asMap(o) }
func (c Channel) Dump() map[string]any          { return asMap(c) }
func (m Message) Dump() map[string]any          { return asMap(m) }
func (t Ticket) Dump() map[string]any           { return asMap(t) }

func (d DiagnosticResult) Dump() map[string]any { return asMap(d) }
func (c Classification) Dump() map[string]any   { return asMap(c) }

// CoerceResult normalizes an arbitrary provider return value into a map so
// every runbook step result has a uniform shape:
//
//	nil            -> {}
//	map            -> unchanged
//	Dumper         -> Dump()
//	slice          -> {"items": [...], "count": n}
//	anything else  -> {"value": v}
func CoerceResult(v any) map[string]any {
	switch r := v.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return r
	case Dumper:
		return r.Dump()
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice {
		items := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = coerceElement(rv.Index(i).Interface())
		}
		return map[string]any{"items": items, "count": len(items)}
	}

	return map[string]any{"value": v}
}

// coerceElement renders one slice element: typed records dump to maps,
// scalars pass through.
func coerceElement(v any) any {
	if d, ok := v.(Dumper); ok {
		return d.Dump()
	}
	return v
}
