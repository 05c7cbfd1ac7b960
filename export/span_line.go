package export

import (
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// spanLine is the exact JSON shape written as one line of a trace file, per
// spec.md §3's Span data model: name, timestamps, optional parent, kind,
// status (with optional description), an attribute map, an ordered event
// list, and a link list.
type spanLine struct {
	TraceID            string         `json:"trace_id"`
	SpanID             string         `json:"span_id"`
	ParentSpanID       string         `json:"parent_span_id,omitempty"`
	Name               string         `json:"name"`
	Kind               string         `json:"kind"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            *time.Time     `json:"end_time,omitempty"`
	Status             string         `json:"status"`
	StatusDescription  string         `json:"status_description,omitempty"`
	Attributes         map[string]any `json:"attributes,omitempty"`
	Events             []eventLine    `json:"events,omitempty"`
	Links              []linkLine     `json:"links,omitempty"`
}

type eventLine struct {
	Name       string         `json:"name"`
	Time       time.Time      `json:"time"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type linkLine struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// sessionIDAttribute is the correlation attribute EnrichmentSubscriber sets
// on every recording span; the exporter groups spans by its value, falling
// back to the sentinel "unknown" session when absent.
const sessionIDAttribute = "session.id"

const unknownSession = "unknown"

func sessionIDOf(span sdktrace.ReadOnlySpan) string {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == sessionIDAttribute {
			if v := kv.Value.AsString(); v != "" {
				return v
			}
		}
	}
	return unknownSession
}

func toSpanLine(span sdktrace.ReadOnlySpan) spanLine {
	sc := span.SpanContext()
	out := spanLine{
		TraceID:    sc.TraceID().String(),
		SpanID:     sc.SpanID().String(),
		Name:       span.Name(),
		Kind:       span.SpanKind().String(),
		StartTime:  span.StartTime(),
		Status:     strings.ToUpper(span.Status().Code.String()),
		Attributes: attrsToMap(span.Attributes()),
	}
	if parent := span.Parent(); parent.HasSpanID() {
		out.ParentSpanID = parent.SpanID().String()
	}
	if end := span.EndTime(); !end.IsZero() {
		out.EndTime = &end
	}
	if desc := span.Status().Description; desc != "" {
		out.StatusDescription = desc
	}
	for _, ev := range span.Events() {
		out.Events = append(out.Events, eventLine{
			Name:       ev.Name,
			Time:       ev.Time,
			Attributes: attrsToMap(ev.Attributes),
		})
	}
	for _, link := range span.Links() {
		out.Links = append(out.Links, linkLine{
			TraceID:    link.SpanContext.TraceID().String(),
			SpanID:     link.SpanContext.SpanID().String(),
			Attributes: attrsToMap(link.Attributes),
		})
	}
	return out
}

func attrsToMap(kvs []attribute.KeyValue) map[string]any {
	if len(kvs) == 0 {
		return nil
	}
	out := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}
