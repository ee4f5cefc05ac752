package mangle

// BuiltinSchema declares the metric facts the page controller records and the
// rules that grade them. Project schemas loaded from disk are appended to it
// and may derive further predicates from the same facts.
const BuiltinSchema = `
Decl metric_tier(Label, Tier).
Decl metric_value(Label, Seconds).
Decl slow_resource(Url, Initiator).

Decl needs_attention(Label).
Decl borderline(Label).
Decl heavy_initiator(Initiator).

needs_attention(Label) :- metric_tier(Label, "bad").
borderline(Label) :- metric_tier(Label, "warn").

heavy_initiator(Initiator) :-
    slow_resource(UrlA, Initiator),
    slow_resource(UrlB, Initiator),
    UrlA != UrlB.
`

// Predicate names shared with callers.
const (
	PredMetricTier     = "metric_tier"
	PredMetricValue    = "metric_value"
	PredSlowResource   = "slow_resource"
	PredNeedsAttention = "needs_attention"
	PredBorderline     = "borderline"
	PredHeavyInitiator = "heavy_initiator"
)
