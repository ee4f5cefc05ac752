package mangle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"perfoverlay/internal/config"
	"perfoverlay/internal/metrics"
	"perfoverlay/internal/xslog"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// ErrNotReady is returned by queries when the engine is disabled or has no
// program loaded.
var ErrNotReady = errors.New("engine not ready")

// Fact is a predicate with plain Go arguments.
type Fact struct {
	Predicate string    `json:"predicate"`
	Args      []any     `json:"args"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryResult binds query variables to values.
type QueryResult map[string]any

// Attention is the graded view of one page's facts.
type Attention struct {
	NeedsAttention  []string `json:"needs_attention"`
	Borderline      []string `json:"borderline"`
	HeavyInitiators []string `json:"heavy_initiators"`
}

// Engine wraps a Mangle program and fact store for one page's metrics.
type Engine struct {
	cfg    config.MangleConfig
	logger *slog.Logger

	mu          sync.RWMutex
	programInfo *analysis.ProgramInfo
	store       factstore.FactStore

	// history is a bounded log of every recorded fact, served by page-attention.
	history []Fact
}

func NewEngine(cfg config.MangleConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = xslog.Discard()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logger,
		store:  factstore.NewSimpleInMemoryStore(),
	}
	if !cfg.Enable {
		return e, nil
	}

	extra := ""
	if cfg.SchemaPath != "" {
		data, err := os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		extra = string(data)
	}
	if err := e.LoadSchemaSource(extra); err != nil {
		return nil, err
	}
	return e, nil
}

// LoadSchemaSource parses and analyzes the built-in schema followed by extra.
func (e *Engine) LoadSchemaSource(extra string) error {
	src := BuiltinSchema
	if strings.TrimSpace(extra) != "" {
		src += "\n" + extra
	}

	unit, err := parse.Unit(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("parse schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, make(map[ast.PredicateSym]ast.Decl))
	if err != nil {
		return fmt.Errorf("analyze schema: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.programInfo = programInfo
	return nil
}

// Record replaces the page's facts with the current samples and slowest
// resources, then re-evaluates the program.
func (e *Engine) Record(ctx context.Context, samples []metrics.MetricSample, summary metrics.ResourceSummary) error {
	if !e.cfg.Enable {
		return nil
	}

	now := time.Now()
	facts := make([]Fact, 0, 2*len(samples)+len(summary.Slowest))
	for _, s := range samples {
		facts = append(facts,
			Fact{Predicate: PredMetricTier, Args: []any{s.Label, string(s.Tier)}, Timestamp: now},
			Fact{Predicate: PredMetricValue, Args: []any{s.Label, s.ValueSeconds}, Timestamp: now},
		)
	}
	for _, r := range summary.Slowest {
		facts = append(facts, Fact{Predicate: PredSlowResource, Args: []any{r.URL, r.InitiatorType}, Timestamp: now})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.store = factstore.NewSimpleInMemoryStore()
	return e.addLocked(ctx, facts)
}

func (e *Engine) addLocked(ctx context.Context, facts []Fact) error {
	for _, f := range facts {
		e.store.Add(factToAtom(f))
	}

	e.history = append(e.history, facts...)
	if limit := e.cfg.FactBufferLimit; limit > 0 && len(e.history) > limit {
		e.history = slices.Clone(e.history[len(e.history)-limit:])
	}

	if e.programInfo == nil {
		return nil
	}
	if err := engine.EvalProgram(e.programInfo, e.store); err != nil {
		e.logger.WarnContext(ctx, "mangle evaluation failed", xslog.Error(err))
		return fmt.Errorf("eval program: %w", err)
	}
	return nil
}

// Evaluate returns every fact currently known for predicate, extensional or derived.
func (e *Engine) Evaluate(ctx context.Context, predicate string) ([]Fact, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enable || e.programInfo == nil {
		return nil, ErrNotReady
	}

	arity := -1
	for sym := range e.programInfo.Decls {
		if sym.Symbol == predicate {
			arity = sym.Arity
			break
		}
	}
	if arity < 0 {
		return nil, fmt.Errorf("unknown predicate %q", predicate)
	}

	args := make([]ast.BaseTerm, arity)
	for i := range args {
		args[i] = ast.Variable{Symbol: fmt.Sprintf("V%d", i)}
	}
	query := ast.Atom{Predicate: ast.PredicateSym{Symbol: predicate, Arity: arity}, Args: args}

	facts := make([]Fact, 0)
	now := time.Now()
	err := e.store.GetFacts(query, func(atom ast.Atom) error {
		facts = append(facts, atomToFact(atom, now))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get facts: %w", err)
	}
	return facts, nil
}

// Query matches a single atom such as `needs_attention(X).` against the
// store and binds its variables.
func (e *Engine) Query(ctx context.Context, queryStr string) ([]QueryResult, error) {
	unit, err := parse.Unit(strings.NewReader(queryStr))
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	if len(unit.Clauses) == 0 {
		return nil, errors.New("no query found")
	}
	queryAtom := unit.Clauses[0].Head

	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.cfg.Enable || e.programInfo == nil {
		return nil, ErrNotReady
	}

	results := make([]QueryResult, 0)
	err = e.store.GetFacts(queryAtom, func(atom ast.Atom) error {
		result := make(QueryResult)
		for i, arg := range queryAtom.Args {
			if i >= len(atom.Args) {
				break
			}
			if v, ok := arg.(ast.Variable); ok && v.Symbol != "_" {
				result[v.Symbol] = convertConstant(atom.Args[i])
			}
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query execution: %w", err)
	}
	return results, nil
}

// Attention collects the derived predicates into sorted lists.
func (e *Engine) Attention(ctx context.Context) (Attention, error) {
	var att Attention
	for _, target := range []struct {
		pred string
		out  *[]string
	}{
		{PredNeedsAttention, &att.NeedsAttention},
		{PredBorderline, &att.Borderline},
		{PredHeavyInitiator, &att.HeavyInitiators},
	} {
		facts, err := e.Evaluate(ctx, target.pred)
		if err != nil {
			return Attention{}, err
		}
		values := make([]string, 0, len(facts))
		for _, f := range facts {
			if len(f.Args) > 0 {
				values = append(values, fmt.Sprint(f.Args[0]))
			}
		}
		slices.Sort(values)
		*target.out = slices.Compact(values)
	}
	return att, nil
}

// History returns a copy of the bounded fact log.
func (e *Engine) History() []Fact {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.history)
}

func factToAtom(f Fact) ast.Atom {
	args := make([]ast.BaseTerm, len(f.Args))
	for i, arg := range f.Args {
		args[i] = toConstant(arg)
	}
	return ast.Atom{
		Predicate: ast.PredicateSym{Symbol: f.Predicate, Arity: len(f.Args)},
		Args:      args,
	}
}

func atomToFact(atom ast.Atom, ts time.Time) Fact {
	args := make([]any, len(atom.Args))
	for i, arg := range atom.Args {
		args[i] = convertConstant(arg)
	}
	return Fact{Predicate: atom.Predicate.Symbol, Args: args, Timestamp: ts}
}

func toConstant(v any) ast.Constant {
	switch val := v.(type) {
	case string:
		return ast.String(val)
	case int:
		return ast.Number(int64(val))
	case int64:
		return ast.Number(val)
	case float64:
		return ast.Float64(val)
	case bool:
		if val {
			return ast.String("true")
		}
		return ast.String("false")
	default:
		return ast.String(fmt.Sprintf("%v", v))
	}
}

func convertConstant(c ast.BaseTerm) any {
	term, ok := c.(ast.Constant)
	if !ok {
		return fmt.Sprintf("%v", c)
	}
	switch term.Type {
	case ast.StringType:
		if val, err := term.StringValue(); err == nil {
			return val
		}
	case ast.NumberType:
		if val, err := term.NumberValue(); err == nil {
			return val
		}
	case ast.Float64Type:
		if val, err := term.Float64Value(); err == nil {
			return val
		}
	}
	return term.String()
}
