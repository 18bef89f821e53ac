package optimizer

import (
	"errors"
	"flag"
	"fmt"
	"slices"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/flagext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/polystore/polystore/pkg/engine/internal/planner/logical"
)

// Config configures the optimizer.
type Config struct {
	// MaxIterations bounds the number of rule applications per plan. Rule
	// sets that rewrite back and forth stop once the budget is used up.
	MaxIterations int `yaml:"max_iterations"`

	// DisabledRules lists rules by name that are never applied.
	DisabledRules flagext.StringSliceCSV `yaml:"disabled_rules"`
}

// RegisterFlags registers the flags of the optimizer.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	f.IntVar(&cfg.MaxIterations, prefix+"optimizer.max-iterations", 64, "Maximum number of rule applications when optimizing a single plan.")
	f.Var(&cfg.DisabledRules, prefix+"optimizer.disabled-rules", "Comma separated list of optimizer rules that are never applied.")
}

// Validate validates the config.
func (cfg *Config) Validate() error {
	if cfg.MaxIterations <= 0 {
		return fmt.Errorf("invalid max iterations for optimizer. must be greater than 0, got %d", cfg.MaxIterations)
	}
	return nil
}

// Result describes a call to [Optimizer.Optimize].
type Result struct {
	// Applications lists the names of the applied rules in order.
	Applications []string
	// Converged is true if no rule matched the final plan. It is false if
	// the iteration budget was used up.
	Converged bool
}

type metrics struct {
	applications *prometheus.CounterVec
	iterations   prometheus.Histogram
	budgetHits   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		applications: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "polystore_engine_optimizer_rule_applications_total",
			Help: "Total number of rule applications by rule",
		}, []string{"rule"}),
		iterations: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "polystore_engine_optimizer_iterations",
			Help: "Number of rule applications per optimized plan",

			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: time.Hour,
		}),
		budgetHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "polystore_engine_optimizer_budget_exhausted_total",
			Help: "Total number of plans whose optimization stopped because the iteration budget was used up",
		}),
	}
}

// The Optimizer rewrites logical plans by applying rules until no rule
// matches anymore or the iteration budget is used up.
type Optimizer struct {
	cfg     Config
	logger  log.Logger
	metrics *metrics
	rules   []Rule
}

// New creates an optimizer applying rules in the given order. Rules listed
// in cfg.DisabledRules are dropped.
func New(cfg Config, rules []Rule, logger log.Logger, reg prometheus.Registerer) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}

	names := make(map[string]struct{}, len(rules))
	enabled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if _, ok := names[r.Name()]; ok {
			return nil, fmt.Errorf("duplicate rule %s", r.Name())
		}
		names[r.Name()] = struct{}{}
		if slices.Contains(cfg.DisabledRules, r.Name()) {
			continue
		}
		enabled = append(enabled, r)
	}
	for _, name := range cfg.DisabledRules {
		if _, ok := names[name]; !ok {
			return nil, fmt.Errorf("unknown rule %s", name)
		}
	}

	return &Optimizer{
		cfg:     cfg,
		logger:  logger,
		metrics: newMetrics(reg),
		rules:   enabled,
	}, nil
}

// Rules returns the names of the enabled rules in the order they are tried.
func (o *Optimizer) Rules() []string {
	names := make([]string, len(o.rules))
	for i, r := range o.rules {
		names[i] = r.Name()
	}
	return names
}

// Optimize rewrites plan in place. Every iteration walks the plan from the
// root in pre-order and applies the first rule that matches a node, trying
// rules in order. Optimize stops once an iteration finds no match or the
// iteration budget is used up.
func (o *Optimizer) Optimize(plan *logical.Plan) (Result, error) {
	var res Result
	if err := plan.Validate(); err != nil {
		return res, fmt.Errorf("invalid plan: %w", err)
	}

	for {
		id, rule, ok := o.findMatch(plan)
		if !ok {
			res.Converged = true
			break
		}
		if len(res.Applications) >= o.cfg.MaxIterations {
			o.metrics.budgetHits.Inc()
			level.Warn(o.logger).Log("msg", "optimizer iteration budget exhausted", "max_iterations", o.cfg.MaxIterations, "next_rule", rule.Name())
			break
		}
		if err := o.apply(plan, id, rule); err != nil {
			return res, fmt.Errorf("applying rule %s on node #%d: %w", rule.Name(), id, err)
		}
		res.Applications = append(res.Applications, rule.Name())
	}

	o.metrics.iterations.Observe(float64(len(res.Applications)))
	return res, nil
}

var errMatchFound = errors.New("match found")

// findMatch returns the first node and rule whose operand and guard
// succeed.
func (o *Optimizer) findMatch(plan *logical.Plan) (logical.NodeID, Rule, bool) {
	var (
		matchedID   logical.NodeID
		matchedRule Rule
	)

	err := plan.Walk(func(id logical.NodeID, _ logical.Operator) error {
		for _, r := range o.rules {
			if !Match(plan, logical.OperatorSource(id), r.Operand()) {
				continue
			}
			if !r.Matches(newRuleCall(plan, id)) {
				continue
			}
			matchedID, matchedRule = id, r
			return errMatchFound
		}
		return nil
	}, logical.PreOrderWalk)

	if !errors.Is(err, errMatchFound) {
		return logical.InvalidNodeID, nil, false
	}
	return matchedID, matchedRule, true
}

// apply runs rule on node id and replaces the node with the registered
// replacement in all of its parents.
func (o *Optimizer) apply(plan *logical.Plan, id logical.NodeID, rule Rule) error {
	matched := logical.OperatorSource(id)
	parents := plan.Parents(id)
	isRoot := plan.Root() == matched

	call := newRuleCall(plan, id)
	if err := rule.OnMatch(call); err != nil {
		return err
	}
	replacement, ok := call.Result()
	if !ok {
		return errors.New("rule did not register a replacement")
	}

	if replacement != matched {
		for _, slot := range parents {
			if err := plan.SetSource(slot.Node, slot.Index, replacement); err != nil {
				return err
			}
		}
		if isRoot {
			if err := plan.SetRoot(replacement); err != nil {
				return err
			}
		}
	}
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("rewritten plan is invalid: %w", err)
	}

	o.metrics.applications.WithLabelValues(rule.Name()).Inc()
	level.Debug(o.logger).Log("msg", "applied rule", "rule", rule.Name(), "category", rule.Category(), "node", id, "replacement", replacement)
	return nil
}
