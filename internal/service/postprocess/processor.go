// Package postprocess finishes derived metrics the execution plan left
// uncomputed, evaluating their expressions row by row in dependency order.
package postprocess

import (
	"log/slog"
	"sort"

	"metriclens/internal/domain"
	"metriclens/internal/expression"
	"metriclens/internal/service/metric"
)

// Processor evaluates computed-metric expressions over result rows.
type Processor struct {
	logger *slog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{logger: logger}
}

type compiled struct {
	metric domain.NormalizedMetric
	node   expression.Node
	// always re-evaluate software metrics; database-classified metrics
	// are only promoted here when the plan never materialized their alias
	always bool
}

// Process fills in computed metrics for each row, level by level, so a
// higher-level metric sees its dependencies' freshly computed values. A
// referenced key missing from a row degrades that one metric to null; it is
// never an error.
func (p *Processor) Process(rows []domain.Row, metrics []domain.NormalizedMetric) ([]domain.Row, error) {
	_, software, err := metric.SplitByStrategy(metrics)
	if err != nil {
		return nil, err
	}
	levels, err := metric.Levels(metrics)
	if err != nil {
		return nil, err
	}

	softwareKeys := map[string]bool{}
	for _, m := range software {
		softwareKeys[m.Key] = true
	}

	byLevel := map[int][]compiled{}
	var levelOrder []int
	for _, m := range metrics {
		def, ok := m.Definition.(domain.Computed)
		if !ok {
			continue
		}
		node, perr := expression.Parse(def.Expression)
		if perr != nil {
			return nil, domain.ErrValidation("metric %q: invalid expression: %v", m.Key, perr)
		}
		lvl := levels[m.Key]
		if len(byLevel[lvl]) == 0 {
			levelOrder = append(levelOrder, lvl)
		}
		byLevel[lvl] = append(byLevel[lvl], compiled{
			metric: m,
			node:   node,
			always: softwareKeys[m.Key],
		})
	}
	if len(byLevel) == 0 {
		return rows, nil
	}
	sort.Ints(levelOrder)

	for _, row := range rows {
		for _, lvl := range levelOrder {
			for _, c := range byLevel[lvl] {
				if !c.always {
					if _, present := row[c.metric.Key]; present {
						continue
					}
				}
				if value, ok := expression.Evaluate(c.node, row); ok {
					row[c.metric.Key] = value
				} else {
					row[c.metric.Key] = nil
				}
			}
		}
	}
	return rows, nil
}
