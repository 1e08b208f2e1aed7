// Package metric orders requested metrics by their dependency graph and
// classifies each one as database-computable or software-computable.
package metric

import (
	"metriclens/internal/domain"
)

const (
	colorWhite = iota
	colorGray
	colorBlack
)

func index(metrics []domain.NormalizedMetric) map[string]domain.NormalizedMetric {
	byKey := make(map[string]domain.NormalizedMetric, len(metrics))
	for _, m := range metrics {
		byKey[m.Key] = m
	}
	return byKey
}

// Resolve topologically orders metrics so every dependency appears before its
// dependents. A metric that depends transitively on itself yields a
// CircularDependencyError naming the offending key. Dependencies on keys
// outside the metric set are ignored here; they surface as nulls at
// evaluation time.
func Resolve(metrics []domain.NormalizedMetric) ([]domain.NormalizedMetric, error) {
	byKey := index(metrics)
	color := make(map[string]int, len(metrics))
	order := make([]domain.NormalizedMetric, 0, len(metrics))

	var visit func(key string) error
	visit = func(key string) error {
		switch color[key] {
		case colorGray:
			return domain.ErrCircularDependency(key)
		case colorBlack:
			return nil
		}
		color[key] = colorGray

		m := byKey[key]
		for _, dep := range m.Dependencies {
			if _, ok := byKey[dep]; !ok {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		color[key] = colorBlack
		order = append(order, m)
		return nil
	}

	for _, m := range metrics {
		if err := visit(m.Key); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Levels computes each metric's dependency level: 0 with no dependencies,
// else one more than the deepest dependency.
func Levels(metrics []domain.NormalizedMetric) (map[string]int, error) {
	byKey := index(metrics)
	levels := make(map[string]int, len(metrics))
	color := make(map[string]int, len(metrics))

	var levelOf func(key string) (int, error)
	levelOf = func(key string) (int, error) {
		if lvl, ok := levels[key]; ok {
			return lvl, nil
		}
		if color[key] == colorGray {
			return 0, domain.ErrCircularDependency(key)
		}
		color[key] = colorGray

		m := byKey[key]
		lvl := 0
		for _, dep := range m.Dependencies {
			if _, ok := byKey[dep]; !ok {
				continue
			}
			depLvl, err := levelOf(dep)
			if err != nil {
				return 0, err
			}
			if depLvl+1 > lvl {
				lvl = depLvl + 1
			}
		}

		color[key] = colorBlack
		levels[key] = lvl
		return lvl, nil
	}

	for _, m := range metrics {
		if _, err := levelOf(m.Key); err != nil {
			return nil, err
		}
	}
	return levels, nil
}

// GroupByLevel buckets metrics by dependency level for layered execution.
func GroupByLevel(metrics []domain.NormalizedMetric) (map[int][]domain.NormalizedMetric, error) {
	levels, err := Levels(metrics)
	if err != nil {
		return nil, err
	}
	grouped := map[int][]domain.NormalizedMetric{}
	for _, m := range metrics {
		lvl := levels[m.Key]
		grouped[lvl] = append(grouped[lvl], m)
	}
	return grouped, nil
}

// SplitByStrategy partitions metrics into database-computable and
// software-computable sets. A metric is database-computable iff it has no
// dependencies, or every transitively resolved dependency lives on the same
// table and is itself database-computable. A dependency chain that crosses
// tables, or references a key outside the set, forces software computation.
func SplitByStrategy(metrics []domain.NormalizedMetric) (database, software []domain.NormalizedMetric, err error) {
	byKey := index(metrics)
	memo := make(map[string]bool, len(metrics))
	color := make(map[string]int, len(metrics))

	var dbComputable func(key string) (bool, error)
	dbComputable = func(key string) (bool, error) {
		if v, ok := memo[key]; ok {
			return v, nil
		}
		if color[key] == colorGray {
			return false, domain.ErrCircularDependency(key)
		}
		color[key] = colorGray

		m := byKey[key]
		result := true
		for _, dep := range m.Dependencies {
			depMetric, ok := byKey[dep]
			if !ok {
				result = false
				break
			}
			if depMetric.Table != m.Table {
				result = false
				break
			}
			depDB, derr := dbComputable(dep)
			if derr != nil {
				return false, derr
			}
			if !depDB {
				result = false
				break
			}
		}

		color[key] = colorBlack
		memo[key] = result
		return result, nil
	}

	for _, m := range metrics {
		db, cerr := dbComputable(m.Key)
		if cerr != nil {
			return nil, nil, cerr
		}
		if db {
			database = append(database, m)
		} else {
			software = append(software, m)
		}
	}
	return database, software, nil
}
