package api

import (
	"metriclens/internal/domain"
	"metriclens/internal/service/semantic"
)

type queryRequest struct {
	Table      string             `json:"table,omitempty"`
	Metrics    []metricRequest    `json:"metrics"`
	Dimensions []dimensionRequest `json:"dimensions,omitempty"`
}

type metricRequest struct {
	Name       string `json:"name,omitempty"`
	Aggregate  string `json:"aggregate,omitempty"`
	Source     string `json:"source,omitempty"`
	Expression string `json:"expression,omitempty"`
	Table      string `json:"table,omitempty"`
}

type dimensionRequest struct {
	Table       string        `json:"table,omitempty"`
	Name        string        `json:"name"`
	Granularity string        `json:"granularity,omitempty"`
	Only        []interface{} `json:"only,omitempty"`
	Except      []interface{} `json:"except,omitempty"`
	Where       *whereRequest `json:"where,omitempty"`
}

type whereRequest struct {
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

type queryResponse struct {
	QueryID string       `json:"query_id"`
	Columns []string     `json:"columns"`
	Rows    []domain.Row `json:"rows"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (q queryRequest) toService() semantic.QueryRequest {
	out := semantic.QueryRequest{Table: q.Table}
	for _, m := range q.Metrics {
		out.Metrics = append(out.Metrics, semantic.MetricRequest{
			Name:       m.Name,
			Aggregate:  m.Aggregate,
			Source:     m.Source,
			Expression: m.Expression,
			Table:      m.Table,
		})
	}
	for _, d := range q.Dimensions {
		dim := semantic.DimensionRequest{
			Table:       d.Table,
			Name:        d.Name,
			Granularity: d.Granularity,
			Only:        d.Only,
			Except:      d.Except,
		}
		if d.Where != nil {
			dim.Where = &semantic.WhereRequest{Op: d.Where.Op, Value: d.Where.Value}
		}
		out.Dimensions = append(out.Dimensions, dim)
	}
	return out
}
