package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"metriclens/internal/domain"
)

// yamlSchema is the on-disk schema document shape.
type yamlSchema struct {
	Tables []yamlTable `yaml:"tables"`
}

type yamlTable struct {
	Name       string          `yaml:"name"`
	Connection string          `yaml:"connection"`
	Dimensions []yamlDimension `yaml:"dimensions"`
	Relations  []yamlRelation  `yaml:"relations"`
}

type yamlDimension struct {
	Name        string `yaml:"name"`
	Column      string `yaml:"column"`
	Granularity string `yaml:"granularity"`
}

type yamlRelation struct {
	To              string `yaml:"to"`
	Kind            string `yaml:"kind"`
	ForeignKey      string `yaml:"foreign_key"`
	OwnerKey        string `yaml:"owner_key"`
	LocalKey        string `yaml:"local_key"`
	PivotTable      string `yaml:"pivot_table"`
	PivotForeignKey string `yaml:"pivot_foreign_key"`
	PivotRelatedKey string `yaml:"pivot_related_key"`
}

// Parse builds a provider from a YAML schema document.
func Parse(data []byte) (*StaticProvider, error) {
	var doc yamlSchema
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, domain.ErrValidation("schema defines no tables")
	}

	provider := &StaticProvider{}
	byName := map[string]domain.Table{}
	for _, yt := range doc.Tables {
		if yt.Name == "" {
			return nil, domain.ErrValidation("schema table without a name")
		}
		if yt.Connection == "" {
			return nil, domain.ErrValidation("table %q has no connection", yt.Name)
		}
		table := domain.Table{Name: yt.Name, Connection: yt.Connection}
		if _, dup := byName[yt.Name]; dup {
			return nil, domain.ErrValidation("table %q defined twice", yt.Name)
		}
		byName[yt.Name] = table
		provider.TableList = append(provider.TableList, table)

		for _, yd := range yt.Dimensions {
			if yd.Name == "" || yd.Column == "" {
				return nil, domain.ErrValidation("table %q: dimensions require name and column", yt.Name)
			}
			provider.DimensionList = append(provider.DimensionList, domain.Dimension{
				Name:        yd.Name,
				Table:       table,
				Column:      yd.Column,
				Granularity: yd.Granularity,
			})
		}
	}

	// Second pass so relations can reference tables defined later.
	for _, yt := range doc.Tables {
		from := byName[yt.Name]
		for _, yr := range yt.Relations {
			to, ok := byName[yr.To]
			if !ok {
				return nil, domain.ErrValidation("table %q: relation targets unknown table %q", yt.Name, yr.To)
			}
			rel := domain.Relation{
				From: from,
				To:   to,
				Kind: strings.ToUpper(strings.TrimSpace(yr.Kind)),
				Keys: domain.RelationKeys{
					ForeignKey:      yr.ForeignKey,
					OwnerKey:        yr.OwnerKey,
					LocalKey:        yr.LocalKey,
					PivotTable:      yr.PivotTable,
					PivotForeignKey: yr.PivotForeignKey,
					PivotRelatedKey: yr.PivotRelatedKey,
				},
			}
			if err := rel.Validate(); err != nil {
				return nil, err
			}
			provider.RelationList = append(provider.RelationList, rel)
		}
	}
	return provider, nil
}

// LoadFile parses a YAML schema file into a provider.
func LoadFile(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return Parse(data)
}
