package config

import (
	"fmt"
	"strings"

	"github.com/magiconair/properties"
)

// Queries is the queries.properties file: the report query and the run log
// location of the data conversion job.
type Queries struct {
	props *properties.Properties
}

// LoadQueries reads the queries file at path.
func LoadQueries(path string) (*Queries, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("load queries properties %s: %w", path, err)
	}
	return &Queries{props: p}, nil
}

// Get returns the trimmed value under key, or "" when it is not set.
func (q *Queries) Get(key string) string {
	v, _ := q.props.Get(key)
	return strings.TrimSpace(v)
}
