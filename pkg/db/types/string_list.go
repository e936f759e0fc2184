package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// StringList persists an ordered []string as a JSON array. It is used instead of
// native text[] so the same models run against Postgres (jsonb) and SQLite (text).
type StringList []string

func (l *StringList) Scan(src any) error {
	if src == nil {
		*l = StringList{}
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("StringList: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("StringList: decode: %w", err)
	}
	if out == nil {
		out = []string{}
	}
	*l = StringList(out)
	return nil
}

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Strings returns a copy as a plain slice.
func (l StringList) Strings() []string {
	out := make([]string, len(l))
	copy(out, l)
	return out
}
