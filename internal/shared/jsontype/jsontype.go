package jsontype

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Map is a JSON object column. Stored as jsonb in postgres.
type Map map[string]any

// Value implements driver.Valuer.
func (m Map) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Map) Scan(value any) error {
	if value == nil {
		*m = Map{}
		return nil
	}
	data, err := asBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, m)
}

// Strings is a JSON string-array column. Stored as jsonb in postgres.
type Strings []string

// Value implements driver.Valuer.
func (s Strings) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *Strings) Scan(value any) error {
	if value == nil {
		*s = Strings{}
		return nil
	}
	data, err := asBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, s)
}

func asBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("jsontype: unsupported column type")
	}
}
