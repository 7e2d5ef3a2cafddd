package storage

import "encoding/json"

// marshalIds/unmarshalIds encode the zero-or-one-element RelayId/ServiceId
// slices as JSON for storage in a single TEXT column, rather than a second
// join table — these are tiny, rarely-present fields and don't warrant
// relational modeling.
func marshalIds(ids []string) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalIds(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
