package sources

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tradelens/ingestor/internal/sink"
)

// parseArray returns the array at the document root, or under field when the
// root is an object
func parseArray(body []byte, field string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}

	root := gjson.ParseBytes(body)
	if root.IsObject() {
		root = root.Get(field)
	}
	if !root.Exists() || root.Type == gjson.Null {
		return nil, nil
	}
	if !root.IsArray() {
		return nil, fmt.Errorf("expected a JSON array of %s", field)
	}
	return root.Array(), nil
}

// toRecords keys each item by the string value at keyPath
func toRecords(items []gjson.Result, keyPath string, observedAt time.Time) ([]sink.Record, error) {
	records := make([]sink.Record, 0, len(items))
	for i, item := range items {
		key := item.Get(keyPath).String()
		if key == "" {
			return nil, fmt.Errorf("item %d has no %s", i, keyPath)
		}
		records = append(records, sink.Record{
			Key:        key,
			Payload:    json.RawMessage(item.Raw),
			ObservedAt: observedAt,
		})
	}
	return records, nil
}

func joinURL(endpoint string, parts ...string) string {
	return strings.TrimRight(endpoint, "/") + "/" + strings.Join(parts, "/")
}
