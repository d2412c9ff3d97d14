package formats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Built-in format names.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
)

// NewDefaultNetwork creates a network with the built-in formats and
// adapters registered.
func NewDefaultNetwork() *Network {
	n := NewNetwork()
	RegisterDefaults(n)
	return n
}

// RegisterDefaults registers all built-in formats and adapters with the
// network. Call this during application initialisation to enable the
// standard conversions.
func RegisterDefaults(n *Network) {
	// Built-in names are statically valid, so registration cannot fail.
	for _, name := range []string{FormatJSON, FormatCSV, FormatText} {
		_ = n.RegisterFormat(name)
	}

	_ = n.RegisterAdapter(FormatCSV, FormatJSON, csvToJSON)
	_ = n.RegisterAdapter(FormatJSON, FormatCSV, jsonToCSV)
	_ = n.RegisterAdapter(FormatJSON, FormatText, jsonToText)
}

// csvToJSON decodes a header row plus data rows into an array of
// string-valued objects. Short rows leave the trailing keys out.
func csvToJSON(data []byte) ([]byte, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) == 0 {
		return json.Marshal([]map[string]string{})
	}

	header := rows[0]
	objects := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		obj := make(map[string]string, len(header))
		for i, key := range header {
			if i < len(row) {
				obj[key] = row[i]
			}
		}
		objects = append(objects, obj)
	}
	return json.Marshal(objects)
}

// jsonToCSV writes an array of flat objects as CSV. The header is the
// sorted union of all keys, so rows with differing keys line up.
func jsonToCSV(data []byte) ([]byte, error) {
	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("payload is not an array of objects: %w", err)
	}
	if len(objects) == 0 {
		return []byte{}, nil
	}

	keySet := make(map[string]bool)
	for _, obj := range objects {
		for key := range obj {
			keySet[key] = true
		}
	}
	header := make([]string, 0, len(keySet))
	for key := range keySet {
		header = append(header, key)
	}
	sort.Strings(header)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, obj := range objects {
		row := make([]string, len(header))
		for i, key := range header {
			if val, ok := obj[key]; ok {
				row[i] = csvCell(val)
			}
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}

// csvCell renders a decoded JSON value as a CSV cell. Integral floats
// print without the trailing ".0" so a round trip keeps "3" as "3".
func csvCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(encoded)
	}
}

// jsonToText passes the payload through after checking it really is
// JSON. The text format is a sink: nothing converts back out of it.
func jsonToText(data []byte) ([]byte, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return data, nil
}
