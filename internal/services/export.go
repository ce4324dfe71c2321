package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/echosage/microlog/internal/models"
)

type CodecStore interface {
	Snapshot() *models.Document
	Replace(doc *models.Document) error
}

// ExportService serializes the full store to a portable JSON document and to
// per-collection CSV tables, and replaces the store wholesale on import.
type ExportService struct {
	store CodecStore
}

func NewExportService(store CodecStore) *ExportService {
	return &ExportService{store: store}
}

// ExportJSON renders the full document, an exact mirror of persisted state.
func (s *ExportService) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s.store.Snapshot(), "", "  ")
}

// Collections lists the tabular export targets in a stable order.
func Collections() []string {
	return []string{"baseline", "doses", "daily", "weekly", "ftt"}
}

// ExportCSV flattens one collection into CSV. The header is the union of
// keys across the collection's records in first-seen order; nested objects
// (the baseline's questionnaire results) flatten to underscore-joined keys;
// null values render as empty fields. csv.Writer handles quote escaping.
func (s *ExportService) ExportCSV(collection string) ([]byte, error) {
	doc := s.store.Snapshot()
	records, err := collectionRecords(doc, collection)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []byte{}, nil
	}
	return recordsToCSV(records)
}

func collectionRecords(doc *models.Document, collection string) ([][]byte, error) {
	marshalAll := func(n int, at func(int) any) ([][]byte, error) {
		out := make([][]byte, 0, n)
		for i := 0; i < n; i++ {
			b, err := json.Marshal(at(i))
			if err != nil {
				return nil, err
			}
			out = append(out, b)
		}
		return out, nil
	}
	switch collection {
	case "baseline":
		if doc.Baseline == nil {
			return nil, nil
		}
		b, err := json.Marshal(doc.Baseline)
		if err != nil {
			return nil, err
		}
		return [][]byte{b}, nil
	case "doses":
		return marshalAll(len(doc.Doses), func(i int) any { return doc.Doses[i] })
	case "daily":
		return marshalAll(len(doc.Daily), func(i int) any { return doc.Daily[i] })
	case "weekly":
		return marshalAll(len(doc.Weekly), func(i int) any { return doc.Weekly[i] })
	case "ftt":
		return marshalAll(len(doc.FTT), func(i int) any { return doc.FTT[i] })
	default:
		return nil, NewNotFoundError(fmt.Sprintf("unknown collection %q", collection))
	}
}

func recordsToCSV(records [][]byte) ([]byte, error) {
	var header []string
	seen := map[string]bool{}
	rows := make([]map[string]any, 0, len(records))
	for _, raw := range records {
		keys, vals, err := flattenRecord(raw)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
		rows = append(rows, vals)
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, vals := range rows {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = formatCell(vals[k])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// flattenRecord walks a marshaled record and returns its keys in document
// order together with the flattened values. Nested objects contribute
// prefix_key entries; arrays stay whole and render as JSON.
func flattenRecord(raw []byte) ([]string, map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tk, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if tk != json.Delim('{') {
		return nil, nil, fmt.Errorf("record is not an object")
	}
	keys := []string{}
	vals := map[string]any{}
	if err := flattenObject(dec, "", &keys, vals); err != nil {
		return nil, nil, err
	}
	return keys, vals, nil
}

func flattenObject(dec *json.Decoder, prefix string, keys *[]string, vals map[string]any) error {
	for dec.More() {
		tk, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tk.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tk)
		}
		if prefix != "" {
			key = prefix + "_" + key
		}
		val, err := dec.Token()
		if err != nil {
			return err
		}
		switch v := val.(type) {
		case json.Delim:
			switch v {
			case json.Delim('{'):
				if err := flattenObject(dec, key, keys, vals); err != nil {
					return err
				}
				continue
			case json.Delim('['):
				arr := []any{}
				for dec.More() {
					var el any
					if err := dec.Decode(&el); err != nil {
						return err
					}
					arr = append(arr, el)
				}
				if _, err := dec.Token(); err != nil { // closing ]
					return err
				}
				*keys = append(*keys, key)
				vals[key] = arr
				continue
			}
			return fmt.Errorf("unexpected delimiter %v", v)
		default:
			*keys = append(*keys, key)
			vals[key] = v
		}
	}
	_, err := dec.Token() // closing }
	return err
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Import parses a full document, checks the required top-level markers and
// replaces the store wholesale. Any failure leaves the store untouched.
func (s *ExportService) Import(data []byte) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return NewInvalidError("invalid JSON")
	}
	for _, k := range []string{"meta", "participant", "daily"} {
		if raw, ok := probe[k]; !ok || string(raw) == "null" {
			return NewInvalidError("invalid data format: missing " + k)
		}
	}
	var doc models.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return NewInvalidError("invalid document: " + err.Error())
	}
	return s.store.Replace(&doc)
}
