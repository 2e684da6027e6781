package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeObject decodes a JSON object keeping numbers as json.Number so that
// unedited values are written back exactly as they were read.
func decodeObject(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("document is not a JSON object")
	}
	return raw, nil
}

// encodeDocument renders raw as indented JSON with a trailing newline.
func encodeDocument(raw map[string]interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// project decodes the raw document into a typed view.
func project(raw map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// normalizeValue round-trips v through JSON so typed values stored in a raw
// document look the same as decoded ones.
func normalizeValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
