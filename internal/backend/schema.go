package backend

import "encoding/json"

// HostMapping declares the host document fields: hostname as text with a raw
// keyword sub-field, ip as an address.
var HostMapping = json.RawMessage(`{"properties":{"hostname":{"type":"text","fields":{"raw":{"type":"keyword"}}},"ip":{"type":"ip"}}}`)

// CreateIndexBody builds the create-index request body. Returns nil when both parts are empty.
func CreateIndexBody(settings, mappings json.RawMessage) ([]byte, error) {
	if isEmpty(settings) && isEmpty(mappings) {
		return nil, nil
	}

	body := make(map[string]json.RawMessage, 2)
	if !isEmpty(settings) {
		body["settings"] = settings
	}
	if !isEmpty(mappings) {
		body["mappings"] = mappings
	}
	return json.Marshal(body)
}

func isEmpty(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "{}":
		return true
	}
	return false
}
