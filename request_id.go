package jsonrpc

// AsRequestIntId attempts to interpret id as an integral request id,
// tolerating the JSON-native representation (float64 from encoding/json)
// as well as the various native integer types a caller may have constructed
// an id with directly. ok is false when id is not numeric (e.g. a string id).
func AsRequestIntId(id RequestId) (int, bool) {
	switch v := id.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
