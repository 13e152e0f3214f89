package payload

import "encoding/json"

// Payload is a serialized input, result, or error value.
type Payload = json.RawMessage
