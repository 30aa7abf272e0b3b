package job

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// Payload is the job's data, an arbitrary JSON object. On the wire (in the
// broker stream entry) it is carried as a single UTF-8 string field.
type Payload map[string]interface{}

// Marshal renders the payload as the UTF-8 string stored in the stream
// entry's "payload" field.
func (p Payload) Marshal() (string, error) {
	data, err := json.Marshal(map[string]interface{}(p))
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// UnmarshalPayload parses the UTF-8 stream field back into a Payload.
func UnmarshalPayload(s string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

// ToProto converts the payload to a protobuf Struct. The DLQ envelope in
// internal/store is built separately and does not use this helper.
func (p Payload) ToProto() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]interface{}(p))
	if err != nil {
		return nil, fmt.Errorf("convert payload to struct: %w", err)
	}
	return s, nil
}

// PayloadFromProto reverses ToProto.
func PayloadFromProto(s *structpb.Struct) Payload {
	return Payload(s.AsMap())
}
