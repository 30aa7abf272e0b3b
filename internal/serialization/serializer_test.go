package serialization

import (
	"strings"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"
)

func TestSerializer_Marshal_JSON(t *testing.T) {
	s := NewJSONSerializer()

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	data := testData{Name: "test", Value: 42}
	bytes, err := s.Marshal(data)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if bytes[0] != byte(FormatJSON) {
		t.Errorf("Expected JSON format prefix, got %d", bytes[0])
	}
	if !strings.Contains(string(bytes[1:]), "test") {
		t.Errorf("JSON content not found in serialized data")
	}
}

func testEnvelope(t *testing.T) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(map[string]interface{}{
		"job_id":  "job-42",
		"payload": `{"k":"v"}`,
		"reason":  "handler timeout",
	})
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func TestSerializer_Marshal_Protobuf(t *testing.T) {
	s := NewProtobufSerializer()

	bytes, err := s.Marshal(testEnvelope(t))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	if bytes[0] != byte(FormatProtobuf) {
		t.Errorf("Expected Protobuf format prefix, got %d", bytes[0])
	}

	payload := string(bytes[1:])
	if strings.Contains(payload, `"job_id"`) || strings.HasPrefix(payload, `{`) {
		t.Errorf("Protobuf should not be in JSON format")
	}
}

func TestSerializer_Unmarshal_JSON(t *testing.T) {
	s := NewJSONSerializer()

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	original := testData{Name: "test", Value: 42}
	bytes, err := s.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var result testData
	if err := s.Unmarshal(bytes, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if result.Name != original.Name || result.Value != original.Value {
		t.Errorf("Unmarshal produced incorrect result: got %+v, want %+v", result, original)
	}
}

func TestSerializer_Unmarshal_Protobuf(t *testing.T) {
	s := NewProtobufSerializer()
	original := testEnvelope(t)

	bytes, err := s.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	result := &structpb.Struct{}
	if err := s.Unmarshal(bytes, result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result.AsMap()["job_id"] != original.AsMap()["job_id"] {
		t.Errorf("job_id mismatch: got %v, want %v", result.AsMap()["job_id"], original.AsMap()["job_id"])
	}
	if result.AsMap()["reason"] != original.AsMap()["reason"] {
		t.Errorf("reason mismatch")
	}
}

func TestSerializer_DetectFormat_WithPrefix(t *testing.T) {
	s := NewSerializer(FormatJSON)

	tests := []struct {
		name           string
		data           []byte
		expectedFormat PayloadFormat
		expectError    bool
	}{
		{
			name:           "JSON with prefix",
			data:           []byte{byte(FormatJSON), '{', '}'},
			expectedFormat: FormatJSON,
			expectError:    false,
		},
		{
			name:           "Protobuf with prefix",
			data:           []byte{byte(FormatProtobuf), 0x0a, 0x05},
			expectedFormat: FormatProtobuf,
			expectError:    false,
		},
		{
			name:           "Legacy JSON without prefix",
			data:           []byte("{\"key\":\"value\"}"),
			expectedFormat: FormatJSON,
			expectError:    false,
		},
		{
			name:           "Legacy JSON array without prefix",
			data:           []byte("[1,2,3]"),
			expectedFormat: FormatJSON,
			expectError:    false,
		},
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, payload, err := s.DetectFormat(tt.data)

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error but got none")
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if format != tt.expectedFormat {
				t.Errorf("Format mismatch: got %d, want %d", format, tt.expectedFormat)
			}

			if tt.data[0] == byte(FormatJSON) || tt.data[0] == byte(FormatProtobuf) {
				if len(payload) != len(tt.data)-1 {
					t.Errorf("Payload length mismatch: got %d, want %d", len(payload), len(tt.data)-1)
				}
			}
		})
	}
}

func TestSerializer_BackwardCompatibility_JSON(t *testing.T) {
	s := NewProtobufSerializer() // Default to protobuf

	legacyJSON := []byte("{\"name\":\"test\",\"value\":123}")

	type testData struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	var result testData
	if err := s.Unmarshal(legacyJSON, &result); err != nil {
		t.Fatalf("Failed to unmarshal legacy JSON: %v", err)
	}

	if result.Name != "test" || result.Value != 123 {
		t.Errorf("Legacy JSON deserialization failed: got %+v", result)
	}
}

func TestSerializer_IsProtobuf(t *testing.T) {
	s := NewSerializer(FormatJSON)

	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{name: "Protobuf with prefix", data: []byte{byte(FormatProtobuf), 0x0a, 0x05}, expected: true},
		{name: "JSON with prefix", data: []byte{byte(FormatJSON), '{', '}'}, expected: false},
		{name: "Legacy JSON", data: []byte("{\"key\":\"value\"}"), expected: false},
		{name: "Empty", data: []byte{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.IsProtobuf(tt.data)
			if result != tt.expected {
				t.Errorf("IsProtobuf() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSerializer_IsJSON(t *testing.T) {
	s := NewSerializer(FormatJSON)

	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{name: "JSON with prefix", data: []byte{byte(FormatJSON), '{', '}'}, expected: true},
		{name: "Legacy JSON object", data: []byte("{\"key\":\"value\"}"), expected: true},
		{name: "Legacy JSON array", data: []byte("[1,2,3]"), expected: true},
		{name: "Protobuf with prefix", data: []byte{byte(FormatProtobuf), 0x0a, 0x05}, expected: false},
		{name: "Empty", data: []byte{}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.IsJSON(tt.data)
			if result != tt.expected {
				t.Errorf("IsJSON() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestSerializer_MarshalWithFormat(t *testing.T) {
	s := NewSerializer(FormatJSON)

	type testData struct {
		Name string `json:"name"`
	}

	data := testData{Name: "test"}

	jsonBytes, err := s.MarshalWithFormat(data, FormatJSON)
	if err != nil {
		t.Fatalf("MarshalWithFormat(JSON) failed: %v", err)
	}
	if jsonBytes[0] != byte(FormatJSON) {
		t.Errorf("Expected JSON prefix")
	}

	_, err = s.MarshalWithFormat(data, FormatProtobuf)
	if err == nil {
		t.Errorf("Expected error when marshaling non-proto message as protobuf")
	}
}

func TestSerializer_UnmarshalWithFormat(t *testing.T) {
	s := NewSerializer(FormatJSON)

	type testData struct {
		Name string `json:"name"`
	}

	original := testData{Name: "test"}

	bytes, err := s.MarshalWithFormat(original, FormatJSON)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	_, payload, err := s.DetectFormat(bytes)
	if err != nil {
		t.Fatalf("DetectFormat failed: %v", err)
	}

	var result testData
	if err := s.UnmarshalWithFormat(payload, &result, FormatJSON); err != nil {
		t.Fatalf("UnmarshalWithFormat failed: %v", err)
	}

	if result.Name != original.Name {
		t.Errorf("Data mismatch after unmarshal")
	}
}

func TestSerializer_ErrorCases(t *testing.T) {
	s := NewSerializer(FormatJSON)

	t.Run("Empty payload unmarshal", func(t *testing.T) {
		var result map[string]string
		err := s.Unmarshal([]byte{}, &result)
		if err == nil {
			t.Errorf("Expected error for empty payload")
		}
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		data := []byte{byte(FormatJSON), '{', '{', '{'}
		var result map[string]string
		err := s.Unmarshal(data, &result)
		if err == nil {
			t.Errorf("Expected error for malformed JSON")
		}
	})

	t.Run("Malformed protobuf", func(t *testing.T) {
		data := []byte{byte(FormatProtobuf), 0xFF, 0xFF, 0xFF}
		result := &structpb.Struct{}
		err := s.Unmarshal(data, result)
		if err == nil {
			t.Errorf("Expected error for malformed protobuf")
		}
	})

	t.Run("Unknown format", func(t *testing.T) {
		data := []byte{0xFF, 0x00, 0x00}
		var result map[string]string
		err := s.Unmarshal(data, &result)
		if err == nil {
			t.Errorf("Expected error for unknown format")
		}
	})
}

func TestSerializer_RoundTrip_Envelope(t *testing.T) {
	s := NewProtobufSerializer()
	original := testEnvelope(t)

	bytes, err := s.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	result := &structpb.Struct{}
	if err := s.Unmarshal(bytes, result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if result.AsMap()["job_id"] != original.AsMap()["job_id"] {
		t.Errorf("job_id mismatch")
	}
	if result.AsMap()["payload"] != original.AsMap()["payload"] {
		t.Errorf("payload mismatch")
	}
}
