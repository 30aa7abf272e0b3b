package job

import "testing"

func TestPayloadMarshalRoundtrip(t *testing.T) {
	p := Payload{"user_id": "42", "action": "resize"}
	s, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := UnmarshalPayload(s)
	if err != nil {
		t.Fatalf("UnmarshalPayload: %v", err)
	}
	if got["user_id"] != "42" || got["action"] != "resize" {
		t.Errorf("roundtrip mismatch: %v", got)
	}
}

func TestPayloadProtoRoundtrip(t *testing.T) {
	p := Payload{"count": 3.0, "name": "job"}
	pb, err := p.ToProto()
	if err != nil {
		t.Fatalf("ToProto: %v", err)
	}
	got := PayloadFromProto(pb)
	if got["name"] != "job" {
		t.Errorf("proto roundtrip mismatch: %v", got)
	}
}
