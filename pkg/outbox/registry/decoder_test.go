package registry

import (
	"encoding/json"
	"testing"

	"github.com/dvillareal/automarket-backend/pkg/enums"
)

func TestDecoderRegistry(t *testing.T) {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventTrackingStatusChanged, 1, func(payload json.RawMessage) (interface{}, error) {
		var decoded map[string]string
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, err
		}
		return decoded, nil
	})

	input := json.RawMessage(`{"status":"delivered"}`)
	output, err := reg.Decode(enums.EventTrackingStatusChanged, 1, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outMap, ok := output.(map[string]string); !ok || outMap["status"] != "delivered" {
		t.Fatalf("unexpected output %+v", output)
	}
}

func TestDecoderRegistryUnregistered(t *testing.T) {
	reg := NewDecoderRegistry()
	if _, err := reg.Decode(enums.EventOrderPaid, 2, json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for unregistered decoder")
	}
}
