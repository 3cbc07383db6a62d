package syncapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Submission outcomes reported by the endpoint.
const (
	StatusAccepted  = "accepted"
	StatusDuplicate = "duplicate"
)

var ErrMalformed = errors.New("malformed message")

type SubmitScanRequest struct {
	ClientID   string         `json:"client_id"`
	FoodKey    string         `json:"food_key"`
	RecordedAt time.Time      `json:"recorded_at"`
	Analysis   map[string]any `json:"analysis"`
}

type SubmitScanResponse struct {
	Status string `json:"status"`
}

type LookupFoodRequest struct {
	Key string `json:"key"`
}

type Food struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func (r SubmitScanRequest) Validate() error {
	if r.ClientID == "" {
		return fmt.Errorf("%w: client_id is required", ErrMalformed)
	}
	if r.FoodKey == "" {
		return fmt.Errorf("%w: food_key is required", ErrMalformed)
	}
	if r.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded_at is required", ErrMalformed)
	}
	return nil
}

// ToStruct converts any JSON-serializable message to a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return s, nil
}

// FromStruct decodes s into v, the inverse of ToStruct.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("%w: empty message", ErrMalformed)
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
