package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-vizchat/internal/models"
)

// FromProtoQueryRequest maps the gRPC Struct into a domain QueryRequest.
func FromProtoQueryRequest(in *structpb.Struct) (models.QueryRequest, error) {
	if in == nil {
		return models.QueryRequest{}, fmt.Errorf("request is nil")
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return models.QueryRequest{}, fmt.Errorf("encode request: %w", err)
	}
	var req models.QueryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return models.QueryRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// ToProtoQueryRequest is the inverse of FromProtoQueryRequest.
func ToProtoQueryRequest(req models.QueryRequest) (*structpb.Struct, error) {
	return toStruct(req)
}

// ToProtoQueryResponse converts the envelope into a Struct with the same
// field names as the JSON API.
func ToProtoQueryResponse(resp *models.QueryResponse) (*structpb.Struct, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	return toStruct(resp)
}

// FromProtoQueryResponse decodes a Struct envelope.
func FromProtoQueryResponse(in *structpb.Struct) (*models.QueryResponse, error) {
	if in == nil {
		return nil, fmt.Errorf("response is nil")
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("convert to struct: %w", err)
	}
	return out, nil
}
