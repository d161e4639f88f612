// Package codec implements domain.ResourceCodec. Resources are written as a
// protobuf Struct and carried as base64 text so every storage backend can
// treat them as plain strings.
package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alanyoungcy/blackmarket/internal/domain"
)

const (
	fieldKind       = "kind"
	fieldQuantity   = "quantity"
	fieldAttributes = "attributes"
)

// Proto encodes resources as deterministic protobuf Struct messages.
type Proto struct{}

// NewProto returns the protobuf resource codec.
func NewProto() Proto { return Proto{} }

// Encode serialises r into a base64 string. The quantity is written as a
// decimal string so every int survives the round trip exactly.
func (Proto) Encode(r domain.Resource) (string, error) {
	attrs := make(map[string]any, len(r.Attributes))
	for k, v := range r.Attributes {
		attrs[k] = v
	}

	st, err := structpb.NewStruct(map[string]any{
		fieldKind:       r.Kind,
		fieldQuantity:   strconv.Itoa(r.Quantity),
		fieldAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("codec: build struct for %s: %w", r.Kind, err)
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("codec: marshal %s: %w", r.Kind, err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode parses a blob produced by Encode. It accepts every value Encode
// can produce; only corrupt bytes or a missing field are reported as
// domain.ErrMalformedRecord.
func (Proto) Decode(blob string) (domain.Resource, error) {
	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("codec: base64: %w: %v", domain.ErrMalformedRecord, err)
	}

	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return domain.Resource{}, fmt.Errorf("codec: unmarshal: %w: %v", domain.ErrMalformedRecord, err)
	}
	fields := st.GetFields()

	kv, ok := fields[fieldKind].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return domain.Resource{}, fmt.Errorf("codec: %w: missing kind", domain.ErrMalformedRecord)
	}
	kind := kv.StringValue

	qv, ok := fields[fieldQuantity].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return domain.Resource{}, fmt.Errorf("codec: %s: %w: missing quantity", kind, domain.ErrMalformedRecord)
	}
	q, err := strconv.Atoi(qv.StringValue)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("codec: %s: %w: bad quantity %q", kind, domain.ErrMalformedRecord, qv.StringValue)
	}

	res := domain.Resource{Kind: kind, Quantity: q}
	if av := fields[fieldAttributes].GetStructValue(); av != nil && len(av.GetFields()) > 0 {
		res.Attributes = make(map[string]string, len(av.GetFields()))
		for k, v := range av.GetFields() {
			sv, ok := v.GetKind().(*structpb.Value_StringValue)
			if !ok {
				return domain.Resource{}, fmt.Errorf("codec: %s: %w: attribute %q is not a string", kind, domain.ErrMalformedRecord, k)
			}
			res.Attributes[k] = sv.StringValue
		}
	}
	return res, nil
}

// Compile-time interface check.
var _ domain.ResourceCodec = Proto{}
