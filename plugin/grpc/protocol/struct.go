package protocol

import (
	"github.com/teranos/gauntlet/errors"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Struct is a free-form data map. On the wire it takes the protobuf JSON
// form of google.protobuf.Struct, so numbers decode as float64.
type Struct map[string]any

// MarshalJSON flattens s and encodes it as a google.protobuf.Struct.
func (s Struct) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	pb, err := structpb.NewStruct(FlattenMap(s))
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert data to struct")
	}
	return protojson.Marshal(pb)
}

// UnmarshalJSON decodes a google.protobuf.Struct.
func (s *Struct) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	var pb structpb.Struct
	if err := protojson.Unmarshal(data, &pb); err != nil {
		return errors.Wrap(err, "failed to decode struct")
	}
	*s = pb.AsMap()
	return nil
}
