package encoding

import (
	"fmt"

	"github.com/energynexus/nexus-cli/internal/models"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ProtobufEncoder encodes frames as a google.protobuf.Struct so consumers
// need no generated schema.
type ProtobufEncoder struct{}

func NewProtobufEncoder() *ProtobufEncoder {
	return &ProtobufEncoder{}
}

func (e *ProtobufEncoder) Encode(frame models.LiveFrame) ([]byte, error) {
	pb, err := frameToProto(frame)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pb)
}

func (e *ProtobufEncoder) ContentType() string {
	return "application/x-protobuf"
}

func (e *ProtobufEncoder) Binary() bool {
	return true
}

func frameToProto(frame models.LiveFrame) (*structpb.Struct, error) {
	fields, err := frame.Fields()
	if err != nil {
		return nil, fmt.Errorf("failed to flatten frame: %w", err)
	}
	pb, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build struct: %w", err)
	}
	return pb, nil
}
