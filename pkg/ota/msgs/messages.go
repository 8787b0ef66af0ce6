// Package msgs defines the L1 messages of the firmware update protocol.
package msgs

import (
	"github.com/golang/protobuf/proto"

	fx "github.com/robotalks/robofw/pkg/framework"
	"github.com/robotalks/robofw/pkg/l1/msgs"
)

// UpdateBegin starts an update session.
type UpdateBegin struct {
	TotalSize   int64  `protobuf:"varint,1,opt,name=total_size,proto3" json:"total_size,omitempty"`
	TotalChunks uint32 `protobuf:"varint,2,opt,name=total_chunks,proto3" json:"total_chunks,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateBegin) NewMessage() fx.Message { return &UpdateBegin{} }

// TypeID implements SerializableMessage.
func (m *UpdateBegin) TypeID() uint32 { return UpdateBeginTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateBegin) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateBegin) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateBegin) Reset() { *m = UpdateBegin{} }

// String implements proto.Message.
func (m *UpdateBegin) String() string { return proto.CompactTextString(m) }

// UpdateChunk carries a chunk of the image. It is replied after all bytes
// of the chunk are committed to storage.
type UpdateChunk struct {
	Index uint32 `protobuf:"varint,1,opt,name=index,proto3" json:"index,omitempty"`
	Data  []byte `protobuf:"bytes,2,opt,name=data,proto3" json:"data,omitempty"`
	Last  bool   `protobuf:"varint,3,opt,name=last,proto3" json:"last,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateChunk) NewMessage() fx.Message { return &UpdateChunk{} }

// TypeID implements SerializableMessage.
func (m *UpdateChunk) TypeID() uint32 { return UpdateChunkTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateChunk) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateChunk) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateChunk) Reset() { *m = UpdateChunk{} }

// String implements proto.Message.
func (m *UpdateChunk) String() string { return proto.CompactTextString(m) }

// UpdateAbort fails the current session.
type UpdateAbort struct {
	Reason string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateAbort) NewMessage() fx.Message { return &UpdateAbort{} }

// TypeID implements SerializableMessage.
func (m *UpdateAbort) TypeID() uint32 { return UpdateAbortTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateAbort) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateAbort) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateAbort) Reset() { *m = UpdateAbort{} }

// String implements proto.Message.
func (m *UpdateAbort) String() string { return proto.CompactTextString(m) }

// UpdateStatusQuery queries the session progress.
type UpdateStatusQuery struct {
}

// NewMessage implements Message.
func (m *UpdateStatusQuery) NewMessage() fx.Message { return &UpdateStatusQuery{} }

// TypeID implements SerializableMessage.
func (m *UpdateStatusQuery) TypeID() uint32 { return UpdateStatusQueryTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateStatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateStatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateStatusQuery) Reset() { *m = UpdateStatusQuery{} }

// String implements proto.Message.
func (m *UpdateStatusQuery) String() string { return proto.CompactTextString(m) }

// UpdateStatusReply is the response for UpdateStatusQuery.
type UpdateStatusReply struct {
	State          string `protobuf:"bytes,1,opt,name=state,proto3" json:"state,omitempty"`
	SessionID      string `protobuf:"bytes,2,opt,name=session_id,proto3" json:"session_id,omitempty"`
	ReceivedSize   int64  `protobuf:"varint,3,opt,name=received_size,proto3" json:"received_size,omitempty"`
	TotalSize      int64  `protobuf:"varint,4,opt,name=total_size,proto3" json:"total_size,omitempty"`
	ReceivedChunks uint32 `protobuf:"varint,5,opt,name=received_chunks,proto3" json:"received_chunks,omitempty"`
	TotalChunks    uint32 `protobuf:"varint,6,opt,name=total_chunks,proto3" json:"total_chunks,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateStatusReply) NewMessage() fx.Message { return &UpdateStatusReply{} }

// TypeID implements SerializableMessage.
func (m *UpdateStatusReply) TypeID() uint32 { return UpdateStatusReplyTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateStatusReply) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateStatusReply) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateStatusReply) Reset() { *m = UpdateStatusReply{} }

// String implements proto.Message.
func (m *UpdateStatusReply) String() string { return proto.CompactTextString(m) }

// UpdateStatus is an Event message sent when a session terminates.
type UpdateStatus struct {
	Event        string `protobuf:"bytes,1,opt,name=event,proto3" json:"event,omitempty"`
	Status       string `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
	Detail       string `protobuf:"bytes,3,opt,name=detail,proto3" json:"detail,omitempty"`
	SessionID    string `protobuf:"bytes,4,opt,name=session_id,proto3" json:"session_id,omitempty"`
	ReceivedSize int64  `protobuf:"varint,5,opt,name=received_size,proto3" json:"received_size,omitempty"`
	TotalSize    int64  `protobuf:"varint,6,opt,name=total_size,proto3" json:"total_size,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateStatus) NewMessage() fx.Message { return &UpdateStatus{} }

// TypeID implements SerializableMessage.
func (m *UpdateStatus) TypeID() uint32 { return UpdateStatusTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateStatus) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateStatus) Reset() { *m = UpdateStatus{} }

// String implements proto.Message.
func (m *UpdateStatus) String() string { return proto.CompactTextString(m) }

// UpdateProgress is an Event message sent periodically during a session.
type UpdateProgress struct {
	SessionID    string `protobuf:"bytes,1,opt,name=session_id,proto3" json:"session_id,omitempty"`
	ReceivedSize int64  `protobuf:"varint,2,opt,name=received_size,proto3" json:"received_size,omitempty"`
	TotalSize    int64  `protobuf:"varint,3,opt,name=total_size,proto3" json:"total_size,omitempty"`
}

// NewMessage implements Message.
func (m *UpdateProgress) NewMessage() fx.Message { return &UpdateProgress{} }

// TypeID implements SerializableMessage.
func (m *UpdateProgress) TypeID() uint32 { return UpdateProgressTypeID }

// Serializable implements SerializableMessage.
func (m *UpdateProgress) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *UpdateProgress) ProtoMessage() {}

// Reset implements proto.Message.
func (m *UpdateProgress) Reset() { *m = UpdateProgress{} }

// String implements proto.Message.
func (m *UpdateProgress) String() string { return proto.CompactTextString(m) }

// TypeIDs
const (
	UpdateBeginTypeID       uint32 = msgs.GroupOTA | 0x0001
	UpdateChunkTypeID       uint32 = msgs.GroupOTA | 0x0002
	UpdateAbortTypeID       uint32 = msgs.GroupOTA | 0x0003
	UpdateStatusQueryTypeID uint32 = msgs.GroupOTA | 0x0004
	UpdateStatusReplyTypeID uint32 = UpdateStatusQueryTypeID | msgs.TypeIDMaskReply
	UpdateStatusTypeID      uint32 = msgs.TypeIDKindEvent | msgs.GroupOTA | 0x0001
	UpdateProgressTypeID    uint32 = msgs.TypeIDKindEvent | msgs.GroupOTA | 0x0002
)

func init() {
	msgs.Register(
		(*UpdateBegin)(nil),
		(*UpdateChunk)(nil),
		(*UpdateAbort)(nil),
		(*UpdateStatusQuery)(nil),
		(*UpdateStatusReply)(nil),
		(*UpdateStatus)(nil),
		(*UpdateProgress)(nil),
	)
}
