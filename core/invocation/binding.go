package invocation

// UnassignedPartition marks an invocation that carries no partition hint.
const UnassignedPartition = -1

// Connection identifies one live link to a cluster member. The invocation
// layer never writes to it; it only needs identity for connection affinity
// and event correlation. The routing layer supplies concrete connections.
type Connection interface {
	RemoteAddr() string
}

type bindingMode int

const (
	bindNone bindingMode = iota
	bindConnection
	bindPartition
	bindTarget
)

// Binding fixes where an invocation may be sent. Exactly one variant is
// set at construction and never changes. A connection binding encodes a
// hard session/ordering requirement and outranks every other hint.
type Binding struct {
	mode        bindingMode
	conn        Connection
	partitionID int32
	target      string
}

// BindAny lets the router pick any member.
func BindAny() Binding {
	return Binding{mode: bindNone, partitionID: UnassignedPartition}
}

// BindConnection pins the invocation to one connection. Such an invocation
// never survives a transport failure: its affinity cannot be preserved on
// another connection.
func BindConnection(conn Connection) Binding {
	return Binding{mode: bindConnection, conn: conn, partitionID: UnassignedPartition}
}

// BindPartition routes the invocation to the owner of a partition.
func BindPartition(partitionID int32) Binding {
	return Binding{mode: bindPartition, partitionID: partitionID}
}

// BindTarget routes the invocation to the member at the given address.
func BindTarget(target string) Binding {
	return Binding{mode: bindTarget, target: target, partitionID: UnassignedPartition}
}

// PartitionID returns the partition hint, or UnassignedPartition.
func (b Binding) PartitionID() int32 { return b.partitionID }

// BoundConnection returns the pinned connection, or nil.
func (b Binding) BoundConnection() Connection {
	if b.mode != bindConnection {
		return nil
	}
	return b.conn
}

// Target returns the pinned member address, or "".
func (b Binding) Target() string { return b.target }
