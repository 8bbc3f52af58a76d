package modeling

// RemotePort is the name of a port seen from the other end of a connection.
type RemotePort string

// A Msg is what components send each other through ports.
type Msg interface {
	Meta() *MsgMeta
	Clone() Msg
}

// MsgMeta is carried by every message. TrafficBytes is the size the message
// would have on a real interconnect.
type MsgMeta struct {
	ID           string
	Src, Dst     RemotePort
	TrafficClass string
	TrafficBytes int
}

// Rsp replies to the request whose ID GetRspTo returns.
type Rsp interface {
	Msg
	GetRspTo() string
}
