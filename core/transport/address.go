package transport

// NodeAddress identifies a node for one transport.
//
// Implementations must be comparable value types: the sender cache uses them
// as map keys. String must be a canonical encoding, two addresses of the same
// transport are equal iff their strings are equal.
type NodeAddress interface {
	// Transport is the id of the transport the address belongs to.
	Transport() string
	String() string
}

func addrKey(addr NodeAddress) string {
	return addr.Transport() + "://" + addr.String()
}

func addrString(addr NodeAddress) string {
	if addr == nil {
		return "<nil>"
	}
	return addrKey(addr)
}
