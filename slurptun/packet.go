package slurptun

// Packet is a single udp datagram -- payload plus source and destination endpoints, each of which
// may be concrete or a hostname. Packets are immutable once constructed; ownership transfers
// across the channel between the udp adapter and the dispatcher.
type Packet struct {
	Data        Bytes
	Source      Endpoint
	Destination Endpoint
}
