package herder

// Overlay is the peer-networking collaborator (spec.md §6): Herder
// broadcasts outbound messages through it and receives inbound
// transactions/envelopes/sets from it via the methods the caller invokes on
// Herder's own components (TxPool.RecvTransaction, fetch.Resolver.Deliver,
// slot.Driver.RecvEnvelope).
type Overlay interface {
	// BroadcastMessage disseminates msg to connected peers.
	BroadcastMessage(msg Message)
}

// Message is a typed wire message broadcast over the overlay: an FBA
// envelope, a transaction set, or an individual transaction being
// rebroadcast (spec.md §6).
type Message struct {
	Envelope *Envelope
	TxSet    TxSet
	Tx       Transaction
}
