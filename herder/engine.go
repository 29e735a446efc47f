package herder

// FBAEngine is the federated Byzantine agreement engine Herder drives.
// It is an out-of-scope collaborator (spec.md §1): Herder only calls the
// methods below and implements FBACallbacks for it (spec.md §6).
type FBAEngine interface {
	// ReceiveEnvelope hands an inbound envelope to FBA for processing.
	ReceiveEnvelope(envelope Envelope)
	// PrepareValue asks FBA to propose value for slotIndex, optionally
	// bumping the ballot counter (spec.md §4.6 trigger, §4.5 expireBallot).
	PrepareValue(slotIndex uint64, value SignedBallotValue, bumpCounter bool)
	// IsVBlocking reports whether nodes forms a v-blocking set with respect
	// to the local quorum configuration (spec.md §4.5 step 8, glossary).
	IsVBlocking(nodes map[NodeID]struct{}) bool
	// PurgeNode evicts all state FBA holds for id.
	PurgeNode(id NodeID)
	// PurgeSlots evicts all state FBA holds for slots at or below upTo.
	PurgeSlots(upTo uint64)
	// LocalNodeID returns this node's FBA identity.
	LocalNodeID() NodeID
	// LocalQuorumSet returns this node's configured trust.
	LocalQuorumSet() QuorumSet
	// SecretKey returns the validation secret key, or the zero key for a
	// watch-only node (spec.md §4.5 step 5, §6 VALIDATION_KEY).
	SecretKey() Signer
}

// Envelope carries an FBA message: a ballot plus the slot and node it
// concerns. The envelope's opaque value is decoded by BallotCodec.
type Envelope struct {
	SlotIndex uint64
	NodeID    NodeID
	Ballot    FBABallot
}

// FBACallbacks are the methods the FBA engine requires Herder to implement
// (spec.md §6, §4.7).
type FBACallbacks interface {
	// ValidateValue validates an opaque proposed value, possibly
	// asynchronously via cb when a dependency must be fetched (spec.md §4.5).
	ValidateValue(slotIndex uint64, fromNode NodeID, opaqueValue []byte, cb func(bool))
	// ValidateBallot validates a ballot under the adversarial bounds of
	// spec.md §4.5, possibly deferring acceptance behind a timer.
	ValidateBallot(slotIndex uint64, fromNode NodeID, ballot FBABallot, cb func(bool))
	// CompareValues implements ValueOrdering.Compare for two already-verified
	// signed values (spec.md §4.2).
	CompareValues(slotIndex uint64, ballotCounter uint32, v1, v2 SignedBallotValue) int
	// BallotDidHearFromQuorum arms/rearms the bump timer (spec.md §4.5).
	BallotDidHearFromQuorum(slotIndex uint64, ballot FBABallot)
	// ValueExternalized finalizes slotIndex with opaqueValue (spec.md §4.6).
	ValueExternalized(slotIndex uint64, opaqueValue []byte)
	// RetrieveQuorumSet resolves a peer's quorum set by hash, possibly
	// asynchronously via the QSet mailbox.
	RetrieveQuorumSet(hash [32]byte) (*QuorumSet, error)
	// EmitEnvelope wraps an FBA envelope in a typed message and broadcasts it.
	EmitEnvelope(envelope Envelope)
	// NodeTouched records that FBA observed activity from id, refreshing its
	// eviction deadline (spec.md §4.6 step 7).
	NodeTouched(id NodeID)
}
