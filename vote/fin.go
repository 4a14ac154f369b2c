package vote

// Fin is the commit message broadcast to disseminate a round's
// justification once it finalizes a block.
type Fin struct {
	Round         RoundNumber
	Set           SetID
	Vote          BlockInfo
	Precommits    []SignedPrecommit
	VoteAncestries []BlockHeader
}

// BlockHeader is the minimal header information needed to verify a
// justification's ancestry cover.
type BlockHeader struct {
	Hash       Hash
	ParentHash Hash
	Number     uint64
}

// Justification is the wire format proving a block is finalized: a
// commit (target + precommits) plus the headers needed to verify every
// precommit's target is a descendant-or-equal of the commit target.
type Justification struct {
	Round          RoundNumber
	Set            SetID
	Target         BlockInfo
	Precommits     []SignedPrecommit
	VoteAncestries []BlockHeader
}
