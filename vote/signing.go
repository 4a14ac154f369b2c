package vote

import (
	"crypto/ed25519"
	"errors"
)

// ErrSignatureInvalid is returned when a signed vote fails Ed25519
// verification.
var ErrSignatureInvalid = errors.New("grandpa/vote: invalid signature")

// Keypair signs votes on behalf of one voter. This thin wrapper over
// crypto/ed25519 is the full extent of this package's involvement with
// cryptography; everything else treats a signature as an opaque blob to
// verify.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// VoterID returns the 32-byte voter identity derived from the public key.
func (k Keypair) VoterID() VoterID {
	var id VoterID
	copy(id[:], k.Public)
	return id
}

// SignPrevote signs a prevote for round/set and returns the envelope.
func (k Keypair) SignPrevote(target BlockInfo, round RoundNumber, set SetID) SignedPrevote {
	payload := SignedPayload(KindPrevote, target, round, set)
	sig := ed25519.Sign(k.Private, payload)
	sv := SignedPrevote{
		Message: Prevote{Target: target},
		Voter:   k.VoterID(),
		Round:   round,
		Set:     set,
	}
	copy(sv.Signature[:], sig)
	return sv
}

// SignPrecommit signs a precommit for round/set and returns the envelope.
func (k Keypair) SignPrecommit(target BlockInfo, round RoundNumber, set SetID) SignedPrecommit {
	payload := SignedPayload(KindPrecommit, target, round, set)
	sig := ed25519.Sign(k.Private, payload)
	sv := SignedPrecommit{
		Message: Precommit{Target: target},
		Voter:   k.VoterID(),
		Round:   round,
		Set:     set,
	}
	copy(sv.Signature[:], sig)
	return sv
}

// SignPrimaryPropose signs a primary-hint for round/set.
func (k Keypair) SignPrimaryPropose(target BlockInfo, round RoundNumber, set SetID) SignedVote[PrimaryPropose] {
	payload := SignedPayload(KindPrimaryPropose, target, round, set)
	sig := ed25519.Sign(k.Private, payload)
	sv := SignedVote[PrimaryPropose]{
		Message: PrimaryPropose{Target: target},
		Voter:   k.VoterID(),
		Round:   round,
		Set:     set,
	}
	copy(sv.Signature[:], sig)
	return sv
}

// VerifyPrevote verifies a signed prevote against the claimed voter's
// public key.
func VerifyPrevote(pub ed25519.PublicKey, sv SignedPrevote) error {
	payload := SignedPayload(KindPrevote, sv.Message.Target, sv.Round, sv.Set)
	if !ed25519.Verify(pub, payload, sv.Signature[:]) {
		return ErrSignatureInvalid
	}
	return nil
}

// VerifyPrecommit verifies a signed precommit against the claimed
// voter's public key.
func VerifyPrecommit(pub ed25519.PublicKey, sv SignedPrecommit) error {
	payload := SignedPayload(KindPrecommit, sv.Message.Target, sv.Round, sv.Set)
	if !ed25519.Verify(pub, payload, sv.Signature[:]) {
		return ErrSignatureInvalid
	}
	return nil
}
