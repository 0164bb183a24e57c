package revocation

import (
	"bytes"
	"crypto/sha256"
	"sort"
)

// EmptyRoot is the fixed sentinel published when no credential has been
// revoked. It matches the bytes32 zero value on the bulletin contract.
var EmptyRoot [32]byte

// ProofStep is one sibling on the path from a leaf to the root. Left reports
// whether the sibling hash sits on the left of the running hash.
type ProofStep struct {
	Hash [32]byte `json:"hash"`
	Left bool     `json:"left"`
}

// merkleRoot computes the root over the given credential digests. Leaves are
// sorted before hashing so the root depends only on the set, not on insertion
// order. Each sorted digest is hashed once more to form its leaf node, then
// pairs are combined bottom-up, duplicating the last node at any level with an
// odd count. An empty input yields EmptyRoot, never an error.
func merkleRoot(digests [][32]byte) [32]byte {
	level := leafLevel(digests)
	if len(level) == 0 {
		return EmptyRoot
	}
	for len(level) > 1 {
		level = combine(level)
	}
	return level[0]
}

func leafLevel(digests [][32]byte) [][32]byte {
	sorted := make([][32]byte, len(digests))
	copy(sorted, digests)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	level := make([][32]byte, len(sorted))
	for i, d := range sorted {
		level[i] = sha256.Sum256(d[:])
	}
	return level
}

func combine(level [][32]byte) [][32]byte {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([][32]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, hashPair(level[i], level[i+1]))
	}
	return next
}

func hashPair(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// merkleProof returns the sibling path for target within the set of digests,
// or nil when target is not a member. The proof validates against the root
// returned by merkleRoot for the same set.
func merkleProof(digests [][32]byte, target [32]byte) []ProofStep {
	sorted := make([][32]byte, len(digests))
	copy(sorted, digests)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})

	idx := -1
	for i, d := range sorted {
		if d == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	level := make([][32]byte, len(sorted))
	for i, d := range sorted {
		level[i] = sha256.Sum256(d[:])
	}

	var proof []ProofStep
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		sibling := idx ^ 1
		proof = append(proof, ProofStep{Hash: level[sibling], Left: sibling < idx})
		level = combine(level)
		idx /= 2
	}
	return proof
}

// VerifyProof checks a membership proof for a credential digest against a
// Merkle root, allowing external verifiers to audit revocations with a
// logarithmic-size proof instead of the full revocation list.
func VerifyProof(root [32]byte, digest [32]byte, proof []ProofStep) bool {
	running := sha256.Sum256(digest[:])
	for _, step := range proof {
		if step.Left {
			running = hashPair(step.Hash, running)
		} else {
			running = hashPair(running, step.Hash)
		}
	}
	return running == root
}
