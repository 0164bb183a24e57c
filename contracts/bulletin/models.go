// Package bulletin holds the shared wire contract for the AgeTokenBulletin
// ledger contract: the ABI used by the client and the commitment shape read by
// external auditors.
package bulletin

// ContractVersion identifies the on-ledger contract schema this build targets.
const ContractVersion = "v1"

// ABI is the AgeTokenBulletin contract interface. Reads are public; writes are
// restricted on-chain to the issuer's ledger identity.
const ABI = `[
  {"inputs": [], "name": "thumbprint", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "revocationRoot", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [{"name": "_thumbprint", "type": "bytes32"}], "name": "setThumbprint", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [{"name": "_root", "type": "bytes32"}], "name": "setRevocationRoot", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

// Commitment is the ledger-resident state published by the anchor: the digest
// of the issuer's current public key and the Merkle root over all revoked
// credential hashes (all zero while the revoked set is empty).
type Commitment struct {
	IssuerThumbprint [32]byte `json:"issuer_thumbprint"`
	RevocationRoot   [32]byte `json:"revocation_root"`
}
