package circuits

// The circuits package contains the circuit used to move votes into a
// contract point without revealing them. The votes of a batch never leave
// the prover: the circuit proves that a public aggregate is the fold of a
// batch of private votes, and the settlement authority only sees that
// aggregate (the journal) and the proof.
// The flow is the following:
//   1. A prover collects up to VotesPerBatch votes in a session.
//   2. On close, the votes are folded and the fold is proved (Groth16 over
//      BN254), padding the unused slots with the identity vote.
//   3. The settlement authority verifies the proof against the journal and
//      the prover signature, and applies the journal to the contract point.
//
// +------------+
// |   Prover   |  private votes     -> journal (x, y, weight), proof
// |  session   |
// +------------+
//        |
//        v
// +------------+
// | Settlement |  journal + proof   -> contract point (x, y, total)
// |  authority |
// +------------+
//
// The artifacts (constraint system, proving and verifying keys) are shared
// by every prover and verifier of a node, see LoadOrSetup.
