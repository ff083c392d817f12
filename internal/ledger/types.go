package ledger

import "facility-form-backend/internal/model"

const (
	// FamilyName and FamilyVersion identify the transaction processor that
	// understands internal/payload payloads.
	FamilyName    = "supply_chain"
	FamilyVersion = "1.1"
)

// Agent is an identity known to the ledger.
type Agent struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// TransactionHeader is signed to produce the transaction id.
type TransactionHeader struct {
	FamilyName      string `cbor:"family_name"`
	FamilyVersion   string `cbor:"family_version"`
	SignerPublicKey string `cbor:"signer_public_key"`
	BatcherKey      string `cbor:"batcher_public_key"`
	PayloadDigest   string `cbor:"payload_blake3"`
	Nonce           string `cbor:"nonce"`
}

// Transaction is a signed payload.
type Transaction struct {
	Header          []byte `cbor:"header"`
	HeaderSignature string `cbor:"header_signature"`
	Payload         []byte `cbor:"payload"`
}

// ID returns the transaction id.
func (t Transaction) ID() string { return t.HeaderSignature }

// BatchHeader lists the transactions of a batch in order.
type BatchHeader struct {
	SignerPublicKey string   `cbor:"signer_public_key"`
	TransactionIDs  []string `cbor:"transaction_ids"`
}

// Batch is the unit the ledger commits atomically: either every transaction
// in it is applied or none is.
type Batch struct {
	Header          []byte        `cbor:"header"`
	HeaderSignature string        `cbor:"header_signature"`
	Transactions    []Transaction `cbor:"transactions"`
}

// ID returns the batch id.
func (b Batch) ID() string { return b.HeaderSignature }

// BatchList is the body of a batch submission.
type BatchList struct {
	Batches []Batch `cbor:"batches"`
}

// InvalidTransaction explains why a transaction in a batch was rejected.
type InvalidTransaction struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BatchStatus is the ledger's view of one batch.
type BatchStatus struct {
	ID                  string                 `json:"id"`
	Status              model.SubmissionStatus `json:"status"`
	InvalidTransactions []InvalidTransaction   `json:"invalid_transactions"`
}

// Message summarizes why a batch is invalid.
func (s BatchStatus) Message() string {
	for _, t := range s.InvalidTransactions {
		if t.Message != "" {
			return t.Message
		}
	}
	return ""
}

type batchStatusResponse struct {
	Data []BatchStatus `json:"data"`
}

type agentsResponse struct {
	Data []Agent `json:"data"`
}
