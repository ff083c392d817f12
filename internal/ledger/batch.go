package ledger

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"facility-form-backend/internal/codec"
	"facility-form-backend/internal/payload"
)

// BuildBatches signs every payload into a transaction and groups the
// transactions into batches. With atomic set, all transactions go into one
// batch in payload order so the ledger applies all of them or none. Without
// it, each transaction gets its own batch.
func BuildBatches(signer *Signer, payloads []payload.Payload, atomic bool) ([]Batch, error) {
	if len(payloads) == 0 {
		return nil, errors.New("no payloads to submit")
	}

	txns := make([]Transaction, 0, len(payloads))
	for i, p := range payloads {
		txn, err := buildTransaction(signer, p)
		if err != nil {
			return nil, fmt.Errorf("payload %d (%s): %w", i, p.Action, err)
		}
		txns = append(txns, txn)
	}

	if atomic {
		b, err := buildBatch(signer, txns)
		if err != nil {
			return nil, err
		}
		return []Batch{b}, nil
	}

	batches := make([]Batch, 0, len(txns))
	for _, txn := range txns {
		b, err := buildBatch(signer, []Transaction{txn})
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, nil
}

func buildTransaction(signer *Signer, p payload.Payload) (Transaction, error) {
	body, err := p.Encode()
	if err != nil {
		return Transaction{}, fmt.Errorf("encoding payload: %w", err)
	}
	digest := blake3.Sum256(body)

	header, err := codec.Marshal(TransactionHeader{
		FamilyName:      FamilyName,
		FamilyVersion:   FamilyVersion,
		SignerPublicKey: signer.PublicKey(),
		BatcherKey:      signer.PublicKey(),
		PayloadDigest:   hex.EncodeToString(digest[:]),
		Nonce:           uuid.NewString(),
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("encoding transaction header: %w", err)
	}

	return Transaction{
		Header:          header,
		HeaderSignature: signer.Sign(header),
		Payload:         body,
	}, nil
}

func buildBatch(signer *Signer, txns []Transaction) (Batch, error) {
	ids := make([]string, len(txns))
	for i, t := range txns {
		ids[i] = t.ID()
	}

	header, err := codec.Marshal(BatchHeader{
		SignerPublicKey: signer.PublicKey(),
		TransactionIDs:  ids,
	})
	if err != nil {
		return Batch{}, fmt.Errorf("encoding batch header: %w", err)
	}

	return Batch{
		Header:          header,
		HeaderSignature: signer.Sign(header),
		Transactions:    txns,
	}, nil
}

// VerifyBatch checks the batch signature, every transaction signature and
// payload digest, and that the header lists the transactions in order.
func VerifyBatch(b Batch) error {
	var bh BatchHeader
	if err := codec.Unmarshal(b.Header, &bh); err != nil {
		return fmt.Errorf("decoding batch header: %w", err)
	}
	if !Verify(bh.SignerPublicKey, b.Header, b.HeaderSignature) {
		return errors.New("bad batch signature")
	}
	if len(bh.TransactionIDs) != len(b.Transactions) {
		return fmt.Errorf("batch header lists %d transactions, batch carries %d", len(bh.TransactionIDs), len(b.Transactions))
	}

	for i, t := range b.Transactions {
		if bh.TransactionIDs[i] != t.ID() {
			return fmt.Errorf("transaction %d out of order", i)
		}
		var th TransactionHeader
		if err := codec.Unmarshal(t.Header, &th); err != nil {
			return fmt.Errorf("decoding transaction %d header: %w", i, err)
		}
		if !Verify(th.SignerPublicKey, t.Header, t.HeaderSignature) {
			return fmt.Errorf("bad signature on transaction %d", i)
		}
		digest := blake3.Sum256(t.Payload)
		if th.PayloadDigest != hex.EncodeToString(digest[:]) {
			return fmt.Errorf("payload digest mismatch on transaction %d", i)
		}
	}
	return nil
}
