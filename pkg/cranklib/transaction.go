package cranklib

import (
	"errors"
	"fmt"
)

// Message is the signed payload of a transaction: who pays, which blockhash
// anchors it, and the instructions to run.
type Message struct {
	Payer           Address       `json:"payer"`
	RecentBlockhash Hash          `json:"recent_blockhash"`
	Instructions    []Instruction `json:"instructions"`
}

// Encode renders the message to its canonical signing bytes.
func (m *Message) Encode() []byte {
	var w binWriter
	w.addr(m.Payer)
	w.buf = append(w.buf, m.RecentBlockhash[:]...)
	w.u64(uint64(len(m.Instructions)))
	for i := range m.Instructions {
		m.Instructions[i].encode(&w)
	}
	return w.buf
}

// Transaction is a message plus the signatures authorizing it. The first
// signature is the payer's and identifies the transaction network-wide.
type Transaction struct {
	Message    Message     `json:"message"`
	Signatures []Signature `json:"signatures"`
}

// NewTransaction assembles an unsigned transaction.
func NewTransaction(payer Address, blockhash Hash, instructions ...Instruction) *Transaction {
	return &Transaction{
		Message: Message{
			Payer:           payer,
			RecentBlockhash: blockhash,
			Instructions:    instructions,
		},
	}
}

// Sign signs the message with the payer keypair, replacing any prior
// signatures. The keypair must match the message payer.
func (tx *Transaction) Sign(kp *Keypair) error {
	if kp.Address() != tx.Message.Payer {
		return fmt.Errorf("signing keypair %s does not match payer %s", kp.Address().Short(), tx.Message.Payer.Short())
	}
	tx.Signatures = []Signature{kp.SignMessage(tx.Message.Encode())}
	return nil
}

// Signature returns the transaction's identifying first signature. Zero for
// unsigned transactions.
func (tx *Transaction) Signature() Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}

// Serialize renders the signed transaction to wire bytes.
func (tx *Transaction) Serialize() []byte {
	var w binWriter
	w.u64(uint64(len(tx.Signatures)))
	for _, s := range tx.Signatures {
		w.sig(s)
	}
	w.blob(tx.Message.Encode())
	return w.buf
}

// DeserializeTransaction parses wire bytes produced by Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	r := &binReader{buf: data}
	var tx Transaction
	n := r.u64()
	if r.err == nil && n > uint64(len(data)) {
		return nil, ErrShortAccountData
	}
	for i := uint64(0); i < n && r.err == nil; i++ {
		tx.Signatures = append(tx.Signatures, r.sig())
	}
	msg := r.blob()
	if r.err != nil {
		return nil, r.err
	}
	mr := &binReader{buf: msg}
	tx.Message.Payer = mr.addr()
	copy(tx.Message.RecentBlockhash[:], mr.take(len(tx.Message.RecentBlockhash)))
	in := mr.u64()
	if mr.err == nil && in > uint64(len(msg)) {
		return nil, ErrShortAccountData
	}
	for i := uint64(0); i < in && mr.err == nil; i++ {
		tx.Message.Instructions = append(tx.Message.Instructions, decodeInstruction(mr))
	}
	if mr.err != nil {
		return nil, mr.err
	}
	return &tx, nil
}

// VerifySignatures checks the payer signature against the message bytes.
func (tx *Transaction) VerifySignatures() error {
	if len(tx.Signatures) == 0 {
		return errors.New("transaction is unsigned")
	}
	if !Verify(tx.Message.Payer, tx.Message.Encode(), tx.Signatures[0]) {
		return errors.New("payer signature verification failed")
	}
	return nil
}
