package cranklib

import "crypto/sha256"

// AccountMeta names one account an instruction touches and how.
type AccountMeta struct {
	Address    Address `json:"address"`
	IsSigner   bool    `json:"is_signer"`
	IsWritable bool    `json:"is_writable"`
}

// WritableAccount is metadata for a read-write account.
func WritableAccount(addr Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: signer, IsWritable: true}
}

// ReadonlyAccount is metadata for a read-only account.
func ReadonlyAccount(addr Address, signer bool) AccountMeta {
	return AccountMeta{Address: addr, IsSigner: signer, IsWritable: false}
}

// Instruction is one program invocation inside a transaction.
type Instruction struct {
	ProgramID Address       `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

func (ix *Instruction) encode(w *binWriter) {
	w.addr(ix.ProgramID)
	w.u64(uint64(len(ix.Accounts)))
	for _, acc := range ix.Accounts {
		w.addr(acc.Address)
		w.flag(acc.IsSigner)
		w.flag(acc.IsWritable)
	}
	w.blob(ix.Data)
}

func decodeInstruction(r *binReader) Instruction {
	var ix Instruction
	ix.ProgramID = r.addr()
	n := r.u64()
	if r.err != nil {
		return ix
	}
	if n > uint64(len(r.buf)) {
		r.err = ErrShortAccountData
		return ix
	}
	ix.Accounts = make([]AccountMeta, 0, n)
	for i := uint64(0); i < n && r.err == nil; i++ {
		ix.Accounts = append(ix.Accounts, AccountMeta{
			Address:    r.addr(),
			IsSigner:   r.flag(),
			IsWritable: r.flag(),
		})
	}
	ix.Data = r.blob()
	return ix
}

// instructionSighash returns the 8-byte discriminator of a named program
// instruction: the leading bytes of sha256("global:<name>").
func instructionSighash(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}
