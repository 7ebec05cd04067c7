package block

import (
	"fmt"

	"kintsugi.dev/node/crypto"
)

// EncodeSignedBlock implements the versioned binary codec named in §6: the
// data file's records are produced by this function. kura writes these bytes
// with no length prefix; each record's (start, length) lives in kura's index
// file instead.
func EncodeSignedBlock(sb SignedBlock) []byte {
	out := make([]byte, 0, 512)
	out = append(out, wireVersion)
	out = append(out, sb.Block.Header.encode()...)
	out = appendCompactSize(out, uint64(len(sb.Block.Transactions)))
	for _, tx := range sb.Block.Transactions {
		out = encodeCategorizedTransaction(out, tx)
	}
	out = appendCompactSize(out, uint64(len(sb.Signatures)))
	for _, sig := range sb.Signatures {
		out = appendU32(out, sig.SignatoryIndex)
		out = appendSignature(out, sig.Signature)
	}
	return out
}

// DecodeSignedBlock is the inverse of EncodeSignedBlock. kura.Store calls
// this to decode blocks read back off the data file, and consensus calls it
// to decode gossiped bytes.
func DecodeSignedBlock(b []byte) (SignedBlock, error) {
	off := 0
	if len(b) < 1 {
		return SignedBlock{}, fmt.Errorf("block: empty buffer")
	}
	version := b[off]
	off++
	if version != wireVersion {
		return SignedBlock{}, fmt.Errorf("block: unsupported wire version %d", version)
	}

	header, err := decodeHeader(b, &off)
	if err != nil {
		return SignedBlock{}, fmt.Errorf("block: header: %w", err)
	}

	txCount, err := readCompactSize(b, &off)
	if err != nil {
		return SignedBlock{}, fmt.Errorf("block: tx count: %w", err)
	}
	if txCount == 0 {
		return SignedBlock{}, fmt.Errorf("block: empty block is invalid")
	}
	txs := make([]CategorizedTransaction, 0, txCount)
	for i := uint64(0); i < txCount; i++ {
		tx, err := decodeCategorizedTransaction(b, &off)
		if err != nil {
			return SignedBlock{}, fmt.Errorf("block: tx[%d]: %w", i, err)
		}
		txs = append(txs, tx)
	}

	sigCount, err := readCompactSize(b, &off)
	if err != nil {
		return SignedBlock{}, fmt.Errorf("block: signature count: %w", err)
	}
	sigs := make([]BlockSignature, 0, sigCount)
	for i := uint64(0); i < sigCount; i++ {
		idx, err := readU32(b, &off)
		if err != nil {
			return SignedBlock{}, fmt.Errorf("block: signature[%d] index: %w", i, err)
		}
		sig, err := readSignature(b, &off)
		if err != nil {
			return SignedBlock{}, fmt.Errorf("block: signature[%d]: %w", i, err)
		}
		sigs = append(sigs, BlockSignature{SignatoryIndex: idx, Signature: sig})
	}

	if off != len(b) {
		return SignedBlock{}, fmt.Errorf("block: %d trailing bytes", len(b)-off)
	}

	return SignedBlock{Block: Block{Header: header, Transactions: txs}, Signatures: sigs}, nil
}

const wireVersion byte = 1

func appendSignature(dst []byte, sig crypto.Signature) []byte {
	dst = append(dst, byte(sig.Algorithm))
	dst = appendLengthPrefixed(dst, sig.Payload)
	return dst
}

func readSignature(b []byte, off *int) (crypto.Signature, error) {
	algoByte, err := readBytes(b, off, 1)
	if err != nil {
		return crypto.Signature{}, err
	}
	payload, err := readLengthPrefixed(b, off)
	if err != nil {
		return crypto.Signature{}, err
	}
	return crypto.Signature{Algorithm: crypto.Algorithm(algoByte[0]), Payload: payload}, nil
}

func encodeCategorizedTransaction(dst []byte, tx CategorizedTransaction) []byte {
	dst = appendLengthPrefixed(dst, []byte(tx.Signed.Authority.Name))
	dst = appendLengthPrefixed(dst, []byte(tx.Signed.Authority.Domain))
	dst = appendU64(dst, tx.Signed.CreatedAtMs)
	dst = appendLengthPrefixed(dst, []byte(tx.Signed.ChainId))
	dst = tx.Signed.Payload.encode(dst)
	dst = appendSignature(dst, tx.Signed.Signature)
	if tx.Reason == nil {
		dst = append(dst, 0)
	} else {
		dst = append(dst, 1)
		dst = appendLengthPrefixed(dst, []byte(tx.Reason.Code))
		dst = appendLengthPrefixed(dst, []byte(tx.Reason.Message))
	}
	return dst
}

func decodeCategorizedTransaction(b []byte, off *int) (CategorizedTransaction, error) {
	name, err := readLengthPrefixed(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	domain, err := readLengthPrefixed(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	createdAt, err := readU64(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	chainID, err := readLengthPrefixed(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	payload, err := decodeTransactionPayload(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	sig, err := readSignature(b, off)
	if err != nil {
		return CategorizedTransaction{}, err
	}

	signed := SignedTransaction{
		Authority:   AccountId{Name: string(name), Domain: DomainId(domain)},
		Payload:     payload,
		CreatedAtMs: createdAt,
		ChainId:     string(chainID),
		Signature:   sig,
	}

	hasReason, err := readBytes(b, off, 1)
	if err != nil {
		return CategorizedTransaction{}, err
	}
	var reason *RejectionReason
	if hasReason[0] != 0 {
		code, err := readLengthPrefixed(b, off)
		if err != nil {
			return CategorizedTransaction{}, err
		}
		msg, err := readLengthPrefixed(b, off)
		if err != nil {
			return CategorizedTransaction{}, err
		}
		reason = &RejectionReason{Code: string(code), Message: string(msg)}
	}

	return CategorizedTransaction{Signed: signed, Reason: reason}, nil
}
