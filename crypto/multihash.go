package crypto

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// multihash encodes a public key as <algorithm-code-hex><length-hex><payload-hex>,
// all upper-case, matching §6's public-key textual form. Round-trip
// parse(display(k)) == k is the identity by construction: display never
// drops information, and parse never normalizes beyond case.
func encodeMultihash(algo Algorithm, payload []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%02X", algo.code())
	fmt.Fprintf(&b, "%02X", len(payload))
	b.WriteString(strings.ToUpper(hex.EncodeToString(payload)))
	return b.String()
}

func decodeMultihash(s string) (Algorithm, []byte, error) {
	if len(s) < 4 {
		return 0, nil, wrapErr(ErrParse, "multihash too short", nil)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, nil, wrapErr(ErrParse, "multihash not hex", err)
	}
	if len(raw) < 2 {
		return 0, nil, wrapErr(ErrParse, "multihash missing header", nil)
	}
	algo, err := algorithmFromCode(raw[0])
	if err != nil {
		return 0, nil, err
	}
	length := int(raw[1])
	payload := raw[2:]
	if len(payload) != length {
		return 0, nil, wrapErr(ErrBadPayloadLength, fmt.Sprintf("declared %d, got %d", length, len(payload)), nil)
	}
	return algo, payload, nil
}

// lengthFits reports whether a payload's length can round-trip through the
// single length byte used above (payloads here are at most 192 bytes, the
// uncompressed G2 BLS-small public keys, so this always holds; kept explicit
// rather than silently truncating).
func lengthFits(n int) error {
	if n > 0xff {
		return wrapErr(ErrBadPayloadLength, strconv.Itoa(n)+" exceeds multihash length byte", nil)
	}
	return nil
}
