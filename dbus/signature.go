package dbus

// maxSignatureLength is the wire limit on a signature's length
// (spec.md §3, §4.3): a SIGNATURE value uses a one-byte length prefix.
const maxSignatureLength = 255

func sigErr(sig, reason string) error {
	return &InvalidSignatureError{Signature: sig, Reason: reason}
}

// isBasicType reports whether c is a basic (non-container) D-Bus type
// code: the only kind allowed as a dict-entry key (spec.md §4.3).
func isBasicType(c byte) bool {
	switch c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g':
		return true
	default:
		return false
	}
}

// alignmentOfType returns the alignment boundary for the single type
// code c, per the table in spec.md §3. c must be a validated type
// code; container opens '(' and '{' both align to 8 (struct and
// dict-entry share alignment).
func alignmentOfType(c byte) int {
	switch c {
	case 'y', 'g':
		return 1
	case 'n', 'q':
		return 2
	case 'b', 'i', 'u', 's', 'o', 'a':
		return 4
	case 'x', 't', 'd', '(', '{':
		return 8
	case 'v':
		return 1
	default:
		return 1
	}
}

// ValidateSignature checks that sig is well-formed: balanced grouping,
// only legal type codes, 'a' followed by exactly one complete type,
// '{KV}' only directly after 'a' with a basic K and exactly two
// element types, and an overall length within the wire limit.
func ValidateSignature(sig string) error {
	if len(sig) > maxSignatureLength {
		return sigErr(sig, "signature exceeds 255 bytes")
	}
	i := 0
	for i < len(sig) {
		next, err := consumeType(sig, i)
		if err != nil {
			return err
		}
		i = next
	}
	return nil
}

// Split returns the top-level sequence of complete types in sig, e.g.
// Split("yvs") == ["y", "v", "s"] and Split("(yv)s") == ["(yv)", "s"].
func Split(sig string) ([]string, error) {
	if err := ValidateSignature(sig); err != nil {
		return nil, err
	}
	var out []string
	i := 0
	for i < len(sig) {
		next, err := consumeType(sig, i)
		if err != nil {
			return nil, err
		}
		out = append(out, sig[i:next])
		i = next
	}
	return out, nil
}

// AlignmentOf returns the alignment of the first top-level type in
// sig.
func AlignmentOf(sig string) (int, error) {
	if len(sig) == 0 {
		return 0, sigErr(sig, "empty signature has no alignment")
	}
	if _, err := consumeType(sig, 0); err != nil {
		return 0, err
	}
	return alignmentOfType(sig[0]), nil
}

// consumeType parses one complete type starting at sig[i] and returns
// the index just past it.
func consumeType(sig string, i int) (int, error) {
	if i >= len(sig) {
		return 0, sigErr(sig, "unexpected end of signature")
	}
	switch c := sig[i]; c {
	case 'y', 'b', 'n', 'q', 'i', 'u', 'x', 't', 'd', 's', 'o', 'g', 'v':
		return i + 1, nil
	case 'a':
		if i+1 >= len(sig) {
			return 0, sigErr(sig, "array type code with no element type")
		}
		if sig[i+1] == '{' {
			return consumeDictEntry(sig, i+1)
		}
		return consumeType(sig, i+1)
	case '(':
		j := i + 1
		for j < len(sig) && sig[j] != ')' {
			next, err := consumeType(sig, j)
			if err != nil {
				return 0, err
			}
			j = next
		}
		if j >= len(sig) {
			return 0, sigErr(sig, "unbalanced '(' in struct signature")
		}
		return j + 1, nil
	case '{':
		return 0, sigErr(sig, "dict-entry type outside of array")
	case ')':
		return 0, sigErr(sig, "unexpected ')' with no matching '('")
	case '}':
		return 0, sigErr(sig, "unexpected '}' with no matching '{'")
	default:
		return 0, sigErr(sig, "illegal type code "+quote(string(c)))
	}
}

// consumeDictEntry parses "{KV}" starting at the '{' index i, where
// the array's element type has already been identified as a
// dict-entry by the caller.
func consumeDictEntry(sig string, i int) (int, error) {
	if i >= len(sig) || sig[i] != '{' {
		return 0, sigErr(sig, "expected '{' to start dict-entry")
	}
	k := i + 1
	if k >= len(sig) {
		return 0, sigErr(sig, "unterminated dict-entry")
	}
	if !isBasicType(sig[k]) {
		return 0, sigErr(sig, "dict-entry key must be a basic type, got "+quote(string(sig[k])))
	}
	k, err := consumeType(sig, k)
	if err != nil {
		return 0, err
	}
	if k >= len(sig) {
		return 0, sigErr(sig, "dict-entry missing value type")
	}
	k, err = consumeType(sig, k)
	if err != nil {
		return 0, err
	}
	if k >= len(sig) || sig[k] != '}' {
		return 0, sigErr(sig, "dict-entry must have exactly one key and one value type")
	}
	return k + 1, nil
}
