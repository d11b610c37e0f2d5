package identifier

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const maxSequence = 999999

var (
	ErrInvalidIdentifier = errors.New("invalid_identifier")
	ErrSequenceExhausted = errors.New("identifier_sequence_exhausted")

	pattern = regexp.MustCompile(`^([A-Z]+)-(\d{4})-(\d{6})$`)
)

// Sequence names an identifier prefix and the column that stores it.
type Sequence struct {
	Prefix string
	Table  string
	Column string
}

var (
	Policy     = Sequence{Prefix: "POL", Table: "policies", Column: "policy_number"}
	Claim      = Sequence{Prefix: "SIN", Table: "claims", Column: "claim_number"}
	Asset      = Sequence{Prefix: "AST", Table: "assets", Column: "asset_code"}
	Invoice    = Sequence{Prefix: "INV", Table: "invoices", Column: "invoice_number"}
	Settlement = Sequence{Prefix: "FIN", Table: "claim_settlements", Column: "settlement_number"}
)

func Format(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%04d-%06d", prefix, year, seq)
}

func Parse(id string) (prefix string, year int, seq int64, err error) {
	m := pattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, 0, ErrInvalidIdentifier
	}
	year, _ = strconv.Atoi(m[2])
	seq, _ = strconv.ParseInt(m[3], 10, 64)
	return m[1], year, seq, nil
}

func IsValid(id string) bool {
	return pattern.MatchString(id)
}
