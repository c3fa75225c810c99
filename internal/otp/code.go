package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// DefaultCodeLength is the number of digits in a generated code.
const DefaultCodeLength = 6

// CodeGenerator produces the secret the user echoes back.
type CodeGenerator interface {
	Generate() (string, error)
}

// CodeGeneratorFunc adapts a function to CodeGenerator.
type CodeGeneratorFunc func() (string, error)

func (f CodeGeneratorFunc) Generate() (string, error) {
	return f()
}

// NumericCodes draws uniformly random numeric codes of a fixed length.
// Leading zeros are kept.
type NumericCodes struct {
	length int
	max    *big.Int
}

// NewNumericCodes returns a generator for codes of the given length.
// Lengths outside 4..10 fall back to DefaultCodeLength.
func NewNumericCodes(length int) *NumericCodes {
	if length < 4 || length > 10 {
		length = DefaultCodeLength
	}
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	return &NumericCodes{length: length, max: max}
}

func (g *NumericCodes) Generate() (string, error) {
	n, err := rand.Int(rand.Reader, g.max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", g.length, n.Int64()), nil
}

// Length returns the number of digits per code.
func (g *NumericCodes) Length() int {
	return g.length
}

// NewVerificationToken returns a fresh opaque token for an issuance.
func NewVerificationToken() string {
	return uuid.NewString()
}
