package main

// Repr is how a runtime value occupies machine words. Every load, store,
// push, pop, argument and return moves exactly Repr.Words() words.
type Repr int

const (
	// Scalar is one word: an integer, the bit pattern of a decimal, a 0/1
	// boolean, or the numeric id of a class instance.
	Scalar Repr = iota + 1
	// Fat is two words: a pointer (or linear-memory offset) and a length.
	// Text and arrays are fat.
	Fat
)

// ReprOf returns the representation of values of type t. Void and unknown
// types are treated as scalars so that a zero word can always be produced.
func ReprOf(t Type) Repr {
	if t == TypeText || t == TypeArray {
		return Fat
	}
	return Scalar
}

// Words returns the number of machine words of the representation.
func (r Repr) Words() int {
	if r == Fat {
		return 2
	}
	return 1
}

func (r Repr) String() string {
	switch r {
	case Scalar:
		return "scalar"
	case Fat:
		return "fat"
	default:
		return "invalid"
	}
}
