// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkletree

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"

	"github.com/ava-labs/worldstate/utils/hashing"
)

const (
	// HashLength is the byte length of an encoded field element.
	HashLength = fr.Bytes

	poseidon2Width         = 2
	poseidon2FullRounds    = 6
	poseidon2PartialRounds = 50
)

var (
	Poseidon2Hasher Hasher = newPoseidon2Hasher()
	Keccak256Hasher Hasher = keccak256Hasher{}

	// If a Hasher isn't specified, this package defaults to using the
	// [Poseidon2Hasher].
	DefaultHasher = Poseidon2Hasher
)

type Hasher interface {
	// Returns the hash of the two children of a node.
	Hash(left, right fr.Element) fr.Element
	// Returns the hash of an ordered list of inputs.
	HashInputs(inputs ...fr.Element) fr.Element
	Name() string
}

// HasherByName returns the hasher registered under [name].
func HasherByName(name string) (Hasher, error) {
	switch name {
	case Poseidon2Hasher.Name():
		return Poseidon2Hasher, nil
	case Keccak256Hasher.Name():
		return Keccak256Hasher, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}

type poseidon2Hasher struct {
	perm *poseidon2.Permutation
}

func newPoseidon2Hasher() *poseidon2Hasher {
	return &poseidon2Hasher{
		perm: poseidon2.NewPermutation(
			poseidon2Width,
			poseidon2FullRounds,
			poseidon2PartialRounds,
		),
	}
}

func (*poseidon2Hasher) Name() string {
	return "poseidon2"
}

// Hash applies the permutation to (left, right) and feeds the right input
// forward into the second output lane.
func (h *poseidon2Hasher) Hash(left, right fr.Element) fr.Element {
	state := []fr.Element{left, right}
	// The permutation only fails on a state of the wrong width.
	_ = h.perm.Permutation(state)
	var out fr.Element
	out.Add(&state[1], &right)
	return out
}

// HashInputs folds the inputs from the left, starting from zero.
func (h *poseidon2Hasher) HashInputs(inputs ...fr.Element) fr.Element {
	var acc fr.Element
	for _, input := range inputs {
		acc = h.Hash(acc, input)
	}
	return acc
}

type keccak256Hasher struct{}

func (keccak256Hasher) Name() string {
	return "keccak256"
}

func (h keccak256Hasher) Hash(left, right fr.Element) fr.Element {
	return h.HashInputs(left, right)
}

// HashInputs hashes the big endian encoding of every input and reduces the
// digest modulo the field order.
func (keccak256Hasher) HashInputs(inputs ...fr.Element) fr.Element {
	bufs := make([][]byte, len(inputs))
	for i := range inputs {
		b := inputs[i].Bytes()
		bufs[i] = b[:]
	}
	digest := hashing.ComputeKeccak256Array(bufs...)
	var out fr.Element
	out.SetBytes(digest[:])
	return out
}

// ZeroHashes returns the root of an empty subtree for every level of a tree of
// [depth], indexed by level. Level [depth] holds the leaves.
func ZeroHashes(hasher Hasher, depth uint8) []fr.Element {
	zeros := make([]fr.Element, int(depth)+1)
	for level := int(depth) - 1; level >= 0; level-- {
		zeros[level] = hasher.Hash(zeros[level+1], zeros[level+1])
	}
	return zeros
}

// FromUint64 returns [v] as a field element.
func FromUint64(v uint64) fr.Element {
	var e fr.Element
	e.SetUint64(v)
	return e
}

// FromBytes interprets [b] as a big endian integer reduced modulo the field
// order.
func FromBytes(b []byte) fr.Element {
	var e fr.Element
	e.SetBytes(b)
	return e
}

func less(a, b fr.Element) bool {
	return a.Cmp(&b) < 0
}
