// Package shuffle produces reproducible per-student orderings of questions
// and options.
package shuffle

import (
	"crypto/md5"
	"encoding/binary"
	"math/rand/v2"
	"strings"
)

const (
	PurposeQuestions         = "::Q"
	PurposeRemedialQuestions = "::RQ"
)

const anonymous = "anon"

// Seed composes "<student or anon>::<subtopic><purpose>".
func Seed(studentID, subtopicID, purpose string) string {
	student := strings.TrimSpace(studentID)
	if student == "" {
		student = anonymous
	}
	return student + "::" + strings.TrimSpace(subtopicID) + purpose
}

func OptionsPurpose(questionID string) string {
	return "::OPT::" + questionID
}

func RemedialOptionsPurpose(remedialID string) string {
	return "::ROPT::" + remedialID
}

// Shuffle returns a permuted copy of items. The permutation depends only on
// len(items) and seed.
func Shuffle[T any](items []T, seed string) []T {
	out := make([]T, len(items))
	copy(out, items)
	if len(out) < 2 {
		return out
	}
	r := newRand(seed)
	r.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

func newRand(seed string) *rand.Rand {
	sum := md5.Sum([]byte(seed))
	hi := binary.BigEndian.Uint64(sum[:8])
	lo := binary.BigEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(hi, lo))
}
