package core

import (
	"math"
	"sort"
)

// Equal reports value equality. Structures compare their named field
// sets order-insensitively and their unnamed sequences pointwise. Tag
// references compare by definition identity through aliases; handles,
// blocks, and function references by identity.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case Number:
		bv, ok := b.(Number)
		if !ok {
			return false
		}
		if math.IsNaN(float64(av)) || math.IsNaN(float64(bv)) {
			return math.IsNaN(float64(av)) && math.IsNaN(float64(bv))
		}
		return av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case TagRef:
		bv, ok := b.(TagRef)
		return ok && av.Def.Resolve() == bv.Def.Resolve()
	case HandleRef:
		bv, ok := b.(HandleRef)
		return ok && av.H == bv.H
	case FuncRef:
		bv, ok := b.(FuncRef)
		return ok && sameFamily(av.Family, bv.Family)
	case *Block:
		bv, ok := b.(*Block)
		return ok && av == bv
	case *Structure:
		bv, ok := b.(*Structure)
		return ok && structEqual(av, bv)
	}
	return false
}

func sameFamily(a, b FuncFamily) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.FamilyModule() == b.FamilyModule() && a.FamilyName() == b.FamilyName()
}

func structEqual(a, b *Structure) bool {
	if len(a.named) != len(b.named) {
		return false
	}
	for name, i := range a.named {
		j, ok := b.named[name]
		if !ok || !Equal(a.fields[i].Value, b.fields[j].Value) {
			return false
		}
	}
	au, bu := a.Unnamed(), b.Unnamed()
	if len(au) != len(bu) {
		return false
	}
	for i := range au {
		if !Equal(au[i], bu[i]) {
			return false
		}
	}
	return true
}

// Compare returns -1, 0, or 1 for the total ordering over values.
// Values of different kinds order by kind rank. Structures order
// lexicographically: named fields sorted by name (name, then value),
// ties broken by the unnamed sequence.
func Compare(a, b Value) int {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return sign(ra - rb)
	}
	switch av := a.(type) {
	case Number:
		bv := b.(Number)
		fa, fb := float64(av), float64(bv)
		switch {
		case math.IsNaN(fa) && math.IsNaN(fb):
			return 0
		case math.IsNaN(fa):
			return -1
		case math.IsNaN(fb):
			return 1
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case String:
		return compareStrings(string(av), string(b.(String)))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	case TagRef:
		return compareTags(av.Def, b.(TagRef).Def)
	case HandleRef:
		return sign64(av.H.seq - b.(HandleRef).H.seq)
	case *Block:
		return sign64(av.seq - b.(*Block).seq)
	case FuncRef:
		bv := b.(FuncRef)
		if c := compareStrings(av.Family.FamilyModule(), bv.Family.FamilyModule()); c != 0 {
			return c
		}
		return compareStrings(av.Family.FamilyName(), bv.Family.FamilyName())
	case *Structure:
		return structCompare(av, b.(*Structure))
	}
	return 0
}

func structCompare(a, b *Structure) int {
	an, bn := sortedNames(a), sortedNames(b)
	for i := 0; i < len(an) && i < len(bn); i++ {
		if c := compareStrings(an[i], bn[i]); c != 0 {
			return c
		}
		va, _ := a.Get(an[i])
		vb, _ := b.Get(bn[i])
		if c := Compare(va, vb); c != 0 {
			return c
		}
	}
	if c := sign(len(an) - len(bn)); c != 0 {
		return c
	}
	au, bu := a.Unnamed(), b.Unnamed()
	for i := 0; i < len(au) && i < len(bu); i++ {
		if c := Compare(au[i], bu[i]); c != 0 {
			return c
		}
	}
	return sign(len(au) - len(bu))
}

func sortedNames(s *Structure) []string {
	names := s.Names()
	sort.Strings(names)
	return names
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func sign64(n int64) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
