package analyzed

import "github.com/ace-zkvm/ace/ast"

// ColumnRefs walks an AlgebraicExpr and returns every PolyID it references,
// deduplicated. The machine extractor (package machines) uses this to
// compute row-connected closures (spec §4.2).
func ColumnRefs(expr AlgebraicExpr) []PolyID {
	seen := map[PolyID]bool{}
	var out []PolyID
	var walk func(AlgebraicExpr)
	walk = func(e AlgebraicExpr) {
		switch ex := e.(type) {
		case ast.AlgColumnRef:
			if !seen[ex.PolyID] {
				seen[ex.PolyID] = true
				out = append(out, ex.PolyID)
			}
		case ast.AlgBinOp:
			walk(ex.Left)
			walk(ex.Right)
		case ast.AlgNeg:
			walk(ex.Inner)
		}
	}
	walk(expr)
	return out
}

// IdentityColumnRefs returns every PolyID referenced anywhere in an
// Identity: its polynomial expression, its connect column lists, or its bus
// tuple/selector/multiplicity.
func IdentityColumnRefs(id *Identity) []PolyID {
	seen := map[PolyID]bool{}
	var out []PolyID
	add := func(refs []PolyID) {
		for _, r := range refs {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	if id.Expr != nil {
		add(ColumnRefs(id.Expr))
	}
	for _, e := range id.LeftCols {
		add(ColumnRefs(e))
	}
	for _, e := range id.RightCols {
		add(ColumnRefs(e))
	}
	if id.Tuple.Selector != nil {
		add(ColumnRefs(id.Tuple.Selector))
	}
	for _, e := range id.Tuple.Values {
		add(ColumnRefs(e))
	}
	if id.Multiplicity != nil {
		add(ColumnRefs(id.Multiplicity))
	}
	return out
}

// LeftColumnRefs returns only the PolyIDs referenced by an identity's
// "left" side: for KindConnect, LeftCols; for KindBusSend, the Tuple and
// Multiplicity; for KindPolynomial, the whole expression (a polynomial
// identity has no left/right distinction, it constrains only its own
// machine). KindBusReceive has no left side -- it *is* a right side,
// answered by another identity's send.
func LeftColumnRefs(id *Identity) []PolyID {
	switch id.Kind {
	case KindConnect:
		seen := map[PolyID]bool{}
		var out []PolyID
		for _, e := range id.LeftCols {
			for _, r := range ColumnRefs(e) {
				if !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
		return out
	case KindBusSend:
		seen := map[PolyID]bool{}
		var out []PolyID
		add := func(refs []PolyID) {
			for _, r := range refs {
				if !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
		if id.Tuple.Selector != nil {
			add(ColumnRefs(id.Tuple.Selector))
		}
		for _, e := range id.Tuple.Values {
			add(ColumnRefs(e))
		}
		if id.Multiplicity != nil {
			add(ColumnRefs(id.Multiplicity))
		}
		return out
	default:
		return IdentityColumnRefs(id)
	}
}

// RightColumnRefs returns the PolyIDs on an identity's "right"/callee side:
// for KindConnect, RightCols; for KindBusReceive, the Tuple. Other kinds
// have no right side.
func RightColumnRefs(id *Identity) []PolyID {
	switch id.Kind {
	case KindConnect:
		seen := map[PolyID]bool{}
		var out []PolyID
		for _, e := range id.RightCols {
			for _, r := range ColumnRefs(e) {
				if !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
		return out
	case KindBusReceive:
		seen := map[PolyID]bool{}
		var out []PolyID
		add := func(refs []PolyID) {
			for _, r := range refs {
				if !seen[r] {
					seen[r] = true
					out = append(out, r)
				}
			}
		}
		if id.Tuple.Selector != nil {
			add(ColumnRefs(id.Tuple.Selector))
		}
		for _, e := range id.Tuple.Values {
			add(ColumnRefs(e))
		}
		return out
	default:
		return nil
	}
}
