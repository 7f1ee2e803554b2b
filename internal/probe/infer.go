package probe

// Inferencer turns a column profile into the declared type committed to storage.
type Inferencer interface {
	Infer(p ColumnProfile) DeclaredType
}

// InferencerFunc adapts a function to Inferencer.
type InferencerFunc func(p ColumnProfile) DeclaredType

func (f InferencerFunc) Infer(p ColumnProfile) DeclaredType { return f(p) }

// IdentityInferencer declares each column as its profile's TypeGuess.
var IdentityInferencer Inferencer = InferencerFunc(func(p ColumnProfile) DeclaredType {
	if p.TypeGuess == "" {
		return TypeText
	}
	return p.TypeGuess
})
