package specification

// Selector names a member of an entity together with a getter usable for
// in-process evaluation. The member name is what external backends translate;
// the getter is what the in-memory driver calls. Both views describe the same
// expression, so either evaluation strategy can consume a specification
// without a platform-specific expression representation.
type Selector struct {
	name string
	get  func(any) any
}

// Field builds a selector for a direct member access. The name must match the
// navigation or sort member it selects; the getter is wrapped in a type
// coercion so untyped drivers can invoke it.
func Field[T, R any](name string, get func(T) R) Selector {
	return Selector{name: name, get: coerce(get)}
}

// Computed builds a selector with no member name, for sort keys derived from
// arbitrary expressions. Include handling skips computed selectors because no
// navigation path can be derived from them.
func Computed[T, R any](get func(T) R) Selector {
	return Selector{get: coerce(get)}
}

func coerce[T, R any](get func(T) R) func(any) any {
	return func(v any) any {
		if t, ok := v.(T); ok {
			return get(t)
		}
		if p, ok := v.(*T); ok && p != nil {
			return get(*p)
		}
		return nil
	}
}

// MemberName unwraps the coercion and reports the selected member, or ""
// when the selector is not a direct member access.
func (s Selector) MemberName() string { return s.name }

// Value applies the getter to an entity. Entities of an unexpected dynamic
// type yield nil.
func (s Selector) Value(entity any) any {
	if s.get == nil {
		return nil
	}
	return s.get(entity)
}

// IsZero reports whether the selector carries neither a name nor a getter.
func (s Selector) IsZero() bool { return s.name == "" && s.get == nil }
