package di

// IsAssignable reports whether a value of candidate can satisfy a request for
// requested.
//
// Rules, in order: equal keys are assignable; a type-parameter request accepts
// any candidate carrying its qualifiers and satisfying every upper bound;
// otherwise qualifier sets must match exactly and the unqualified candidate
// must be a subtype of the unqualified request. A nullable candidate never
// satisfies a non-null request.
//
// Results for concrete keys are memoized in the Universe's LRU.
func (u *Universe) IsAssignable(candidate, requested Key) bool {
	if candidate.Equal(requested) {
		return true
	}
	memo := u.assign != nil && !candidate.param && !requested.param
	id := candidate.id + " => " + requested.id
	if memo {
		if v, ok := u.assign.Get(id); ok {
			return v
		}
	}
	v := u.isAssignable(candidate, requested, 0)
	if memo {
		u.assign.Add(id, v)
	}
	return v
}

func (u *Universe) isAssignable(c, r Key, depth int) bool {
	if depth > maxTypeDepth {
		return false
	}
	if c.Equal(r) {
		return true
	}
	if r.param {
		if !hasQualifiers(c, r.qualifiers) {
			return false
		}
		for _, b := range r.bounds {
			if !u.isSubtype(c.Unqualified(), b, depth+1) {
				return false
			}
		}
		return true
	}
	if !sameQualifiers(c, r) {
		return false
	}
	return u.isSubtype(c.Unqualified(), r.Unqualified(), depth+1)
}

// IsSubtypeOf reports whether k is a subtype of super, ignoring the
// qualifiers of both. It walks declared supertypes transitively and
// short-circuits on the universal classifier.
func (u *Universe) IsSubtypeOf(k, super Key) bool {
	return u.isSubtype(k.Unqualified(), super.Unqualified(), 0)
}

func (u *Universe) isSubtype(k, super Key, depth int) bool {
	if depth > maxTypeDepth {
		return false
	}
	k, super = k.Unqualified(), super.Unqualified()
	if k.Equal(super) {
		return true
	}
	if u.isUniversal(super) {
		return super.nullable || !k.nullable
	}
	if super.param {
		for _, b := range super.bounds {
			if !u.isSubtype(k, b, depth+1) {
				return false
			}
		}
		return true
	}
	if k.nullable && !super.nullable {
		return false
	}
	if k.param {
		for _, b := range k.bounds {
			if u.isSubtype(b, super, depth+1) {
				return true
			}
		}
		return false
	}
	if k.classifier == super.classifier {
		if len(k.args) != len(super.args) {
			return false
		}
		for i := range k.args {
			if !u.isAssignable(k.args[i], super.args[i], depth+1) {
				return false
			}
		}
		return true
	}
	for _, st := range u.Supertypes(k.NonNull()) {
		if k.nullable {
			st = st.AsNullable()
		}
		if u.isSubtype(st, super, depth+1) {
			return true
		}
	}
	return false
}

// unify matches the generic pattern against requested, extending subst with
// type-parameter bindings. The instantiated pattern is meant to be assignable
// to requested; callers confirm that with IsAssignable after substitution.
func (u *Universe) unify(pattern, requested Key, subst map[string]Key, depth int) bool {
	if depth > maxTypeDepth {
		return false
	}
	if pattern.param {
		if !hasQualifiers(requested, pattern.qualifiers) {
			return false
		}
		bound := requested.WithoutQualifiers(pattern.qualifiers...)
		if pattern.nullable {
			bound = bound.NonNull()
		}
		if prev, ok := subst[pattern.classifier]; ok {
			return prev.Equal(bound)
		}
		subst[pattern.classifier] = bound
		return true
	}
	if !sameQualifiers(pattern, requested) {
		return false
	}
	if pattern.nullable && !requested.nullable {
		return false
	}
	if u.isUniversal(requested) {
		return true
	}
	if pattern.classifier == requested.classifier {
		if len(pattern.args) != len(requested.args) {
			return false
		}
		for i := range pattern.args {
			if !u.unify(pattern.args[i], requested.args[i], subst, depth+1) {
				return false
			}
		}
		return true
	}
	for _, st := range u.Supertypes(pattern.Unqualified().NonNull()) {
		st = decorate(st, pattern.qualifiers, pattern.nullable)
		trial := make(map[string]Key, len(subst))
		for k, v := range subst {
			trial[k] = v
		}
		if u.unify(st, requested, trial, depth+1) {
			for k, v := range trial {
				subst[k] = v
			}
			return true
		}
	}
	return false
}

// substitute replaces type-parameter nodes of k with their bindings. The
// boolean is false if some parameter is left unbound.
func substitute(k Key, subst map[string]Key) (Key, bool) {
	if k.param {
		v, ok := subst[k.classifier]
		if !ok {
			return k, false
		}
		return decorate(v, k.qualifiers, k.nullable), true
	}
	if len(k.args) == 0 {
		return k, true
	}
	complete := true
	args := make([]Key, len(k.args))
	for i, a := range k.args {
		sa, ok := substitute(a, subst)
		if !ok {
			complete = false
		}
		args[i] = sa
	}
	return decorate(NewKey(k.classifier, args...), k.qualifiers, k.nullable), complete
}
