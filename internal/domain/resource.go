package domain

import "maps"

// Resource is a tradable unit: either the reward an offer hands out or one
// line of the bundle an actor surrenders to acquire it. Two resources with
// the same Kind and Attributes are interchangeable; Quantity is the stack size.
type Resource struct {
	Kind       string
	Attributes map[string]string
	Quantity   int
}

// Clone returns a deep copy of r so callers can mutate the result freely.
func (r Resource) Clone() Resource {
	out := r
	if r.Attributes != nil {
		out.Attributes = maps.Clone(r.Attributes)
	}
	return out
}

// Similar reports whether r and other describe the same concrete resource,
// ignoring quantity. Attributes must match exactly; a nil map equals an
// empty one.
func (r Resource) Similar(other Resource) bool {
	if r.Kind != other.Kind {
		return false
	}
	if len(r.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range r.Attributes {
		ov, ok := other.Attributes[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// WithQuantity returns a copy of r carrying quantity n.
func (r Resource) WithQuantity(n int) Resource {
	out := r.Clone()
	out.Quantity = n
	return out
}

// CloneResources deep-copies a resource slice, preserving order.
func CloneResources(in []Resource) []Resource {
	if in == nil {
		return nil
	}
	out := make([]Resource, len(in))
	for i, r := range in {
		out[i] = r.Clone()
	}
	return out
}
