package multirow

import "github.com/mesh-intelligence/multirow/pkg/types"

// ResolveRelation returns the first hasMany relation of rt whose target is
// child.
func ResolveRelation(rt types.RecordType, child string) (types.Relation, bool) {
	for _, rel := range rt.Relations() {
		if rel.Target == child && rel.Kind == types.HasMany {
			return rel, true
		}
	}
	return types.Relation{}, false
}
