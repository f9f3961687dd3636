package diff

import (
	"reflect"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
)

// ignoredTopLevelFields are never compared. apiVersion and kind are part of
// the identity, status is owned by controllers.
var ignoredTopLevelFields = map[string]bool{
	"apiVersion": true,
	"kind":       true,
	"status":     true,
}

// ignoredMetadataFields are populated by the API server, or are part of the
// identity.
var ignoredMetadataFields = map[string]bool{
	"name":                       true,
	"namespace":                  true,
	"uid":                        true,
	"resourceVersion":            true,
	"generation":                 true,
	"creationTimestamp":          true,
	"managedFields":              true,
	"selfLink":                   true,
	"deletionTimestamp":          true,
	"deletionGracePeriodSeconds": true,
	"ownerReferences":            true,
}

// FieldPatch returns the minimal set of fields of desired which differ from
// live, nested as in desired, and the sorted dotted paths of those fields.
// Fields absent from desired are never part of the patch.
//
// Returns a nil patch if live already has every field of desired.
func FieldPatch(desired, live map[string]interface{}) (map[string]interface{}, []string) {
	patch := make(map[string]interface{})
	var paths []string
	for k, dv := range desired {
		if ignoredTopLevelFields[k] {
			continue
		}
		lv, found := live[k]
		if k == "metadata" {
			dm, dok := dv.(map[string]interface{})
			lm, lok := lv.(map[string]interface{})
			if dok && (lok || !found) {
				sub, subPaths := diffMap(metadataOnly(dm), lm, "metadata")
				if sub != nil {
					patch[k] = sub
					paths = append(paths, subPaths...)
				}
				continue
			}
		}
		sub, subPaths, differs := diffValue(dv, lv, found, k)
		if differs {
			patch[k] = sub
			paths = append(paths, subPaths...)
		}
	}
	if len(patch) == 0 {
		return nil, nil
	}
	sort.Strings(paths)
	return patch, paths
}

func metadataOnly(m map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		if !ignoredMetadataFields[k] {
			result[k] = v
		}
	}
	return result
}

// diffMap returns the fields of desired which differ from live, or nil.
func diffMap(desired, live map[string]interface{}, path string) (map[string]interface{}, []string) {
	patch := make(map[string]interface{})
	var paths []string
	for k, dv := range desired {
		lv, found := live[k]
		sub, subPaths, differs := diffValue(dv, lv, found, path+"."+k)
		if differs {
			patch[k] = sub
			paths = append(paths, subPaths...)
		}
	}
	if len(patch) == 0 {
		return nil, nil
	}
	return patch, paths
}

// diffValue compares one desired value against the live value at the same
// path. Maps recurse so only the differing keys end up in the patch. Any
// other value, including lists, is patched as a whole.
func diffValue(desired, live interface{}, liveFound bool, path string) (interface{}, []string, bool) {
	if !liveFound || live == nil {
		if dm, ok := desired.(map[string]interface{}); ok {
			sub, subPaths := diffMap(dm, nil, path)
			if sub == nil {
				return nil, nil, false
			}
			return sub, subPaths, true
		}
		if isZero(desired) {
			return nil, nil, false
		}
		return runtime.DeepCopyJSONValue(desired), []string{path}, true
	}
	if dm, ok := desired.(map[string]interface{}); ok {
		lm, ok := live.(map[string]interface{})
		if !ok {
			return runtime.DeepCopyJSONValue(desired), []string{path}, true
		}
		sub, subPaths := diffMap(dm, lm, path)
		if sub == nil {
			return nil, nil, false
		}
		return sub, subPaths, true
	}
	if Equal(desired, live) {
		return nil, nil, false
	}
	return runtime.DeepCopyJSONValue(desired), []string{path}, true
}

// Equal returns true if live has every field set in desired, with the same
// value. Numbers compare by value regardless of their Go type, and zero
// values in desired match missing fields in live.
func Equal(desired, live interface{}) bool {
	switch d := desired.(type) {
	case nil:
		return true
	case map[string]interface{}:
		l, ok := live.(map[string]interface{})
		if !ok && live != nil {
			return false
		}
		for k, dv := range d {
			lv, found := l[k]
			if !found || lv == nil {
				if !isZero(dv) {
					return false
				}
				continue
			}
			if !Equal(dv, lv) {
				return false
			}
		}
		return true
	case []interface{}:
		l, ok := live.([]interface{})
		if !ok {
			return live == nil && len(d) == 0
		}
		if len(d) != len(l) {
			return false
		}
		for i := range d {
			if !Equal(d[i], l[i]) {
				return false
			}
		}
		return true
	}
	if df, ok := toFloat(desired); ok {
		lf, ok := toFloat(live)
		return ok && df == lf
	}
	if live == nil {
		return isZero(desired)
	}
	return reflect.DeepEqual(desired, live)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// isZero returns true for values the API server omits when serializing.
func isZero(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case map[string]interface{}:
		return len(t) == 0
	case []interface{}:
		return len(t) == 0
	}
	if f, ok := toFloat(v); ok {
		return f == 0
	}
	return false
}

// MergePatch merges patch into obj, replacing lists and scalars and merging
// maps key by key.
func MergePatch(obj, patch map[string]interface{}) {
	for k, pv := range patch {
		pm, pIsMap := pv.(map[string]interface{})
		om, oIsMap := obj[k].(map[string]interface{})
		if pIsMap && oIsMap {
			MergePatch(om, pm)
			continue
		}
		obj[k] = runtime.DeepCopyJSONValue(pv)
	}
}

// FormatPaths joins field paths for messages.
func FormatPaths(paths []string) string {
	return strings.Join(paths, ", ")
}
