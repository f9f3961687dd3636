package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFieldPatch(t *testing.T) {
	testCases := []struct {
		name       string
		desired    map[string]interface{}
		live       map[string]interface{}
		wantPatch  map[string]interface{}
		wantFields []string
	}{
		{
			name: "replicas drift",
			desired: map[string]interface{}{
				"spec": map[string]interface{}{"replicas": int64(3), "paused": false},
			},
			live: map[string]interface{}{
				"spec": map[string]interface{}{"replicas": int64(2), "revisionHistoryLimit": int64(10)},
			},
			wantPatch: map[string]interface{}{
				"spec": map[string]interface{}{"replicas": int64(3)},
			},
			wantFields: []string{"spec.replicas"},
		},
		{
			name: "numbers compare by value",
			desired: map[string]interface{}{
				"spec": map[string]interface{}{"replicas": int64(3)},
			},
			live: map[string]interface{}{
				"spec": map[string]interface{}{"replicas": float64(3)},
			},
		},
		{
			name: "status and server metadata are ignored",
			desired: map[string]interface{}{
				"apiVersion": "v1",
				"kind":       "ConfigMap",
				"metadata": map[string]interface{}{
					"name":            "cm",
					"namespace":       "web",
					"resourceVersion": "1",
				},
				"status": map[string]interface{}{"ready": true},
			},
			live: map[string]interface{}{
				"apiVersion": "v1",
				"kind":       "ConfigMap",
				"metadata": map[string]interface{}{
					"name":            "cm",
					"namespace":       "web",
					"resourceVersion": "42",
					"uid":             "abc",
				},
				"status": map[string]interface{}{"ready": false},
			},
		},
		{
			name: "missing label is drift",
			desired: map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"team": "web", "tier": "frontend"},
				},
			},
			live: map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"team": "web", "extra": "x"},
				},
			},
			wantPatch: map[string]interface{}{
				"metadata": map[string]interface{}{
					"labels": map[string]interface{}{"tier": "frontend"},
				},
			},
			wantFields: []string{"metadata.labels.tier"},
		},
		{
			name: "lists are replaced whole",
			desired: map[string]interface{}{
				"spec": map[string]interface{}{
					"ports": []interface{}{
						map[string]interface{}{"port": int64(80)},
						map[string]interface{}{"port": int64(443)},
					},
				},
			},
			live: map[string]interface{}{
				"spec": map[string]interface{}{
					"ports": []interface{}{
						map[string]interface{}{"port": int64(80), "protocol": "TCP"},
					},
				},
			},
			wantPatch: map[string]interface{}{
				"spec": map[string]interface{}{
					"ports": []interface{}{
						map[string]interface{}{"port": int64(80)},
						map[string]interface{}{"port": int64(443)},
					},
				},
			},
			wantFields: []string{"spec.ports"},
		},
		{
			name: "list elements compare one-way",
			desired: map[string]interface{}{
				"spec": map[string]interface{}{
					"ports": []interface{}{map[string]interface{}{"port": int64(80)}},
				},
			},
			live: map[string]interface{}{
				"spec": map[string]interface{}{
					"ports":     []interface{}{map[string]interface{}{"port": int64(80), "protocol": "TCP", "targetPort": int64(80)}},
					"clusterIP": "10.96.0.4",
				},
			},
		},
		{
			name: "zero values match missing fields",
			desired: map[string]interface{}{
				"data": map[string]interface{}{},
				"spec": map[string]interface{}{"paused": false, "name": "", "args": []interface{}{}},
			},
			live: map[string]interface{}{},
		},
		{
			name: "missing map is created",
			desired: map[string]interface{}{
				"data": map[string]interface{}{"color": "blue"},
			},
			live: map[string]interface{}{},
			wantPatch: map[string]interface{}{
				"data": map[string]interface{}{"color": "blue"},
			},
			wantFields: []string{"data.color"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gotPatch, gotFields := FieldPatch(tc.desired, tc.live)
			if diff := cmp.Diff(tc.wantPatch, gotPatch); diff != "" {
				t.Errorf("patch: %s", diff)
			}
			if diff := cmp.Diff(tc.wantFields, gotFields); diff != "" {
				t.Errorf("fields: %s", diff)
			}
		})
	}
}

func TestMergePatch(t *testing.T) {
	obj := map[string]interface{}{
		"spec": map[string]interface{}{
			"replicas": int64(2),
			"template": map[string]interface{}{"image": "web:1"},
		},
		"status": map[string]interface{}{"replicas": int64(2)},
	}
	patch := map[string]interface{}{
		"spec": map[string]interface{}{"replicas": int64(3)},
	}

	MergePatch(obj, patch)

	want := map[string]interface{}{
		"spec": map[string]interface{}{
			"replicas": int64(3),
			"template": map[string]interface{}{"image": "web:1"},
		},
		"status": map[string]interface{}{"replicas": int64(2)},
	}
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Error(diff)
	}
}
