package schema_test

import (
	"testing"

	"github.com/atlasdatatech/wfsd/schema"
)

func TestInfer(t *testing.T) {
	testcases := []struct {
		name   string
		sample []map[string]interface{}
		want   map[string]string
	}{
		{
			name:   "empty sample",
			sample: nil,
			want:   map[string]string{},
		},
		{
			name: "all integer",
			sample: []map[string]interface{}{
				{"count": 1},
				{"count": 2},
			},
			want: map[string]string{"count": "Integer"},
		},
		{
			name: "mixed integer and real is real",
			sample: []map[string]interface{}{
				{"amount": 1},
				{"amount": 1.5},
			},
			want: map[string]string{"amount": "Real"},
		},
		{
			name: "boolean is string",
			sample: []map[string]interface{}{
				{"active": true},
			},
			want: map[string]string{"active": "String"},
		},
		{
			name: "null contributes no observation",
			sample: []map[string]interface{}{
				{"name": nil},
				{"name": "alice"},
			},
			want: map[string]string{"name": "String"},
		},
		{
			name: "string and integer mix is string",
			sample: []map[string]interface{}{
				{"code": 1},
				{"code": "A1"},
			},
			want: map[string]string{"code": "String"},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got := schema.Infer(tc.sample)
			if len(got) != len(tc.want) {
				t.Fatalf("Infer() = %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Errorf("Infer()[%q] = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}
