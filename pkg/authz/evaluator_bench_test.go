package authz

import "testing"

// The evaluator sits on every request, so a decision has to stay in
// the nanosecond range with zero surprises under concurrency.

func BenchmarkEvaluator_Check(b *testing.B) {
	eval := New(testTable(b))
	user := &User{ID: "u1", Groups: []string{"regionAdmin-utrecht", "hdcnLeden"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eval.Check(user, ResourceMembers, ActionRead, "utrecht")
	}
}

func BenchmarkEvaluator_Check_Denied(b *testing.B) {
	eval := New(testTable(b))
	user := &User{ID: "u1", Groups: []string{"hdcnLeden"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eval.Check(user, ResourceMembers, ActionWrite, "utrecht")
	}
}

func BenchmarkEvaluator_Explain(b *testing.B) {
	eval := New(testTable(b))
	user := &User{ID: "u1", Groups: []string{"regionAdmin-utrecht"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eval.Explain(user, ResourceMembers, ActionExport, "utrecht")
	}
}

func BenchmarkEvaluator_AccessibleRegions(b *testing.B) {
	eval := New(testTable(b))
	user := &User{ID: "u1", Groups: []string{"regionAdmin-utrecht", "regionAdmin-limburg"}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		eval.AccessibleRegions(user)
	}
}

func BenchmarkEvaluator_Check_Parallel(b *testing.B) {
	eval := New(testTable(b))
	user := &User{ID: "u1", Groups: []string{"secretariaat"}}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			eval.Check(user, ResourceMembers, ActionRead, "limburg")
		}
	})
}
