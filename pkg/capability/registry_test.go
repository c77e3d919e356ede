package capability

import (
	"context"
	"testing"
)

func noop(context.Context, Params) error { return nil }

func TestBuilderRejectsDuplicates(t *testing.T) {
	builder := NewBuilder()
	if err := builder.Register(Descriptor{Name: "message", Capability: Func(noop)}); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := builder.Register(Descriptor{Name: "message", Capability: Func(noop)}); err == nil {
		t.Fatal("duplicate Register should fail")
	}
}

func TestBuilderRejectsIncompleteDescriptors(t *testing.T) {
	builder := NewBuilder()
	if err := builder.Register(Descriptor{Capability: Func(noop)}); err == nil {
		t.Error("Register without a name should fail")
	}
	if err := builder.Register(Descriptor{Name: "message"}); err == nil {
		t.Error("Register without a handler should fail")
	}
}

func TestBuildAssignsTiersFromTable(t *testing.T) {
	builder := NewBuilder()
	builder.MustRegister(Descriptor{Name: "message", Capability: Func(noop)})
	builder.MustRegister(Descriptor{Name: "delete_file", Capability: Func(noop), Tier: TierSafe})
	builder.MustRegister(Descriptor{Name: "run_script", Capability: Func(noop)})

	registry := builder.Build(map[string]Tier{
		"delete_file": TierDangerous,
		"run_script":  TierCritical,
		"not_there":   TierCritical,
	})

	tests := []struct {
		name string
		want Tier
	}{
		{"message", TierSafe},
		{"delete_file", TierDangerous},
		{"run_script", TierCritical},
	}
	for _, test := range tests {
		descriptor, ok := registry.Lookup(test.name)
		if !ok {
			t.Fatalf("Lookup(%q) missing", test.name)
		}
		if descriptor.Tier != test.want {
			t.Errorf("%s tier = %v, want %v", test.name, descriptor.Tier, test.want)
		}
	}
	if registry.Has("not_there") {
		t.Error("tier table entries must not create capabilities")
	}
}

func TestBuildHonoursDisabled(t *testing.T) {
	builder := NewBuilder()
	builder.MustRegister(Descriptor{Name: "message", Capability: Func(noop)})
	builder.MustRegister(Descriptor{Name: "run_script", Capability: Func(noop)})
	builder.Disable("run_script", "unknown")

	registry := builder.Build(nil)
	if registry.Has("run_script") {
		t.Error("disabled capability was built")
	}
	if got := registry.Names(); len(got) != 1 || got[0] != "message" {
		t.Errorf("Names() = %v", got)
	}
}

func TestRegistryNamesSortedAndDetached(t *testing.T) {
	builder := NewBuilder()
	for _, name := range []string{"read_file", "append_file", "message"} {
		builder.MustRegister(Descriptor{Name: name, Capability: Func(noop)})
	}
	registry := builder.Build(nil)

	names := registry.Names()
	want := []string{"append_file", "message", "read_file"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}
	names[0] = "mutated"
	if registry.Names()[0] != "append_file" {
		t.Error("Names() exposed internal state")
	}
	if registry.Len() != 3 || len(registry.Descriptors()) != 3 {
		t.Errorf("Len() = %d", registry.Len())
	}
}
