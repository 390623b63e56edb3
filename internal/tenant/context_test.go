package tenant

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ten := &Tenant{DBName: "tenant_3"}
	ctx := WithTenant(context.Background(), ten)

	if got := FromContext(ctx); got != ten {
		t.Fatalf("FromContext = %#v, want the stored tenant", got)
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("FromContext on empty context = %#v, want nil", got)
	}
}

func TestStripPort(t *testing.T) {
	cases := map[string]string{
		"acme.example.test":      "acme.example.test",
		"acme.example.test:8080": "acme.example.test",
		"localhost:443":          "localhost",
	}
	for in, want := range cases {
		if got := stripPort(in); got != want {
			t.Errorf("stripPort(%q) = %q, want %q", in, got, want)
		}
	}
}
