package formats

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/stratalabs/strata/internal/core/domain"
)

// appendAdapter returns an adapter that tags the payload so tests can
// observe which edges ran and in what order.
func appendAdapter(tag string) AdapterFunc {
	return func(data []byte) ([]byte, error) {
		return append(data, []byte("|"+tag)...), nil
	}
}

func TestNetwork_RegisterFormat(t *testing.T) {
	n := NewNetwork()

	if err := n.RegisterFormat("json"); err != nil {
		t.Fatalf("RegisterFormat failed: %v", err)
	}
	if !n.HasFormat("json") {
		t.Error("expected json to be registered")
	}
	if n.HasFormat("yaml") {
		t.Error("expected yaml to be unregistered")
	}

	// Re-registering is a no-op, not an error.
	if err := n.RegisterFormat("json"); err != nil {
		t.Errorf("re-registering format failed: %v", err)
	}
}

func TestNetwork_RegisterFormat_EmptyName(t *testing.T) {
	n := NewNetwork()

	err := n.RegisterFormat("")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestNetwork_RegisterAdapter(t *testing.T) {
	n := NewNetwork()
	if err := n.RegisterFormat("a"); err != nil {
		t.Fatalf("RegisterFormat failed: %v", err)
	}
	if err := n.RegisterFormat("b"); err != nil {
		t.Fatalf("RegisterFormat failed: %v", err)
	}

	if err := n.RegisterAdapter("a", "b", appendAdapter("a-b")); err != nil {
		t.Fatalf("RegisterAdapter failed: %v", err)
	}

	path, err := n.Path("a", "b")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"a", "b"}) {
		t.Errorf("expected path [a b], got %v", path)
	}
}

func TestNetwork_RegisterAdapter_Validation(t *testing.T) {
	n := NewNetwork()
	if err := n.RegisterFormat("a"); err != nil {
		t.Fatalf("RegisterFormat failed: %v", err)
	}

	tests := []struct {
		name string
		from string
		to   string
		fn   AdapterFunc
	}{
		{"nil adapter", "a", "b", nil},
		{"self loop", "a", "a", appendAdapter("x")},
		{"unknown source", "b", "a", appendAdapter("x")},
		{"unknown target", "a", "b", appendAdapter("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := n.RegisterAdapter(tt.from, tt.to, tt.fn)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNetwork_Formats_Sorted(t *testing.T) {
	n := NewNetwork()
	for _, name := range []string{"csv", "avro", "json"} {
		if err := n.RegisterFormat(name); err != nil {
			t.Fatalf("RegisterFormat failed: %v", err)
		}
	}

	got := n.Formats()
	want := []string{"avro", "csv", "json"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// buildChain registers formats a..e with edges a->b->c->d and a direct
// a->d shortcut left out so paths have to chain.
func buildChain(t *testing.T) *Network {
	t.Helper()

	n := NewNetwork()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		if err := n.RegisterFormat(name); err != nil {
			t.Fatalf("RegisterFormat failed: %v", err)
		}
	}
	edges := [][2]string{{"a", "b"}, {"b", "c"}, {"c", "d"}}
	for _, e := range edges {
		if err := n.RegisterAdapter(e[0], e[1], appendAdapter(e[0]+"-"+e[1])); err != nil {
			t.Fatalf("RegisterAdapter failed: %v", err)
		}
	}
	return n
}

func TestNetwork_Path_Chained(t *testing.T) {
	n := buildChain(t)

	path, err := n.Path("a", "d")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected path [a b c d], got %v", path)
	}
}

func TestNetwork_Path_Identity(t *testing.T) {
	n := buildChain(t)

	path, err := n.Path("a", "a")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"a"}) {
		t.Errorf("expected path [a], got %v", path)
	}
}

func TestNetwork_Path_PrefersShortest(t *testing.T) {
	n := buildChain(t)
	// Add a shortcut; it must beat the three-hop chain.
	if err := n.RegisterAdapter("a", "d", appendAdapter("a-d")); err != nil {
		t.Fatalf("RegisterAdapter failed: %v", err)
	}

	path, err := n.Path("a", "d")
	if err != nil {
		t.Fatalf("Path failed: %v", err)
	}
	if !reflect.DeepEqual(path, []string{"a", "d"}) {
		t.Errorf("expected shortcut path [a d], got %v", path)
	}
}

func TestNetwork_Path_DeterministicTies(t *testing.T) {
	// Two routes of equal length from a to c; sorted neighbour order
	// means the one through b1 always wins.
	n := NewNetwork()
	for _, name := range []string{"a", "b1", "b2", "c"} {
		if err := n.RegisterFormat(name); err != nil {
			t.Fatalf("RegisterFormat failed: %v", err)
		}
	}
	edges := [][2]string{{"a", "b2"}, {"a", "b1"}, {"b1", "c"}, {"b2", "c"}}
	for _, e := range edges {
		if err := n.RegisterAdapter(e[0], e[1], appendAdapter(e[0]+"-"+e[1])); err != nil {
			t.Fatalf("RegisterAdapter failed: %v", err)
		}
	}

	for i := 0; i < 10; i++ {
		path, err := n.Path("a", "c")
		if err != nil {
			t.Fatalf("Path failed: %v", err)
		}
		if !reflect.DeepEqual(path, []string{"a", "b1", "c"}) {
			t.Fatalf("expected path [a b1 c], got %v", path)
		}
	}
}

func TestNetwork_Path_NoPath(t *testing.T) {
	n := buildChain(t)

	// e has no edges at all; d has no outgoing edges.
	if _, err := n.Path("a", "e"); !errors.Is(err, domain.ErrNoConversionPath) {
		t.Errorf("expected ErrNoConversionPath, got %v", err)
	}
	if _, err := n.Path("d", "a"); !errors.Is(err, domain.ErrNoConversionPath) {
		t.Errorf("expected ErrNoConversionPath, got %v", err)
	}
}

func TestNetwork_Path_UnknownFormat(t *testing.T) {
	n := buildChain(t)

	if _, err := n.Path("nope", "a"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown source, got %v", err)
	}
	if _, err := n.Path("a", "nope"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for unknown target, got %v", err)
	}
}

func TestNetwork_Convert_ChainsAdapters(t *testing.T) {
	n := buildChain(t)

	out, err := n.Convert([]byte("payload"), "a", "d")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	want := "payload|a-b|b-c|c-d"
	if string(out) != want {
		t.Errorf("expected %q, got %q", want, string(out))
	}
}

func TestNetwork_Convert_Identity(t *testing.T) {
	n := buildChain(t)

	out, err := n.Convert([]byte("payload"), "a", "a")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}
	if string(out) != "payload" {
		t.Errorf("expected payload unchanged, got %q", string(out))
	}
}

func TestNetwork_Convert_AdapterError(t *testing.T) {
	n := NewNetwork()
	for _, name := range []string{"a", "b"} {
		if err := n.RegisterFormat(name); err != nil {
			t.Fatalf("RegisterFormat failed: %v", err)
		}
	}
	boom := errors.New("boom")
	err := n.RegisterAdapter("a", "b", func(data []byte) ([]byte, error) {
		return nil, boom
	})
	if err != nil {
		t.Fatalf("RegisterAdapter failed: %v", err)
	}

	_, err = n.Convert([]byte("payload"), "a", "b")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped adapter error, got %v", err)
	}
	if got := err.Error(); !strings.HasPrefix(got, "converting a to b") {
		t.Errorf("expected error naming the failing edge, got %q", got)
	}
}

func TestNetwork_ConcurrentAccess(t *testing.T) {
	n := buildChain(t)

	done := make(chan error, 20)
	for i := 0; i < 10; i++ {
		go func(i int) {
			_, err := n.Convert([]byte("payload"), "a", "d")
			done <- err
		}(i)
		go func(i int) {
			done <- n.RegisterFormat(fmt.Sprintf("extra-%d", i))
		}(i)
	}
	for i := 0; i < 20; i++ {
		if err := <-done; err != nil {
			t.Errorf("concurrent operation failed: %v", err)
		}
	}
}
