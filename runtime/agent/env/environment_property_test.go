package env

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBindIsWriteOnce verifies that once a name is bound, no subsequent Bind
// for the same name can change its value, regardless of what value is
// offered the second time around.
func TestBindIsWriteOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("second bind of the same name always errors and leaves the value unchanged", prop.ForAll(
		func(name, first, second string) bool {
			if !ValidIdent(name) {
				return true
			}
			e := New()
			if err := e.Bind(name, first); err != nil {
				return false
			}
			err := e.Bind(name, second)
			if err == nil {
				return false
			}
			got, ok := e.Lookup(name)
			return ok && got == first
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("binding order is preserved in Names regardless of value content", prop.ForAll(
		func(names []string) bool {
			seen := make(map[string]bool)
			var unique []string
			for _, n := range names {
				if !ValidIdent(n) || seen[n] {
					continue
				}
				seen[n] = true
				unique = append(unique, n)
			}
			e := New()
			for i, n := range unique {
				if err := e.Bind(n, fmt.Sprintf("v%d", i)); err != nil {
					return false
				}
			}
			got := e.Names()
			if len(got) != len(unique) {
				return false
			}
			for i := range unique {
				if got[i] != unique[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestSeedAllowsOverwrite verifies Seed's contrast with Bind: repeated Seed
// calls for the same name always take the most recent value.
func TestSeedAllowsOverwrite(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("seed always reflects the last value written", prop.ForAll(
		func(name, first, second string) bool {
			if !ValidIdent(name) {
				return true
			}
			e := New()
			e.Seed(name, first)
			e.Seed(name, second)
			got, ok := e.Lookup(name)
			return ok && got == second
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("seed does not duplicate a name in Names on repeated writes", prop.ForAll(
		func(name string) bool {
			if !ValidIdent(name) {
				return true
			}
			e := New()
			e.Seed(name, "a")
			e.Seed(name, "b")
			e.Seed(name, "c")
			count := 0
			for _, n := range e.Names() {
				if n == name {
					count++
				}
			}
			return count == 1
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestRenderNeverRecursivelyExpands verifies that a bound value containing
// brace syntax is substituted verbatim and never re-interpreted as a further
// template reference.
func TestRenderNeverRecursivelyExpands(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a bound value containing braces is copied through unexpanded", prop.ForAll(
		func(inner string) bool {
			e := New()
			trap := "{" + inner + "}"
			if err := e.Bind("x", trap); err != nil {
				return false
			}
			out, used, missing := e.Render("{x}")
			return out == trap && len(used) == 1 && used[0] == "x" && len(missing) == 0
		},
		gen.AlphaString(),
	))

	properties.Property("unbound references are reported missing and render empty", prop.ForAll(
		func(name string) bool {
			if !ValidIdent(name) {
				return true
			}
			e := New()
			out, used, missing := e.Render("{" + name + "}")
			return out == "" && len(used) == 0 && len(missing) == 1 && missing[0] == name
		},
		gen.AlphaString(),
	))

	properties.Property("doubled braces always render as a single literal brace pair, never a reference", prop.ForAll(
		func(name string) bool {
			if !ValidIdent(name) {
				return true
			}
			e := New()
			_ = e.Bind(name, "SHOULD_NOT_APPEAR")
			out, used, _ := e.Render("{{" + name + "}}")
			return out == "{"+name+"}" && len(used) == 0
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
