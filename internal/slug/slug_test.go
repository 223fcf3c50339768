package slug

import "testing"

func TestIsSlug(t *testing.T) {
	valid := []string{"account", "sales_create", "store_manager", "a1"}
	for _, s := range valid {
		if !IsSlug(s) {
			t.Errorf("IsSlug(%q) = false, want true", s)
		}
	}
	invalid := []string{"", "a", "Sales", "sales-create", "sales create"}
	for _, s := range invalid {
		if IsSlug(s) {
			t.Errorf("IsSlug(%q) = true, want false", s)
		}
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Store Manager":  "store_manager",
		"cashier1":       "cashier1",
		"__already__":    "already",
		"mixed--CASE--x": "mixed_case_x",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
