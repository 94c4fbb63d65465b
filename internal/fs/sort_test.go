package fs

import "testing"

func TestSortEntriesDirectoriesFirstThenNaturalName(t *testing.T) {
	entries := []Entry{
		{Name: "b.txt", Kind: KindRegular},
		{Name: "Zeta", Kind: KindDirectory},
		{Name: "file10", Kind: KindRegular},
		{Name: "A.txt", Kind: KindRegular},
		{Name: "alpha", Kind: KindDirectory},
		{Name: "file2", Kind: KindRegular},
		{Name: "link", Kind: KindSymlink, TargetKind: KindDirectory},
	}
	SortEntries(entries)

	want := []string{"alpha", "link", "Zeta", "A.txt", "b.txt", "file2", "file10"}
	for i, name := range want {
		if entries[i].Name != name {
			got := make([]string, len(entries))
			for j, e := range entries {
				got[j] = e.Name
			}
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestCompareIsTotalForCaseVariants(t *testing.T) {
	a := Entry{Name: "Readme", Kind: KindRegular}
	b := Entry{Name: "readme", Kind: KindRegular}
	if Compare(a, b) == 0 || Compare(a, b) != -Compare(b, a) {
		t.Fatalf("expected a strict, antisymmetric order for case variants")
	}
}
