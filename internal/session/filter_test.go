package session

import "testing"

func TestFilterApplyNormalizes(t *testing.T) {
	f := &TagFilter{}
	if !f.Apply("  Work ") {
		t.Fatal("apply reported no change")
	}
	if f.Selected() != "work" {
		t.Errorf("selected = %q", f.Selected())
	}
	if f.Apply("WORK") {
		t.Error("re-applying the same tag reported a change")
	}
}

func TestFilterBlankIsNoOp(t *testing.T) {
	f := &TagFilter{}
	f.Apply("work")
	if f.Apply("   ") {
		t.Error("blank tag reported a change")
	}
	if f.Selected() != "work" {
		t.Errorf("blank tag cleared the filter: %q", f.Selected())
	}
}

func TestFilterClear(t *testing.T) {
	f := &TagFilter{}
	if f.Clear() {
		t.Error("clearing an empty filter reported a change")
	}
	f.Apply("work")
	if !f.Clear() || f.Selected() != "" {
		t.Errorf("clear failed: %q", f.Selected())
	}
}

func TestFilterSyncCatalogAutoClears(t *testing.T) {
	f := &TagFilter{}
	f.Apply("work")
	if f.SyncCatalog([]string{"work", "home"}) {
		t.Error("cleared while the tag still exists")
	}
	if !f.SyncCatalog([]string{"home"}) {
		t.Error("did not clear when the tag vanished")
	}
	if f.Selected() != "" {
		t.Errorf("selected = %q after vanish", f.Selected())
	}
}
