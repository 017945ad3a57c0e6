package store

import "testing"

func TestMetadataFromArgsNoTrailer(t *testing.T) {
	meta, err := MetadataFromArgs(nil)
	if err != nil {
		t.Fatalf("MetadataFromArgs(nil): %v", err)
	}
	if meta.IsExpired() {
		t.Fatal("no-trailer metadata should never expire")
	}
}

func TestMetadataFromArgsEX(t *testing.T) {
	meta, err := MetadataFromArgs([]string{"EX", "100"})
	if err != nil {
		t.Fatalf("MetadataFromArgs EX: %v", err)
	}
	seconds, ok := meta.ExpireDuration()
	if !ok || seconds <= 0 || seconds > 100 {
		t.Fatalf("ExpireDuration() = %d, %v; want in (0, 100]", seconds, ok)
	}
}

func TestMetadataFromArgsPX(t *testing.T) {
	meta, err := MetadataFromArgs([]string{"PX", "100000"})
	if err != nil {
		t.Fatalf("MetadataFromArgs PX: %v", err)
	}
	seconds, ok := meta.ExpireDuration()
	if !ok || seconds <= 0 || seconds > 100 {
		t.Fatalf("ExpireDuration() = %d, %v; want in (0, 100]", seconds, ok)
	}
}

func TestMetadataFromArgsInvalid(t *testing.T) {
	cases := [][]string{
		{"EX"},
		{"EX", "notanumber"},
		{"BOGUS", "5"},
		{"EX", "5", "extra"},
	}
	for _, args := range cases {
		if _, err := MetadataFromArgs(args); err == nil {
			t.Fatalf("MetadataFromArgs(%v): expected error", args)
		}
	}
}

func TestNeverExpireIsNeverExpired(t *testing.T) {
	if NeverExpire().IsExpired() {
		t.Fatal("NeverExpire() must never report expired")
	}
	if _, ok := NeverExpire().ExpireDuration(); ok {
		t.Fatal("NeverExpire().ExpireDuration() must report ok=false")
	}
}

func TestFromDeadlineMsAlreadyPast(t *testing.T) {
	meta := FromDeadlineMs(1)
	if !meta.IsExpired() {
		t.Fatal("a deadline of 1ms since epoch should already be expired")
	}
}
