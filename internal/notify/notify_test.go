package notify

import "testing"

func TestBroadcaster_FansOut(t *testing.T) {
	var a, b Recorder
	bc := NewBroadcaster(nil, &a)
	remove := bc.Add(&b)

	bc.Notify(Info("Call started", ""))
	remove()
	bc.Notify(Info("Call ended", ""))

	if len(a.All()) != 2 || len(b.All()) != 1 {
		t.Fatalf("a=%d b=%d", len(a.All()), len(b.All()))
	}
	last, _ := a.Last()
	if last.Title != "Call ended" || last.Variant != VariantDefault || last.At.IsZero() {
		t.Fatalf("last = %+v", last)
	}
}

func TestBroadcaster_DisabledKeepsFailures(t *testing.T) {
	enabled := false
	var rec Recorder
	bc := NewBroadcaster(func() bool { return enabled }, &rec)

	bc.Notify(Info("Call joined", ""))
	bc.Notify(Failure("Call failed", "Could not access camera or microphone"))

	all := rec.All()
	if len(all) != 1 || all[0].Variant != VariantDestructive {
		t.Fatalf("got %+v", all)
	}

	enabled = true
	bc.Notify(Info("Call joined", ""))
	if len(rec.All()) != 2 {
		t.Fatalf("got %d", len(rec.All()))
	}
}

func TestRecorder_LastEmpty(t *testing.T) {
	var r Recorder
	if _, ok := r.Last(); ok {
		t.Fatal("expected no notification")
	}
	r.Notify(Info("x", ""))
	r.Reset()
	if len(r.All()) != 0 {
		t.Fatal("reset kept items")
	}
}
