package dialog

import "testing"

func TestFakeConsumesScriptsInOrder(t *testing.T) {
	f := &Fake{
		Passwords: []string{"first", "second"},
		Confirms:  []bool{true, false},
	}

	pw, err := f.Password("pw 1")
	if err != nil || pw != "first" {
		t.Errorf("Password = %q, %v; want first", pw, err)
	}
	pw, _ = f.Password("pw 2")
	if pw != "second" {
		t.Errorf("Password = %q, want second", pw)
	}

	ok, _ := f.Confirm("confirm 1")
	if !ok {
		t.Error("first confirm should be true")
	}
	ok, _ = f.Confirm("confirm 2")
	if ok {
		t.Error("second confirm should be false")
	}

	want := []string{"pw 1", "pw 2", "confirm 1", "confirm 2"}
	if len(f.Asked) != len(want) {
		t.Fatalf("Asked = %v, want %v", f.Asked, want)
	}
	for i := range want {
		if f.Asked[i] != want[i] {
			t.Errorf("Asked[%d] = %q, want %q", i, f.Asked[i], want[i])
		}
	}
}

func TestFakePastEndOfScript(t *testing.T) {
	f := &Fake{}

	pw, err := f.Password("any")
	if err != nil || pw != "" {
		t.Errorf("Password past script = %q, %v; want empty", pw, err)
	}
	ok, err := f.Confirm("any")
	if err != nil || ok {
		t.Errorf("Confirm past script = %v, %v; want false", ok, err)
	}
}

func TestNoneRefuses(t *testing.T) {
	var n None

	if _, err := n.Password("secret"); err == nil {
		t.Error("None.Password must fail")
	}
	ok, err := n.Confirm("proceed?")
	if err != nil {
		t.Errorf("None.Confirm: %v", err)
	}
	if ok {
		t.Error("None.Confirm must answer no")
	}
}
