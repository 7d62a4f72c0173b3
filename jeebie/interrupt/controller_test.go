package interrupt

import "testing"

func TestPriorityOrder(t *testing.T) {
	c := New()
	c.WriteIE(0x1F)
	c.WriteIF(0x1F)
	c.SetIME(true)

	vector, src, ok := c.NextToService()
	if !ok {
		t.Fatal("expected a pending interrupt")
	}
	if src != VBlank || vector != 0x0040 {
		t.Errorf("NextToService() = (0x%04X, %v); want (0x0040, VBlank)", vector, src)
	}
}

func TestAcknowledgeClearsIFAndIME(t *testing.T) {
	c := New()
	c.WriteIE(0x1F)
	c.Raise(Timer)
	c.SetIME(true)

	c.Acknowledge(Timer)

	if c.IME() {
		t.Error("Acknowledge should clear IME")
	}
	if c.ReadIF()&0x04 != 0 {
		t.Error("Acknowledge should clear the serviced IF bit")
	}
}

func TestPendingIgnoresIME(t *testing.T) {
	c := New()
	c.WriteIE(0x01)
	c.Raise(VBlank)
	c.SetIME(false)

	if !c.Pending() {
		t.Error("Pending() should report true regardless of IME (used by HALT wake-up)")
	}
	if _, _, ok := c.NextToService(); ok {
		t.Error("NextToService() should respect IME")
	}
}

func TestReadIFSetsUnusedBits(t *testing.T) {
	c := New()
	if c.ReadIF() != 0xE0 {
		t.Errorf("ReadIF() = 0x%02X; want 0xE0 with no flags raised", c.ReadIF())
	}
}

func TestNoPendingWhenNotEnabled(t *testing.T) {
	c := New()
	c.Raise(Joypad)
	c.SetIME(true)

	if _, _, ok := c.NextToService(); ok {
		t.Error("NextToService() should be false when IE doesn't enable the pending source")
	}
}
