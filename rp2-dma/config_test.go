package dma

import "testing"

func TestDefaultChannelConfig(t *testing.T) {
	cc := DefaultChannelConfig(5)
	if !cc.Enabled() {
		t.Error("default config not enabled")
	}
	if cc.TREQ() != TREQ_PERMANENT {
		t.Errorf("treq got!=expected: %#x != %#x", cc.TREQ(), TREQ_PERMANENT)
	}
	if cc.ChainTo() != 5 {
		t.Errorf("chain got!=expected: %d != 5", cc.ChainTo())
	}
	if cc.TransferDataSize() != TxSize32 {
		t.Errorf("size got!=expected: %s != %s", cc.TransferDataSize(), TxSize32)
	}
	if !cc.ReadIncrement() || cc.WriteIncrement() {
		t.Error("default increments: want read only")
	}
	if cc.IRQQuiet() || cc.HighPriority() {
		t.Error("default config quiet or high priority")
	}
	// Same word the c-sdk builds for channel 5.
	const want = 0x3f<<15 | 5<<11 | 1<<4 | 2<<2 | 1
	if cc.CTRL != want {
		t.Errorf("ctrl got!=expected: %#x != %#x", cc.CTRL, want)
	}
}

func TestChannelConfigFields(t *testing.T) {
	var cc ChannelConfig
	cc.SetRing(true, 11)
	cc.SetTREQ_SEL(DREQ_PWM_WRAP3)
	cc.SetChainTo(11)
	cc.SetTransferDataSize(TxSize16)
	cc.SetIRQQuiet(true)
	cc.SetHighPriority(true)

	if write, bits := cc.Ring(); !write || bits != 11 {
		t.Errorf("ring got!=expected: %v,%d != true,11", write, bits)
	}
	if cc.TREQ() != DREQ_PWM_WRAP3 {
		t.Errorf("treq got!=expected: %#x != %#x", cc.TREQ(), DREQ_PWM_WRAP3)
	}
	if cc.ChainTo() != 11 {
		t.Errorf("chain got!=expected: %d != 11", cc.ChainTo())
	}
	if cc.TransferDataSize() != TxSize16 {
		t.Errorf("size got!=expected: %s != %s", cc.TransferDataSize(), TxSize16)
	}
	if !cc.IRQQuiet() || !cc.HighPriority() {
		t.Error("flags not set")
	}

	// Overwriting a field leaves the others alone.
	cc.SetRing(false, 4)
	cc.SetTREQ_SEL(TREQ_PERMANENT)
	if write, bits := cc.Ring(); write || bits != 4 {
		t.Errorf("ring got!=expected: %v,%d != false,4", write, bits)
	}
	if cc.ChainTo() != 11 || cc.TransferDataSize() != TxSize16 {
		t.Error("neighbouring fields clobbered")
	}
}

func TestDREQ(t *testing.T) {
	if got := PWMWrapDREQ(0); got != 0x18 {
		t.Errorf("pwm wrap 0 got!=expected: %#x != 0x18", got)
	}
	if got := PIOTxDREQ(1, 2); got != 0xa {
		t.Errorf("pio1 tx2 got!=expected: %#x != 0xa", got)
	}
	if got := PIORxDREQ(0, 3); got != 0x7 {
		t.Errorf("pio0 rx3 got!=expected: %#x != 0x7", got)
	}
}
