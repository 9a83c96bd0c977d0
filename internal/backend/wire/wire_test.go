package wire

import "testing"

func TestEncodeDecodeUint32(t *testing.T) {
	b := encodeUint32(0xdeadbeef)
	if len(b) != 4 {
		t.Fatalf("encodeUint32 length = %d, want 4", len(b))
	}
	got, ok := decodeUint32(b)
	if !ok || got != 0xdeadbeef {
		t.Errorf("decodeUint32 = (%x, %v), want (deadbeef, true)", got, ok)
	}
}

func TestDecodeUint32TooShort(t *testing.T) {
	if _, ok := decodeUint32([]byte{1, 2, 3}); ok {
		t.Error("decodeUint32 on a 3-byte slice should fail")
	}
}

func TestEncodeStringPadding(t *testing.T) {
	// "hi" + NUL = 3 bytes, padded to 4.
	got := encodeString("hi")
	wantLen := 4 + 4 // length prefix + padded "hi\0\0"
	if len(got) != wantLen {
		t.Fatalf("encodeString length = %d, want %d", len(got), wantLen)
	}
	n, _ := decodeUint32(got[:4])
	if n != 3 {
		t.Errorf("encoded string length prefix = %d, want 3", n)
	}
}

func TestPadTo4(t *testing.T) {
	cases := []struct {
		in   []byte
		want int
	}{
		{[]byte{1}, 4},
		{[]byte{1, 2, 3, 4}, 4},
		{[]byte{1, 2, 3, 4, 5}, 8},
	}
	for _, c := range cases {
		if got := len(padTo4(c.in)); got != c.want {
			t.Errorf("padTo4(%d bytes) length = %d, want %d", len(c.in), got, c.want)
		}
	}
}

func TestDecodeGlobal(t *testing.T) {
	args := append(encodeUint32(7), encodeString("wl_output")...)
	args = append(args, encodeUint32(4)...)

	g, ok := decodeGlobal(args)
	if !ok {
		t.Fatal("decodeGlobal reported failure on well-formed input")
	}
	if g.Name != 7 || g.Interface != "wl_output" || g.Version != 4 {
		t.Errorf("decodeGlobal = %+v, want {Name:7 Interface:wl_output Version:4}", g)
	}
}

func TestDecodeGlobalTruncated(t *testing.T) {
	if _, ok := decodeGlobal([]byte{1, 2, 3}); ok {
		t.Error("decodeGlobal should fail on a truncated buffer")
	}
}

func TestRequeuePreservesOrder(t *testing.T) {
	c := &Conn{events: make(chan Message, 8)}
	msgs := []Message{
		{Header: header{ObjectID: 5, Opcode: 1}},
		{Header: header{ObjectID: 5, Opcode: 2}},
		{Header: header{ObjectID: 6, Opcode: 0}},
	}
	c.requeue(msgs)

	got := c.DrainEvents()
	if len(got) != len(msgs) {
		t.Fatalf("DrainEvents returned %d messages, want %d", len(got), len(msgs))
	}
	for i, m := range got {
		if m.Header != msgs[i].Header {
			t.Errorf("message %d header = %+v, want %+v", i, m.Header, msgs[i].Header)
		}
	}
}

func TestDrainEventsEmpty(t *testing.T) {
	c := &Conn{events: make(chan Message, 8)}
	if got := c.DrainEvents(); got != nil {
		t.Errorf("DrainEvents on empty channel = %v, want nil", got)
	}
}
