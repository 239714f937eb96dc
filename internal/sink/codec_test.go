package sink

import "testing"

func TestGobCodecRoundTrip(t *testing.T) {
	c := gobCodec{}
	want := TraceBatch{
		NodeName: "node-a",
		Events: []TraceEvent{
			{Pid: 1, QueueID: 2, QueueIdx: 3, StartNS: 100, EndNS: 200, Label: "CommandBuffer:1"},
		},
	}

	data, err := c.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got TraceBatch
	if err := c.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got.NodeName != want.NodeName || len(got.Events) != len(want.Events) || got.Events[0] != want.Events[0] {
		t.Fatalf("round trip mismatch: want %+v, got %+v", want, got)
	}
}

func TestGobCodecName(t *testing.T) {
	if (gobCodec{}).Name() != codecName {
		t.Fatalf("Name() should match the registered subtype %q", codecName)
	}
}
