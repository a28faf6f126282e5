package fec

import "testing"

func TestEncoderDecoderRoundTripNoLoss(t *testing.T) {
	const k, n, m = 3, 5, 8
	var encCounters, decCounters Counters
	enc, err := newEncoder(k, n, m, 64, &encCounters)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := newDecoder(k, n, m, &decCounters)
	if err != nil {
		t.Fatal(err)
	}

	msgs := [][]byte{[]byte("one"), []byte("two-x"), []byte("three-xy")}
	var allShards [][]byte
	for _, m := range msgs {
		if s := enc.encode(m); s != nil {
			allShards = append(allShards, s...)
		}
	}
	if len(allShards) != n {
		t.Fatalf("expected %d shards, got %d", n, len(allShards))
	}

	var delivered [][]byte
	for _, s := range allShards {
		delivered = append(delivered, dec.decode(shard(s))...)
	}
	if len(delivered) != k {
		t.Fatalf("expected %d delivered data shards, got %d", k, len(delivered))
	}
	for i, m := range msgs {
		got := delivered[i]
		// payloads are padded to maxLen; trim trailing zeros before compare.
		got = trimZeros(got)
		if string(got) != string(m) {
			t.Fatalf("msg %d: got %q want %q", i, got, m)
		}
	}
}

func TestEncoderDecoderRoundTripWithLoss(t *testing.T) {
	const k, n, m = 3, 5, 8
	var encCounters, decCounters Counters
	enc, err := newEncoder(k, n, m, 64, &encCounters)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := newDecoder(k, n, m, &decCounters)
	if err != nil {
		t.Fatal(err)
	}

	msgs := [][]byte{[]byte("aaaa"), []byte("bbbbb"), []byte("cc")}
	var allShards [][]byte
	for _, msg := range msgs {
		if s := enc.encode(msg); s != nil {
			allShards = append(allShards, s...)
		}
	}

	// Drop one data shard (index 1); keep the rest.
	var delivered [][]byte
	for i, s := range allShards {
		if i == 1 {
			continue
		}
		delivered = append(delivered, dec.decode(shard(s))...)
	}

	found := map[string]bool{}
	for _, d := range delivered {
		found[string(trimZeros(d))] = true
	}
	for _, msg := range msgs {
		if !found[string(msg)] {
			t.Fatalf("message %q not recovered", msg)
		}
	}
	if decCounters.Recovered == 0 {
		t.Fatalf("expected Recovered counter to increase")
	}
}

func trimZeros(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}
