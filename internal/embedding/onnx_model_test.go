package embedding

import (
	"math"
	"testing"
)

func TestPackBatch(t *testing.T) {
	ids, mask, types := packBatch(&SimpleTokenizer{}, []string{"parking fee", "pool"}, 6)
	if len(ids) != 12 || len(mask) != 12 || len(types) != 12 {
		t.Fatalf("lengths = %d/%d/%d, want 12", len(ids), len(mask), len(types))
	}
	// Each row starts with [CLS] and is closed with [SEP] after its words.
	if ids[0] != 101 || ids[3] != 102 || ids[6] != 101 || ids[8] != 102 {
		t.Errorf("row layout wrong: %v", ids)
	}
	wantMask := []int64{1, 1, 1, 1, 0, 0, 1, 1, 1, 0, 0, 0}
	for i, m := range wantMask {
		if mask[i] != m {
			t.Fatalf("attention mask = %v, want %v", mask, wantMask)
		}
	}
}

func TestUnpackRows(t *testing.T) {
	vecs, err := unpackRows([]float32{3, 4, 0, 0, 2, 0}, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 {
		t.Fatalf("got %d rows", len(vecs))
	}
	if math.Abs(float64(vecs[0][0])-0.6) > 1e-6 || math.Abs(float64(vecs[0][1])-0.8) > 1e-6 {
		t.Errorf("row 0 not normalized: %v", vecs[0])
	}
	if vecs[1][0] != 0 || vecs[1][1] != 0 {
		t.Errorf("zero row should stay zero: %v", vecs[1])
	}
	if vecs[2][0] != 1 {
		t.Errorf("row 2 = %v", vecs[2])
	}

	if _, err := unpackRows([]float32{1, 2, 3}, 2, 2); err == nil {
		t.Error("short output should fail")
	}
}
