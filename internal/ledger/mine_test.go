package ledger

import (
	"strconv"
	"strings"
	"testing"

	"MeshChain/internal/hash"
)

func TestMineNextBlockPostcondition(t *testing.T) {
	parent := GenesisBlock()

	for i := 0; i < 5; i++ {
		tx := NewTransaction("lab", int64(i), "", model(float64(i)), model())
		child := MineNextBlock(parent, []Transaction{tx}, int64(1000+i))

		digest := hash.Sum(strconv.FormatInt(parent.Nonce(), 10) + strconv.FormatInt(child.Nonce(), 10) + parent.Hash())
		if !strings.HasPrefix(digest, "00") {
			t.Fatalf("block %d: proof digest %s does not start with 00", i, digest)
		}

		if child.PreviousHash() != parent.Hash() {
			t.Fatalf("block %d: previous hash not linked", i)
		}

		if child.Timestamp() != int64(1000+i) {
			t.Errorf("block %d: timestamp = %d", i, child.Timestamp())
		}

		parent = child
	}
}

func TestMineNextBlockFindsSmallestNonce(t *testing.T) {
	parent := GenesisBlock()
	child := MineNextBlock(parent, nil, 1)

	for n := int64(0); n < child.Nonce(); n++ {
		if ValidNonce(parent, n) {
			t.Fatalf("nonce %d is valid but search returned %d", n, child.Nonce())
		}
	}

	if !ValidNonce(parent, child.Nonce()) {
		t.Error("returned nonce is not valid")
	}
}
