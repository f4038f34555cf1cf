package ledger

import "MeshChain/internal/mesh"

// TransactionFinder resolves transaction hashes.
type TransactionFinder interface {
	FindTransaction(hash string) (Transaction, bool)
}

// Reconstruct replays the ancestry of tx, oldest first, into the mesh it
// describes. Each step computes (faces ∪ added) − removed starting from an
// empty model. An ancestor that cannot be found fails with a
// *BrokenHistoryError.
func Reconstruct(tx Transaction, finder TransactionFinder) (mesh.Model, error) {
	path, err := ancestry(tx, finder)
	if err != nil {
		return mesh.Model{}, err
	}

	model := mesh.Empty()
	for i := len(path) - 1; i >= 0; i-- {
		model = model.Apply(path[i].added, path[i].removed)
	}

	return model, nil
}

// ancestry walks previous hashes from tx back to the root, newest first.
func ancestry(tx Transaction, finder TransactionFinder) ([]Transaction, error) {
	path := []Transaction{tx}
	seen := map[string]struct{}{tx.Hash(): {}}

	current := tx
	for !current.IsRoot() {
		prev, ok := finder.FindTransaction(current.previousHash)
		if !ok {
			return nil, &BrokenHistoryError{From: current.Hash(), Missing: current.previousHash}
		}

		if _, dup := seen[prev.Hash()]; dup {
			return nil, &BrokenHistoryError{From: current.Hash(), Missing: prev.Hash(), Cycle: true}
		}
		seen[prev.Hash()] = struct{}{}

		path = append(path, prev)
		current = prev
	}

	return path, nil
}
