package embeddings

import "github.com/mvp-joe/cortex-rag/internal/knowledge/errs"

func newMismatchError(field, stored, requested string) error {
	return errs.Errorf(errs.KindConfigInvalid,
		"%s mismatch: base was created with %q, requested %q", field, stored, requested)
}

func newDimMismatchError(stored, requested int) error {
	return errs.Errorf(errs.KindDimMismatch,
		"dimensions mismatch: base was created with %d, requested %d", stored, requested)
}
