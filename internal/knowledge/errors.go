package knowledge

// The categorized-error vocabulary (Kind, CategorizedError, NewError,
// Errorf, Is) lives in internal/knowledge/errs, a dependency-free leaf
// package, because internal/storage/vecstore needs the same vocabulary
// and internal/knowledge already depends on vecstore — defining it here
// directly would cycle. These aliases let every call site in this
// package and its submodules keep spelling knowledge.KindIO,
// knowledge.NewError, and so on.
import "github.com/mvp-joe/cortex-rag/internal/knowledge/errs"

type Kind = errs.Kind

type CategorizedError = errs.CategorizedError

const (
	KindIO                  = errs.KindIO
	KindParseFailed         = errs.KindParseFailed
	KindConfigInvalid       = errs.KindConfigInvalid
	KindDimMismatch         = errs.KindDimMismatch
	KindProviderUnreachable = errs.KindProviderUnreachable
	KindAuthFailed          = errs.KindAuthFailed
	KindRateLimited         = errs.KindRateLimited
	KindBaseMissing         = errs.KindBaseMissing
	KindNoInformation       = errs.KindNoInformation
	KindCancelled           = errs.KindCancelled
	KindLLMFailed           = errs.KindLLMFailed
)

var (
	NewError = errs.NewError
	Errorf   = errs.Errorf
	Is       = errs.Is
)
