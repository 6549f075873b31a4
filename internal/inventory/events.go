package inventory

// Observer receives ledger outcomes for metrics.
type Observer interface {
	// LedgerRetry is called when op lost a row race and is about to retry.
	LedgerRetry(op string)
	// InsufficientStock is called when op was rejected for lack of stock.
	InsufficientStock(op string)
}

type nopObserver struct{}

func (nopObserver) LedgerRetry(string)       {}
func (nopObserver) InsufficientStock(string) {}
