package checker

// Result is the finalized per-listing outcome persisted after a check.
type Result struct {
	FinalURL      string
	Price         string
	IsRedirect    bool
	IsUnavailable bool
	Orderable     bool
}

// Reconcile merges the raw fetch and classification signals into the
// persisted result. A redirect (the resolved identifier differs from the
// stored one) is a stronger unavailability signal than page content and
// always forces the listing non-orderable.
func Reconcile(originalASIN, finalASIN, finalURL, price string, orderable bool) Result {
	res := Result{
		FinalURL:      finalURL,
		Price:         price,
		IsRedirect:    originalASIN != finalASIN,
		IsUnavailable: !orderable,
		Orderable:     orderable,
	}

	if res.IsRedirect {
		res.Orderable = false
		res.IsUnavailable = true
	}

	return res
}
