package pipeline

// Conventional plugin orders. Plugins may use any float; these are the
// anchors the stock phases are built around.
const (
	CollectorOrder  = 0.0
	ValidatorOrder  = 1.0
	ExtractorOrder  = 2.0
	IntegratorOrder = 3.0
)

// DefaultCollectionBoundary separates collection from processing when no
// boundary is configured: orders below it collect, the rest process.
const DefaultCollectionBoundary = CollectorOrder + 0.5

// Phase classifies a plugin by its order.
type Phase string

const (
	// PhaseCollection plugins build the Context and always target it as a whole
	PhaseCollection Phase = "collection"
	// PhaseProcessing plugins act on the Context or on matching Instances
	PhaseProcessing Phase = "processing"
)

// PhaseOf returns the phase an order falls into for the given boundary.
func PhaseOf(order, boundary float64) Phase {
	if order < boundary {
		return PhaseCollection
	}
	return PhaseProcessing
}

// InRange reports whether number lies within [base-offset, base+offset).
func InRange(number, base, offset float64) bool {
	return base-offset <= number && number < base+offset
}
