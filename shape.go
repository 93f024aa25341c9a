package facade

// ReturnShape classifies how a handler completes. It is fixed when the entry
// point is constructed and drives every branching decision in the
// dispatcher.
type ReturnShape int

const (
	// ShapeVoid handlers run synchronously and produce no value.
	ShapeVoid ReturnShape = iota

	// ShapeResult handlers run synchronously and produce one value.
	ShapeResult

	// ShapeAsyncVoid handlers return an Awaitable whose value is ignored.
	ShapeAsyncVoid

	// ShapeAsyncResult handlers return an Awaitable producing one value.
	ShapeAsyncResult

	// ShapeStream handlers return a sequence consumed by the caller.
	ShapeStream
)

// String returns the human-readable name of the shape.
func (s ReturnShape) String() string {
	switch s {
	case ShapeVoid:
		return "void"
	case ShapeResult:
		return "result"
	case ShapeAsyncVoid:
		return "async-void"
	case ShapeAsyncResult:
		return "async-result"
	case ShapeStream:
		return "stream"
	default:
		return "unknown"
	}
}

// IsAsync reports whether handlers of this shape complete through an
// Awaitable.
func (s ReturnShape) IsAsync() bool {
	return s == ShapeAsyncVoid || s == ShapeAsyncResult
}

// IsSync reports whether handlers of this shape complete before returning.
func (s ReturnShape) IsSync() bool {
	return s == ShapeVoid || s == ShapeResult
}
