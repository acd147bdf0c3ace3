package engine

// Drive pulls every tick from root until end-of-stream or error, calling fn
// for each one — the same "pull until next is false" shape the teacher's
// query runner uses to accumulate a StepEvaluator into a final result, here
// left as a plain per-tick callback: nothing is accumulated, and every
// formatter (to_promapi included) renders each tick as its own document.
func Drive(root Evaluator, fn func(QueryValue) error) error {
	for {
		qv, ok, err := root.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(qv); err != nil {
			return err
		}
	}
}
