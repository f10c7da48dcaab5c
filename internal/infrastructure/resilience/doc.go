/*
Package resilience provides the circuit breaker that guards calls to remote
services, such as the generative model behind the tutor.

# Usage

	breaker := resilience.New("tutor", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 3
		},
	})

	answer, err := resilience.Execute(breaker, func() (Answer, error) {
		return client.Ask(ctx, question)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		// fail fast
	}

# States

	Closed --[ReadyToTrip]--> Open --[Timeout]--> Half-Open --[MaxRequests successes]--> Closed
	                                                  |
	                                              [failure]
	                                                  v
	                                                 Open

Errors wrapping context.Canceled do not count as failures unless
Settings.IsFailure says otherwise.
*/
package resilience
