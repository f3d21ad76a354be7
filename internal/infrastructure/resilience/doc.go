/*
Package resilience provides a circuit breaker for outbound module traffic.

Extension modules talk to arbitrary remote sources; one dead source must
not make every guest fetch wait out its full timeout. Breakers are kept per
remote host in a Set so that a failing host trips only its own breaker.

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           v
	                                         Open

# Usage

	hosts := resilience.NewSet(resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	err := hosts.Get("example.com").Execute(func() error {
		return doRequest()
	})
*/
package resilience
