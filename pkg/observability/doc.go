/*
Package observability turns pipeline lifecycle hooks into Prometheus metrics
and structured logs.

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	hooks := domain.Merge(metrics.Hooks(), observability.LogHooks(logger))
*/
package observability
