package metrics

// Config carries the service identity stamped onto every metric.
type Config struct {
	ServiceName string
	Environment string
}
