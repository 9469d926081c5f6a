package strategies

import "github.com/raykavin/stardust/strategy"

// RegisterAll adds every shipped strategy to the registry.
func RegisterAll(registry *strategy.Registry) {
	registry.Register("macd_threshold", NewMACDThreshold)
	registry.Register("ema_cross", NewEMACross)
	registry.Register("alternator", NewAlternator)
}
