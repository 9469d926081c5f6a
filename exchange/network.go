// Package exchange holds exchange-facing configuration and a simulated
// in-memory exchange used by tests and dry runs.
package exchange

// Network selects which ledger network the engine talks to.
type Network struct {
	Name       string
	HorizonURL string
	Passphrase string
}

// Well-known networks. Custom deployments fill the fields directly.
var (
	Public = Network{
		Name:       "public",
		HorizonURL: "https://horizon.stellar.org",
		Passphrase: "Public Global Stellar Network ; September 2015",
	}
	Test = Network{
		Name:       "test",
		HorizonURL: "https://horizon-testnet.stellar.org",
		Passphrase: "Test SDF Network ; September 2015",
	}
)

// Custom builds a network from an explicit horizon endpoint and passphrase.
func Custom(horizonURL, passphrase string) Network {
	return Network{Name: "custom", HorizonURL: horizonURL, Passphrase: passphrase}
}

// Resolve maps a configured network name to its well-known parameters.
// Any other name yields a custom network from the explicit settings.
func Resolve(name, horizonURL, passphrase string) Network {
	switch name {
	case Public.Name:
		return Public
	case Test.Name:
		return Test
	default:
		return Custom(horizonURL, passphrase)
	}
}
