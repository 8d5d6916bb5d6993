package engine

import (
	"github.com/marketsentinel/sentinel/config"
)

// Profile is one trading personality: a symbol universe plus the
// trigger multipliers that shape its dip-buy and exit behavior.
type Profile struct {
	Name           string
	Symbols        []string
	BuyTrigger     float64
	SellTrigger    float64
	StopMultiplier float64
}

// ProfilesFromConfig resolves every configured profile, expanding
// symbol files into concrete lists.
func ProfilesFromConfig(cfg *config.Config) ([]Profile, error) {
	out := make([]Profile, 0, len(cfg.Profiles))
	for i := range cfg.Profiles {
		pc := &cfg.Profiles[i]
		syms, err := pc.SymbolList()
		if err != nil {
			return nil, err
		}
		out = append(out, Profile{
			Name:           pc.Name,
			Symbols:        syms,
			BuyTrigger:     pc.BuyTrigger,
			SellTrigger:    pc.SellTrigger,
			StopMultiplier: pc.StopMultiplier,
		})
	}
	return out, nil
}
