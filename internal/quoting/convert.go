package quoting

import (
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/pricing"
	"github.com/shopspring/decimal"
)

func productLine(p domain.Product, count int64) pricing.LineItem {
	return pricing.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Count:     count,
		Multipliers: pricing.Multipliers{
			MinsPiece:   p.MinsPiece,
			MultDollies: p.MultDollies,
			MachineCart: p.MCart,
			LibraryCart: p.LCart,
			PanelCart:   p.PCart,
			SpeedPack:   p.SPack,
		},
	}
}

// Rates converts a stored rate set for the calculator.
func Rates(g *domain.GlobalVars) pricing.Rates {
	return pricing.Rates{
		Modifiers: map[pricing.Modifier]decimal.Decimal{
			pricing.StreetLoad:     decimal.NewFromFloat(g.StreetLoad),
			pricing.MidriseElevStd: decimal.NewFromFloat(g.MidriseElevStd),
			pricing.MidriseElvFrt:  decimal.NewFromFloat(g.MidriseElvFrt),
			pricing.Highrise:       decimal.NewFromFloat(g.Highrise),
			pricing.Stairs:         decimal.NewFromFloat(g.Stairs),
			pricing.LongPush:       decimal.NewFromFloat(g.LngPsh),
		},
		HourlyRate:     decimal.NewFromFloat(g.HourlyRate),
		TravelRate:     decimal.NewFromFloat(g.TravelRate),
		OvertimeFactor: decimal.NewFromFloat(g.OvertimeFactor),
	}
}

// Flags lists the active location flags of a quote.
func Flags(l domain.LocationFlags) []pricing.Flag {
	var flags []pricing.Flag
	add := func(on bool, site pricing.Site, m pricing.Modifier) {
		if on {
			flags = append(flags, pricing.Flag{Site: site, Modifier: m})
		}
	}
	add(l.OrgStreetLoad, pricing.Origin, pricing.StreetLoad)
	add(l.OrgMidriseElevStd, pricing.Origin, pricing.MidriseElevStd)
	add(l.OrgMidriseElvFrt, pricing.Origin, pricing.MidriseElvFrt)
	add(l.OrgHighrise, pricing.Origin, pricing.Highrise)
	add(l.OrgStairs, pricing.Origin, pricing.Stairs)
	add(l.OrgLngPsh, pricing.Origin, pricing.LongPush)
	add(l.DestStreetLoad, pricing.Destination, pricing.StreetLoad)
	add(l.DestMidriseElevStd, pricing.Destination, pricing.MidriseElevStd)
	add(l.DestMidriseElvFrt, pricing.Destination, pricing.MidriseElvFrt)
	add(l.DestHighrise, pricing.Destination, pricing.Highrise)
	add(l.DestStairs, pricing.Destination, pricing.Stairs)
	add(l.DestLngPsh, pricing.Destination, pricing.LongPush)
	return flags
}
