// Package pricing turns the products picked for a move, and the conditions at
// both ends of it, into labor minutes, equipment counts and a dollar estimate.
package pricing

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeCount  = errors.New("pricing: count must not be negative")
	ErrNegativeTravel = errors.New("pricing: travel time must not be negative")
	ErrUnknownFlag    = errors.New("pricing: unknown location modifier")
)

var minutesPerHour = decimal.NewFromInt(60)

// Modifier names a location condition that surcharges the subtotal.
type Modifier string

const (
	StreetLoad     Modifier = "street_load"
	MidriseElevStd Modifier = "midrise_elev_std"
	MidriseElvFrt  Modifier = "midrise_elv_frt"
	Highrise       Modifier = "highrise"
	Stairs         Modifier = "stairs"
	LongPush       Modifier = "lng_psh"
)

// Modifiers lists every location modifier in display order.
var Modifiers = []Modifier{StreetLoad, MidriseElevStd, MidriseElvFrt, Highrise, Stairs, LongPush}

// Site is the end of the move a location flag refers to.
type Site string

const (
	Origin      Site = "org"
	Destination Site = "dest"
)

// Flag marks one modifier as present at one site.
type Flag struct {
	Site     Site     `json:"site"`
	Modifier Modifier `json:"modifier"`
}

func (f Flag) String() string {
	return string(f.Site) + "_" + string(f.Modifier)
}

// Multipliers are the per-piece effort figures of a product.
type Multipliers struct {
	MinsPiece   int64 `json:"mins_piece"`
	MultDollies int64 `json:"mult_dollies"`
	MachineCart int64 `json:"m_cart"`
	LibraryCart int64 `json:"l_cart"`
	PanelCart   int64 `json:"p_cart"`
	SpeedPack   int64 `json:"s_pack"`
}

// LineItem is one product picked for the move.
type LineItem struct {
	ProductID int64  `json:"product_id,string"`
	Name      string `json:"name"`
	Count     int64  `json:"count"`
	Multipliers
}

// Equipment counts by type.
type Equipment struct {
	Dollies      int64 `json:"dollies"`
	MachineCarts int64 `json:"machine_carts"`
	LibraryCarts int64 `json:"library_carts"`
	PanelCarts   int64 `json:"panel_carts"`
	SpeedPacks   int64 `json:"speed_packs"`
}

func (e Equipment) add(o Equipment) Equipment {
	return Equipment{
		Dollies:      e.Dollies + o.Dollies,
		MachineCarts: e.MachineCarts + o.MachineCarts,
		LibraryCarts: e.LibraryCarts + o.LibraryCarts,
		PanelCarts:   e.PanelCarts + o.PanelCarts,
		SpeedPacks:   e.SpeedPacks + o.SpeedPacks,
	}
}

// Rates are the money side of a calculation. Modifier rates are fractions of
// the subtotal, so 0.1 adds ten percent.
type Rates struct {
	Modifiers      map[Modifier]decimal.Decimal `json:"modifiers"`
	HourlyRate     decimal.Decimal              `json:"hourly_rate"`
	TravelRate     decimal.Decimal              `json:"travel_rate"`
	OvertimeFactor decimal.Decimal              `json:"overtime_factor"`
}

// Input is everything a calculation needs.
type Input struct {
	Items         []LineItem `json:"items"`
	Flags         []Flag     `json:"flags"`
	TravelMinutes int64      `json:"travel_minutes"`
	Rates         Rates      `json:"rates"`
}

// Line is a line item with its derived quantities.
type Line struct {
	LineItem
	Minutes int64 `json:"total_mins"`
	Equipment
}

// Adjustment is the surcharge produced by one active flag.
type Adjustment struct {
	Flag
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Result is the outcome of Calculate. Money values are rounded to cents.
type Result struct {
	Lines            []Line          `json:"lines"`
	TotalMinutes     int64           `json:"total_mins"`
	Equipment        Equipment       `json:"equipment"`
	Subtotal         decimal.Decimal `json:"sub_total"`
	Adjustments      []Adjustment    `json:"adjustments"`
	AdjustmentTotal  decimal.Decimal `json:"adjustment_total"`
	TravelMinutes    int64           `json:"travel_time"`
	TravelCost       decimal.Decimal `json:"travel_cost"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	StraightTimeCost decimal.Decimal `json:"straight_time_cost"`
	OverTimeCost     decimal.Decimal `json:"over_time_cost"`
}

// Derive computes the quantities of a single line item.
func Derive(item LineItem) (Line, error) {
	if item.Count < 0 {
		return Line{}, fmt.Errorf("%w: %s has count %d", ErrNegativeCount, item.Name, item.Count)
	}
	n := item.Count
	return Line{
		LineItem: item,
		Minutes:  n * item.MinsPiece,
		Equipment: Equipment{
			Dollies:      n * item.MultDollies,
			MachineCarts: n * item.MachineCart,
			LibraryCarts: n * item.LibraryCart,
			PanelCarts:   n * item.PanelCart,
			SpeedPacks:   n * item.SpeedPack,
		},
	}, nil
}

// LaborCost prices minutes of labor at an hourly rate.
func LaborCost(minutes int64, hourly decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(minutes).Mul(hourly).Div(minutesPerHour).Round(2)
}

// Calculate aggregates the line items and applies one adjustment per active flag.
func Calculate(in Input) (*Result, error) {
	if in.TravelMinutes < 0 {
		return nil, ErrNegativeTravel
	}

	res := &Result{
		Lines:         make([]Line, 0, len(in.Items)),
		Adjustments:   []Adjustment{},
		TravelMinutes: in.TravelMinutes,
	}
	for _, item := range in.Items {
		line, err := Derive(item)
		if err != nil {
			return nil, err
		}
		res.Lines = append(res.Lines, line)
		res.TotalMinutes += line.Minutes
		res.Equipment = res.Equipment.add(line.Equipment)
	}
	res.Subtotal = LaborCost(res.TotalMinutes, in.Rates.HourlyRate)

	flags, err := normalizeFlags(in.Flags)
	if err != nil {
		return nil, err
	}
	res.AdjustmentTotal = decimal.Zero
	for _, f := range flags {
		rate := in.Rates.Modifiers[f.Modifier]
		adj := Adjustment{Flag: f, Rate: rate, Amount: res.Subtotal.Mul(rate).Round(2)}
		res.Adjustments = append(res.Adjustments, adj)
		res.AdjustmentTotal = res.AdjustmentTotal.Add(adj.Amount)
	}

	res.TravelCost = LaborCost(in.TravelMinutes, in.Rates.TravelRate)
	res.GrandTotal = res.Subtotal.Add(res.AdjustmentTotal).Add(res.TravelCost)
	res.StraightTimeCost = res.GrandTotal
	factor := in.Rates.OvertimeFactor
	if factor.IsZero() {
		factor = decimal.NewFromInt(1)
	}
	res.OverTimeCost = res.GrandTotal.Mul(factor).Round(2)
	return res, nil
}

// normalizeFlags validates flags, drops duplicates and orders them so results
// do not depend on the order the caller listed them in.
func normalizeFlags(flags []Flag) ([]Flag, error) {
	known := make(map[Modifier]int, len(Modifiers))
	for i, m := range Modifiers {
		known[m] = i
	}
	seen := make(map[Flag]struct{}, len(flags))
	out := make([]Flag, 0, len(flags))
	for _, f := range flags {
		if _, ok := known[f.Modifier]; !ok || (f.Site != Origin && f.Site != Destination) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFlag, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Site != out[j].Site {
			return out[i].Site == Origin
		}
		return known[out[i].Modifier] < known[out[j].Modifier]
	})
	return out, nil
}
