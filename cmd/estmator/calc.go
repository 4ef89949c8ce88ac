package main

import (
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/estmator/estmator/internal/app"
	"github.com/estmator/estmator/internal/domain"
	"github.com/estmator/estmator/internal/pricing"
	"github.com/estmator/estmator/internal/quoting"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// calcDraft is a quote described by its products rather than catalog IDs
type calcDraft struct {
	TravelTime int64                `json:"travel_time"`
	Location   domain.LocationFlags `json:"location"`
	Items      []pricing.LineItem   `json:"items"`
	Rates      *domain.GlobalVars   `json:"rates,omitempty"`
}

func calcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calc",
		Short: "Price a JSON draft read from stdin with the default rates",
		Example: `echo '{"travel_time":30,"location":{"org_stairs":true},
  "items":[{"name":"Desk","count":4,"mins_piece":20,"mult_dollies":1}]}' | estmator calc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runCalc(r io.Reader, w io.Writer) error {
	var d calcDraft
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return errors.Wrap(err, "decode draft")
	}
	rates := app.DefaultGlobalVars()
	if d.Rates != nil {
		rates = *d.Rates
	}
	res, err := pricing.Calculate(pricing.Input{
		Items:         d.Items,
		Flags:         quoting.Flags(d.Location),
		TravelMinutes: d.TravelTime,
		Rates:         quoting.Rates(&rates),
	})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
