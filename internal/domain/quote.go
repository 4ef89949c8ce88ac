package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LocationFlags are the conditions at the origin and destination of a move.
// Each flag enables the matching GlobalVars modifier for its site.
type LocationFlags struct {
	OrgStreetLoad      bool `json:"org_street_load"`
	OrgMidriseElevStd  bool `json:"org_midrise_elev_std"`
	OrgMidriseElvFrt   bool `json:"org_midrise_elv_frt"`
	OrgHighrise        bool `json:"org_highrise"`
	OrgStairs          bool `json:"org_stairs"`
	OrgLngPsh          bool `json:"org_lng_psh"`
	DestStreetLoad     bool `json:"dest_street_load"`
	DestMidriseElevStd bool `json:"dest_midrise_elev_std"`
	DestMidriseElvFrt  bool `json:"dest_midrise_elv_frt"`
	DestHighrise       bool `json:"dest_highrise"`
	DestStairs         bool `json:"dest_stairs"`
	DestLngPsh         bool `json:"dest_lng_psh"`
}

// Quote is a priced estimate for a move. SubTotal and GrandTotal are
// snapshots taken on save; detail views reprice from the line items.
type Quote struct {
	ID           int64           `json:"id,string" gorm:"primaryKey"`
	OprID        int64           `json:"opr_id,string" gorm:"index"`
	ClientID     int64           `json:"client_id,string" gorm:"index"`
	GlobalVarsID int64           `json:"global_vars_id,string"`
	Name         string          `gorm:"size:256" json:"name"`
	Date         time.Time       `gorm:"index" json:"date"`
	SubTotal     decimal.Decimal `gorm:"type:numeric(12,2)" json:"sub_total"`
	GrandTotal   decimal.Decimal `gorm:"type:numeric(12,2)" json:"grand_total"`
	TravelTime   int64           `json:"travel_time"` // minutes
	Token        string          `gorm:"uniqueIndex;size:64" json:"token"`
	Location     LocationFlags   `gorm:"embedded" json:"location"`
	SentAt       *time.Time      `json:"sent_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Quote) TableName() string {
	return "est_quote"
}

// QuoteItem is a product in a quote with its piece count.
type QuoteItem struct {
	ID        int64    `json:"id,string" gorm:"primaryKey"`
	QuoteID   int64    `json:"quote_id,string" gorm:"index"`
	ProductID int64    `json:"product_id,string" gorm:"index"`
	Count     int64    `json:"count"`
	Product   *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}

func (QuoteItem) TableName() string {
	return "est_quote_item"
}

// GlobalVars holds the location modifier rates (fractions of the subtotal)
// and labor rates. Updating rates adds a new active row so quotes keep the
// set they were priced with.
type GlobalVars struct {
	ID             int64     `json:"id,string" gorm:"primaryKey"`
	StreetLoad     float64   `json:"street_load"`
	MidriseElevStd float64   `json:"midrise_elev_std"`
	MidriseElvFrt  float64   `json:"midrise_elv_frt"`
	Highrise       float64   `json:"highrise"`
	Stairs         float64   `json:"stairs"`
	LngPsh         float64   `json:"lng_psh"`
	HourlyRate     float64   `json:"hourly_rate"`     // dollars per labor hour
	TravelRate     float64   `json:"travel_rate"`     // dollars per travel hour
	OvertimeFactor float64   `json:"overtime_factor"` // overtime cost multiplier
	Active         bool      `gorm:"index" json:"active"`
	CreatedAt      time.Time `json:"created_at"`
}

func (GlobalVars) TableName() string {
	return "est_global_vars"
}
